package api

import (
	"context"
	"net/http"
	"net/url"

	"recipe-companion/internal/recipe"
	"recipe-companion/internal/session"
)

// Saved recipes are other people's recipes bookmarked by the user; user
// recipes are the ones the user authored.

func (c *Client) listUserRecipes(ctx context.Context, collection string) ([]recipe.Recipe, error) {
	tenant, err := c.tenant()
	if err != nil {
		return nil, err
	}
	var out []recipe.Recipe
	err = c.do(ctx, call{
		method: http.MethodGet,
		route:  "/users/{tenantId}/" + collection,
		path:   "/users/" + segment(tenant) + "/" + collection,
		auth:   true,
	}, &out)
	return out, err
}

func (c *Client) changeUserRecipes(ctx context.Context, method, collection, recipeID string) (session.User, error) {
	if err := ValidateID("recipe id", recipeID); err != nil {
		return session.User{}, err
	}
	tenant, err := c.tenant()
	if err != nil {
		return session.User{}, err
	}
	var u session.User
	err = c.do(ctx, call{
		method: method,
		route:  "/users/{tenantId}/" + collection,
		path:   "/users/" + segment(tenant) + "/" + collection,
		query:  url.Values{"recipeId": {recipeID}},
		auth:   true,
	}, &u)
	return u, err
}

// ListSavedRecipes returns the recipes the user saved.
func (c *Client) ListSavedRecipes(ctx context.Context) ([]recipe.Recipe, error) {
	return c.listUserRecipes(ctx, "saved-recipes")
}

// SaveRecipe bookmarks a recipe and returns the updated user.
func (c *Client) SaveRecipe(ctx context.Context, recipeID string) (session.User, error) {
	return c.changeUserRecipes(ctx, http.MethodPost, "saved-recipes", recipeID)
}

// UnsaveRecipe removes a bookmark and returns the updated user.
func (c *Client) UnsaveRecipe(ctx context.Context, recipeID string) (session.User, error) {
	return c.changeUserRecipes(ctx, http.MethodDelete, "saved-recipes", recipeID)
}

// IsRecipeSaved reports whether the user saved the recipe.
func (c *Client) IsRecipeSaved(ctx context.Context, recipeID string) (bool, error) {
	if err := ValidateID("recipe id", recipeID); err != nil {
		return false, err
	}
	tenant, err := c.tenant()
	if err != nil {
		return false, err
	}
	var saved bool
	err = c.do(ctx, call{
		method: http.MethodGet,
		route:  "/users/{tenantId}/is-saved-recipe",
		path:   "/users/" + segment(tenant) + "/is-saved-recipe",
		query:  url.Values{"recipeId": {recipeID}},
		auth:   true,
	}, &saved)
	return saved, err
}

// ListUserRecipes returns the recipes the user authored.
func (c *Client) ListUserRecipes(ctx context.Context) ([]recipe.Recipe, error) {
	return c.listUserRecipes(ctx, "user-recipes")
}

// AddUserRecipe links an existing recipe to the user's authored list.
func (c *Client) AddUserRecipe(ctx context.Context, recipeID string) (session.User, error) {
	return c.changeUserRecipes(ctx, http.MethodPost, "user-recipes", recipeID)
}

// RemoveUserRecipe unlinks the recipe; the backend deletes it as well.
func (c *Client) RemoveUserRecipe(ctx context.Context, recipeID string) (session.User, error) {
	return c.changeUserRecipes(ctx, http.MethodDelete, "user-recipes", recipeID)
}
