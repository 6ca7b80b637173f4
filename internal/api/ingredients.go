package api

import (
	"context"
	"net/http"

	"recipe-companion/internal/planner"
	"recipe-companion/internal/recipe"
)

var _ planner.RecipeReader = (*Client)(nil)

// ListIngredients returns the ingredient catalog.
func (c *Client) ListIngredients(ctx context.Context) ([]recipe.IngredientInfo, error) {
	var out []recipe.IngredientInfo
	err := c.do(ctx, call{method: http.MethodGet, route: "/ingredients", path: "/ingredients", auth: true}, &out)
	return out, err
}

// GetIngredient returns one catalog entry.
func (c *Client) GetIngredient(ctx context.Context, id string) (recipe.IngredientInfo, error) {
	if err := ValidateID("ingredient id", id); err != nil {
		return recipe.IngredientInfo{}, err
	}
	var out recipe.IngredientInfo
	err := c.do(ctx, call{method: http.MethodGet, route: "/ingredients/{id}", path: "/ingredients/" + segment(id), auth: true}, &out)
	return out, err
}
