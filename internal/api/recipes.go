package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strings"

	"recipe-companion/internal/recipe"
)

// ListRecipes returns every recipe visible to the user.
func (c *Client) ListRecipes(ctx context.Context) ([]recipe.Recipe, error) {
	var out []recipe.Recipe
	err := c.do(ctx, call{method: http.MethodGet, route: "/recipes", path: "/recipes", auth: true}, &out)
	return out, err
}

// ListCompactRecipes returns every recipe without ingredients and steps.
func (c *Client) ListCompactRecipes(ctx context.Context) ([]recipe.Recipe, error) {
	var out []recipe.Recipe
	err := c.do(ctx, call{method: http.MethodGet, route: "/recipes/compact", path: "/recipes/compact", auth: true}, &out)
	return out, err
}

// GetCompactRecipesBatch returns compact recipes for the given ids.
func (c *Client) GetCompactRecipesBatch(ctx context.Context, ids []string) ([]recipe.Recipe, error) {
	if err := validateIDs("recipe id", ids); err != nil {
		return nil, err
	}
	var out []recipe.Recipe
	err := c.do(ctx, call{method: http.MethodPost, route: "/recipes/compact-batch", path: "/recipes/compact-batch", body: ids, auth: true}, &out)
	return out, err
}

// GetRecipesBatch returns full recipes for the given ids.
func (c *Client) GetRecipesBatch(ctx context.Context, ids []string) ([]recipe.Recipe, error) {
	if err := validateIDs("recipe id", ids); err != nil {
		return nil, err
	}
	var out []recipe.Recipe
	err := c.do(ctx, call{method: http.MethodPost, route: "/recipes/batch", path: "/recipes/batch", body: ids, auth: true}, &out)
	return out, err
}

// GetRecipe returns one recipe.
func (c *Client) GetRecipe(ctx context.Context, id string) (recipe.Recipe, error) {
	if err := ValidateID("recipe id", id); err != nil {
		return recipe.Recipe{}, err
	}
	var out recipe.Recipe
	err := c.do(ctx, call{method: http.MethodGet, route: "/recipes/{id}", path: "/recipes/" + segment(id), auth: true}, &out)
	return out, err
}

// FilterRecipes returns public recipes matching the filter.
func (c *Client) FilterRecipes(ctx context.Context, f recipe.Filter) ([]recipe.Recipe, error) {
	var out []recipe.Recipe
	err := c.do(ctx, call{method: http.MethodGet, route: "/recipes/filters", path: "/recipes/filters", query: f.Query(), auth: true}, &out)
	return out, err
}

// CreateRecipe validates r and creates it.
func (c *Client) CreateRecipe(ctx context.Context, r recipe.Recipe) (recipe.Recipe, error) {
	if err := r.Validate(); err != nil {
		return recipe.Recipe{}, err
	}
	r.ID = ""
	var out recipe.Recipe
	err := c.do(ctx, call{method: http.MethodPost, route: "/recipes", path: "/recipes", body: r, auth: true}, &out)
	return out, err
}

// CreateRecipeWithImage creates r with a cover image, sent as a multipart
// form with a JSON "recipe" part and an "image" file part.
func (c *Client) CreateRecipeWithImage(ctx context.Context, r recipe.Recipe, filename string, image io.Reader) (recipe.Recipe, error) {
	if err := r.Validate(); err != nil {
		return recipe.Recipe{}, err
	}
	if image == nil {
		return recipe.Recipe{}, errors.New("image is required")
	}
	r.ID = ""

	body, contentType, err := recipeForm(r, filename, image)
	if err != nil {
		return recipe.Recipe{}, err
	}
	var out recipe.Recipe
	err = c.do(ctx, call{
		method:      http.MethodPost,
		route:       "/recipes/with-cover-image",
		path:        "/recipes/with-cover-image",
		raw:         body,
		contentType: contentType,
		auth:        true,
	}, &out)
	return out, err
}

func recipeForm(r recipe.Recipe, filename string, image io.Reader) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="recipe"`)
	h.Set("Content-Type", "application/json")
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("create recipe part: %w", err)
	}
	if err := json.NewEncoder(part).Encode(r); err != nil {
		return nil, "", fmt.Errorf("encode recipe part: %w", err)
	}

	if filename == "" {
		filename = "cover.jpg"
	}
	filePart, err := w.CreateFormFile("image", filepath.Base(filename))
	if err != nil {
		return nil, "", fmt.Errorf("create image part: %w", err)
	}
	if _, err := io.Copy(filePart, image); err != nil {
		return nil, "", fmt.Errorf("copy image: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart form: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// UpdateRecipe sends a partial update; zero fields are left unchanged by
// the backend.
func (c *Client) UpdateRecipe(ctx context.Context, id string, patch recipe.Recipe) (recipe.Recipe, error) {
	if err := ValidateID("recipe id", id); err != nil {
		return recipe.Recipe{}, err
	}
	patch.ID = ""
	var out recipe.Recipe
	err := c.do(ctx, call{method: http.MethodPatch, route: "/recipes/{id}", path: "/recipes/" + segment(id), body: patch, auth: true}, &out)
	return out, err
}

// DeleteRecipe removes a recipe.
func (c *Client) DeleteRecipe(ctx context.Context, id string) error {
	if err := ValidateID("recipe id", id); err != nil {
		return err
	}
	return c.do(ctx, call{method: http.MethodDelete, route: "/recipes/{id}", path: "/recipes/" + segment(id), auth: true}, nil)
}

// RecipeIdeas sends pantry ingredients and returns either recipe ids or
// free-text suggestions, as the backend decides.
func (c *Client) RecipeIdeas(ctx context.Context, ingredients []string) ([]string, error) {
	cleaned := make([]string, 0, len(ingredients))
	for _, ing := range ingredients {
		if s := strings.TrimSpace(ing); s != "" {
			cleaned = append(cleaned, s)
		}
	}
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("%w: at least one ingredient is required", recipe.ErrInvalid)
	}
	var out []string
	err := c.do(ctx, call{method: http.MethodPost, route: "/recipes/ideas", path: "/recipes/ideas", body: cleaned, auth: true}, &out)
	return out, err
}
