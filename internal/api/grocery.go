package api

import (
	"context"
	"net/http"

	"recipe-companion/internal/shopping"
)

// GetGroceryList returns the user's grocery list.
func (c *Client) GetGroceryList(ctx context.Context) (shopping.List, error) {
	tenant, err := c.tenant()
	if err != nil {
		return shopping.List{}, err
	}
	var list shopping.List
	err = c.do(ctx, call{
		method: http.MethodGet,
		route:  "/users/{tenantId}/grocery",
		path:   "/users/" + segment(tenant) + "/grocery",
		auth:   true,
	}, &list)
	return list, err
}

// ReplaceGroceryList replaces the whole list. Every item is validated
// first; one invalid item rejects the update without a network call.
func (c *Client) ReplaceGroceryList(ctx context.Context, u shopping.Update) (shopping.List, error) {
	if err := u.Validate(); err != nil {
		return shopping.List{}, err
	}
	tenant, err := c.tenant()
	if err != nil {
		return shopping.List{}, err
	}
	var list shopping.List
	err = c.do(ctx, call{
		method: http.MethodPut,
		route:  "/users/{tenantId}/grocery",
		path:   "/users/" + segment(tenant) + "/grocery",
		body:   u,
		auth:   true,
	}, &list)
	if err != nil {
		return shopping.List{}, err
	}
	if list.Products == nil {
		list.Products = u.Products
	}
	return list, nil
}
