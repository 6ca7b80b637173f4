package api

import (
	"context"
	"net/http"

	"recipe-companion/internal/session"
)

// GetProfile returns the signed-in user's profile.
func (c *Client) GetProfile(ctx context.Context) (session.User, error) {
	var u session.User
	err := c.do(ctx, call{method: http.MethodGet, route: "/user/profile", path: "/user/profile", auth: true}, &u)
	return u, err
}

// GetUserDetails returns the detailed view of the signed-in user.
func (c *Client) GetUserDetails(ctx context.Context) (session.User, error) {
	var u session.User
	err := c.do(ctx, call{method: http.MethodGet, route: "/users/details", path: "/users/details", auth: true}, &u)
	return u, err
}
