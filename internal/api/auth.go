package api

import (
	"context"
	"net/http"

	"recipe-companion/internal/session"
)

// The auth endpoints never go through session renewal, so the client can
// serve as the session manager's Authenticator.
var _ session.Authenticator = (*Client)(nil)

type signupRequest struct {
	Username string `json:"username"`
	Mail     string `json:"mail"`
	Password string `json:"password"`
}

type loginRequest struct {
	Mail     string `json:"mail"`
	Password string `json:"password"`
}

type confirmRequest struct {
	Mail string `json:"mail"`
	OTP  string `json:"otp"`
}

// Signup registers an account and returns the backend's confirmation message.
func (c *Client) Signup(ctx context.Context, name, mail, password string) (string, error) {
	var msg string
	err := c.do(ctx, call{
		method: http.MethodPost,
		route:  "/auth/signup",
		path:   "/auth/signup",
		body:   signupRequest{Username: name, Mail: mail, Password: password},
	}, &msg)
	return msg, err
}

// Login exchanges credentials for a token pair.
func (c *Client) Login(ctx context.Context, mail, password string) (session.AuthResult, error) {
	var res session.AuthResult
	err := c.do(ctx, call{
		method: http.MethodPost,
		route:  "/auth/login",
		path:   "/auth/login",
		body:   loginRequest{Mail: mail, Password: password},
	}, &res)
	return res, err
}

// ConfirmAccount submits the one-time code sent by mail.
func (c *Client) ConfirmAccount(ctx context.Context, mail, otp string) (string, error) {
	var msg string
	err := c.do(ctx, call{
		method: http.MethodPost,
		route:  "/auth/confirmAccount",
		path:   "/auth/confirmAccount",
		body:   confirmRequest{Mail: mail, OTP: otp},
	}, &msg)
	return msg, err
}

// Refresh presents the refresh token as bearer and returns a new pair.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (session.AuthResult, error) {
	var res session.AuthResult
	err := c.do(ctx, call{
		method: http.MethodPost,
		route:  "/auth/refresh",
		path:   "/auth/refresh",
		bearer: refreshToken,
	}, &res)
	return res, err
}

// Profile fetches the profile for an explicit access token, without
// renewal. Used to validate tokens.
func (c *Client) Profile(ctx context.Context, accessToken string) (session.User, error) {
	var u session.User
	err := c.do(ctx, call{
		method: http.MethodGet,
		route:  "/user/profile",
		path:   "/user/profile",
		bearer: accessToken,
	}, &u)
	return u, err
}
