// Package api is the HTTP client of the recipe backend. Every resource
// method goes through one transport chain that adds the bearer token,
// renews the session once on 403 and retries transient read failures.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"recipe-companion/internal/session"
)

// DefaultBaseURL is where the backend listens in local development.
const DefaultBaseURL = "http://localhost:8080/api/v1"

type Client struct {
	baseURL  string
	host     string
	base     http.RoundTripper
	timeout  time.Duration
	debug    bool
	retry    RetryPolicy
	recorder CallRecorder
	source   session.Source

	http *http.Client
}

// New constructs a Client with optional functional arguments. The client
// has no session until WithSession is called; authenticated calls fail
// with session.ErrNoAccessToken.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.ParseRequestURI(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		host:    u.Host,
		base:    http.DefaultTransport,
		timeout: 30 * time.Second,
		retry:   DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	c.http = c.buildHTTPClient()
	return c, nil
}

// WithSession returns a copy of the client that reads its bearer token
// from src. The receiver is left unchanged.
func (c *Client) WithSession(src session.Source) *Client {
	cp := *c
	cp.source = src
	cp.http = cp.buildHTTPClient()
	return &cp
}

// BaseURL returns the backend address the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) buildHTTPClient() *http.Client {
	rt := c.base
	if c.debug {
		rt = &debugTransport{base: rt}
	}
	rt = &retryTransport{base: rt, policy: c.retry}
	rt = &authTransport{base: rt, source: c.source, host: c.host}
	rt = &metricsTransport{base: rt, recorder: c.recorder}
	return &http.Client{Transport: rt, Timeout: c.timeout}
}

func (c *Client) current() (session.Session, error) {
	if c.source == nil {
		return session.Session{}, session.ErrNoAccessToken
	}
	s, ok := c.source.Current()
	if !ok || s.AccessToken == "" {
		return session.Session{}, session.ErrNoAccessToken
	}
	return s, nil
}

// tenant is the signed-in user's id, used in /users/{tenantId}/... paths.
func (c *Client) tenant() (string, error) {
	s, err := c.current()
	if err != nil {
		return "", err
	}
	if s.UserID() == "" {
		return "", errors.New("session has no user id; log in again")
	}
	return s.UserID(), nil
}

type ctxKey int

const (
	authKey ctxKey = iota
	routeKey
)

func requiresAuth(ctx context.Context) bool {
	v, _ := ctx.Value(authKey).(bool)
	return v
}

func routeOf(req *http.Request) string {
	if r, ok := req.Context().Value(routeKey).(string); ok {
		return r
	}
	return req.URL.Path
}

// call describes one backend request.
type call struct {
	method string
	// route is the path template used as the metrics label.
	route string
	path  string
	query url.Values
	// body is JSON encoded unless raw is set.
	body        any
	raw         []byte
	contentType string
	// auth sends the session's access token through the renewal chain.
	auth bool
	// bearer is sent as is, outside the renewal chain.
	bearer string
}

func segment(s string) string { return url.PathEscape(s) }

func (c *Client) newRequest(ctx context.Context, cl call) (*http.Request, error) {
	u := c.baseURL + cl.path
	if len(cl.query) > 0 {
		u += "?" + cl.query.Encode()
	}

	var body io.Reader
	contentType := cl.contentType
	switch {
	case cl.raw != nil:
		body = bytes.NewReader(cl.raw)
	case cl.body != nil:
		data, err := json.Marshal(cl.body)
		if err != nil {
			return nil, fmt.Errorf("encode %s body: %w", cl.route, err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}

	ctx = context.WithValue(ctx, routeKey, cl.route)
	// Always written: renewal reuses the caller's context for its own
	// unauthenticated calls.
	ctx = context.WithValue(ctx, authKey, cl.auth)
	req, err := http.NewRequestWithContext(ctx, cl.method, u, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json, text/plain")
	if cl.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+cl.bearer)
	}
	return req, nil
}

// do performs the call and decodes a 2xx body into out. out may be nil,
// a *string for text responses, or anything JSON can decode into.
func (c *Client) do(ctx context.Context, cl call, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if cl.auth {
		if _, err := c.current(); err != nil {
			return err
		}
	}

	req, err := c.newRequest(ctx, cl)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return fmt.Errorf("%s %s: %w", cl.method, cl.path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newError(cl.method, cl.path, resp)
	}

	switch v := out.(type) {
	case nil:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	case *string:
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("%s %s: read body: %w", cl.method, cl.path, err)
		}
		*v = strings.TrimSpace(string(data))
		return nil
	default:
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("%s %s: decode response: %w", cl.method, cl.path, err)
		}
		return nil
	}
}
