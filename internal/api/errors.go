package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"recipe-companion/internal/session"
)

// Error is a non-2xx answer from the backend.
type Error struct {
	Method     string
	Path       string
	StatusCode int
	// Code is the backend errorCode, when the body carried one.
	Code    string
	Message string
}

// errorBody is the backend's ApiErrorResponse.
type errorBody struct {
	StatusCode int    `json:"statusCode"`
	ErrorCode  string `json:"errorCode"`
	URL        string `json:"url"`
	Message    string `json:"message"`
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: status %d", e.Method, e.Path, e.StatusCode)
	if e.Code != "" {
		fmt.Fprintf(&b, " (%s)", e.Code)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

// Is lets errors.Is(err, session.ErrPermissionDenied) match 401 and 403.
func (e *Error) Is(target error) bool {
	return target == session.ErrPermissionDenied &&
		(e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden)
}

// IsNotFound reports whether err is a backend 404.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// StatusCode returns the backend status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

const maxErrorBody = 64 << 10

func newError(method, path string, resp *http.Response) *Error {
	e := &Error{Method: method, Path: path, StatusCode: resp.StatusCode}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(data) == 0 {
		e.Message = http.StatusText(resp.StatusCode)
		return e
	}
	var body errorBody
	if json.Unmarshal(data, &body) == nil && (body.Message != "" || body.ErrorCode != "") {
		e.Code = body.ErrorCode
		e.Message = body.Message
		return e
	}
	e.Message = strings.TrimSpace(string(data))
	return e
}
