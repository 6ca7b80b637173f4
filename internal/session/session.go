// Package session owns the signed-in user and the token pair used to call
// the recipe backend.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Persisted device storage keys.
const (
	KeyAccessToken  = "accessToken"
	KeyRefreshToken = "refreshToken"
	KeyUser         = "user"
	KeyCredentials  = "credentials"
)

var (
	// ErrNoAccessToken is returned by authenticated calls made without a session.
	ErrNoAccessToken = errors.New("no access token")
	// ErrAuthentication is returned when login or session renewal fails.
	ErrAuthentication = errors.New("authentication failed")
	// ErrPermissionDenied is matched by backend errors with status 401 or 403.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrInvalidInput is wrapped by client-side checks on credentials and codes.
	ErrInvalidInput = errors.New("invalid input")
)

// User mirrors the backend UserDto.
type User struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Mail            string   `json:"mail"`
	Role            string   `json:"role,omitempty"`
	RecipesIDs      []string `json:"recipesIds,omitempty"`
	SavedRecipesIDs []string `json:"savedRecipesIds,omitempty"`
}

// Session is an immutable snapshot of the signed-in state. Renewal
// produces a new value.
type Session struct {
	User         User
	AccessToken  string
	RefreshToken string
	// ExpiresAt is read from the access token without verifying it. Zero
	// when the token carries no exp claim.
	ExpiresAt time.Time
}

func newSession(user User, access, refresh string) Session {
	return Session{
		User:         user,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    TokenExpiry(access),
	}
}

// UserID is the tenant id used in /users/{tenantId}/... paths.
func (s Session) UserID() string      { return s.User.ID }
func (s Session) DisplayName() string { return s.User.Name }
func (s Session) MailAddress() string { return s.User.Mail }

// Expired reports whether the access token's exp claim is in the past.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// withTokens returns a copy carrying a new token pair. An empty refresh
// token keeps the old one.
func (s Session) withTokens(access, refresh string) Session {
	next := s
	next.AccessToken = access
	if refresh != "" {
		next.RefreshToken = refresh
	}
	next.ExpiresAt = TokenExpiry(access)
	return next
}

// TokenExpiry decodes the exp claim of a JWT without checking its
// signature. It returns the zero time for anything that is not a JWT.
func TokenExpiry(token string) time.Time {
	if token == "" {
		return time.Time{}
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

// Source hands the current session to the API client and renews it when
// the backend rejects the access token.
type Source interface {
	// Current returns the session and whether one exists.
	Current() (Session, bool)
	// Renew replaces stale with a fresh session. If stale was already
	// replaced, the current session is returned without a network call.
	Renew(ctx context.Context, stale Session) (Session, error)
}

// AuthResult is what the backend returns for login and refresh.
type AuthResult struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	User         *User  `json:"user,omitempty"`
}

// Authenticator is the slice of the backend the session needs. None of
// these calls may go through session renewal.
type Authenticator interface {
	Login(ctx context.Context, mail, password string) (AuthResult, error)
	Signup(ctx context.Context, name, mail, password string) (string, error)
	ConfirmAccount(ctx context.Context, mail, otp string) (string, error)
	Refresh(ctx context.Context, refreshToken string) (AuthResult, error)
	Profile(ctx context.Context, accessToken string) (User, error)
}

// Credentials are cached (sealed) to log in again when refresh fails.
type Credentials struct {
	Mail     string `json:"mail"`
	Password string `json:"password"`
}
