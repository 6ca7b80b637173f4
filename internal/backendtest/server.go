// Package backendtest runs an in-process fake of the recipe backend for
// tests. It implements the REST contract the client relies on, issues real
// HS256 JWTs and lets tests inject failures per route.
package backendtest

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"recipe-companion/internal/planner"
	"recipe-companion/internal/recipe"
	"recipe-companion/internal/session"
	"recipe-companion/internal/shopping"
)

const (
	prefix          = "/api/v1"
	audienceAccess  = "access"
	audienceRefresh = "refresh"
)

type account struct {
	user      session.User
	password  string
	confirmed bool
	otp       string
	grocery   shopping.List
	calendar  map[string]planner.CalendarItem
}

// Server is the fake backend.
type Server struct {
	*httptest.Server

	secret    []byte
	accessTTL time.Duration

	mu           sync.Mutex
	accounts     map[string]*account // by mail
	byID         map[string]*account
	recipes      map[string]recipe.Recipe
	recipeOrder  []string
	ingredients  []recipe.IngredientInfo
	ideas        []string
	omitUser     bool
	issuedAccess []string
	revoked      map[string]bool
	failures     map[string][]int
	hits         map[string]int
	total        int
}

// Option configures the fake backend.
type Option func(*Server)

// WithAccessTTL sets the lifetime of issued access tokens.
func WithAccessTTL(d time.Duration) Option {
	return func(s *Server) { s.accessTTL = d }
}

// WithoutUserOnLogin makes login answer with tokens only, like older
// backend versions.
func WithoutUserOnLogin() Option {
	return func(s *Server) { s.omitUser = true }
}

// New starts the fake backend and stops it when the test ends.
func New(t testing.TB, opts ...Option) *Server {
	t.Helper()
	s := &Server{
		secret:    []byte("backendtest-secret"),
		accessTTL: 15 * time.Minute,
		accounts:  make(map[string]*account),
		byID:      make(map[string]*account),
		recipes:   make(map[string]recipe.Recipe),
		ideas:     []string{"Tomates mozza", "Caviar"},
		revoked:   make(map[string]bool),
		failures:  make(map[string][]int),
		hits:      make(map[string]int),
		ingredients: []recipe.IngredientInfo{
			{ID: "ing-tomato", Name: "Tomato", Type: recipe.Vegetable},
			{ID: "ing-mozzarella", Name: "Mozzarella", Type: recipe.Dairy},
			{ID: "ing-basil", Name: "Basil", Type: recipe.Herb},
			{ID: "ing-olive-oil", Name: "Olive oil", Type: recipe.Oil},
			{ID: "ing-spaghetti", Name: "Spaghetti", Type: recipe.Carb},
			{ID: "ing-garlic", Name: "Garlic", Type: recipe.Vegetable},
			{ID: "ing-egg", Name: "Egg", Type: recipe.Dairy},
			{ID: "ing-salt", Name: "Salt", Type: recipe.Spice},
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(s.Close)
	return s
}

// BaseURL is the API root to hand to api.New.
func (s *Server) BaseURL() string { return s.URL + prefix }

func (s *Server) routes() http.Handler {
	r := mux.NewRouter()
	api := r.PathPrefix(prefix).Subrouter()
	api.Use(s.record)

	auth := api.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/signup", s.handleSignup).Methods(http.MethodPost)
	auth.HandleFunc("/confirmAccount", s.handleConfirm).Methods(http.MethodPost)
	auth.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	auth.HandleFunc("/refresh", s.handleRefresh).Methods(http.MethodPost)

	p := api.NewRoute().Subrouter()
	p.Use(s.requireAuth)

	p.HandleFunc("/user/profile", s.handleProfile).Methods(http.MethodGet)
	p.HandleFunc("/users/details", s.handleProfile).Methods(http.MethodGet)

	p.HandleFunc("/recipes", s.handleListRecipes).Methods(http.MethodGet)
	p.HandleFunc("/recipes", s.handleCreateRecipe).Methods(http.MethodPost)
	p.HandleFunc("/recipes/compact", s.handleListCompact).Methods(http.MethodGet)
	p.HandleFunc("/recipes/filters", s.handleFilterRecipes).Methods(http.MethodGet)
	p.HandleFunc("/recipes/compact-batch", s.handleBatch(true)).Methods(http.MethodPost)
	p.HandleFunc("/recipes/batch", s.handleBatch(false)).Methods(http.MethodPost)
	p.HandleFunc("/recipes/ideas", s.handleIdeas).Methods(http.MethodPost)
	p.HandleFunc("/recipes/with-cover-image", s.handleCreateWithImage).Methods(http.MethodPost)
	p.HandleFunc("/recipes/{id}", s.handleGetRecipe).Methods(http.MethodGet)
	p.HandleFunc("/recipes/{id}", s.handlePatchRecipe).Methods(http.MethodPatch)
	p.HandleFunc("/recipes/{id}", s.handleDeleteRecipe).Methods(http.MethodDelete)

	p.HandleFunc("/ingredients", s.handleListIngredients).Methods(http.MethodGet)
	p.HandleFunc("/ingredients/{id}", s.handleGetIngredient).Methods(http.MethodGet)

	t := p.PathPrefix("/users/{tenantId}").Subrouter()
	t.Use(s.requireTenant)
	t.HandleFunc("/calendar/{date}", s.handleGetCalendar).Methods(http.MethodGet)
	t.HandleFunc("/calendar", s.handleWriteCalendar).Methods(http.MethodPut, http.MethodDelete)
	t.HandleFunc("/grocery", s.handleGetGrocery).Methods(http.MethodGet)
	t.HandleFunc("/grocery", s.handlePutGrocery).Methods(http.MethodPut)
	t.HandleFunc("/saved-recipes", s.handleListCollection(savedCollection)).Methods(http.MethodGet)
	t.HandleFunc("/saved-recipes", s.handleChangeCollection(savedCollection)).Methods(http.MethodPost, http.MethodDelete)
	t.HandleFunc("/is-saved-recipe", s.handleIsSaved).Methods(http.MethodGet)
	t.HandleFunc("/user-recipes", s.handleListCollection(authoredCollection)).Methods(http.MethodGet)
	t.HandleFunc("/user-recipes", s.handleChangeCollection(authoredCollection)).Methods(http.MethodPost, http.MethodDelete)

	return r
}

// --------------------------------------------------------------------
// Test controls
// --------------------------------------------------------------------

// AddUser creates a confirmed account and returns its user.
func (s *Server) AddUser(name, mail, password string) session.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.newAccount(name, mail, password)
	a.confirmed = true
	return a.user
}

func (s *Server) newAccount(name, mail, password string) *account {
	a := &account{
		user:     session.User{ID: uuid.NewString(), Name: name, Mail: mail, Role: "USER"},
		password: password,
		calendar: make(map[string]planner.CalendarItem),
	}
	s.accounts[mail] = a
	s.byID[a.user.ID] = a
	return a
}

// OTP returns the pending confirmation code of an account.
func (s *Server) OTP(mail string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.accounts[mail]; ok {
		return a.otp
	}
	return ""
}

// AddRecipe stores a recipe as is, assigning an id when missing.
func (s *Server) AddRecipe(r recipe.Recipe) recipe.Recipe {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putRecipe(r)
}

func (s *Server) putRecipe(r recipe.Recipe) recipe.Recipe {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if _, exists := s.recipes[r.ID]; !exists {
		s.recipeOrder = append(s.recipeOrder, r.ID)
	}
	s.recipes[r.ID] = r
	return r
}

// Recipe returns a stored recipe.
func (s *Server) Recipe(id string) (recipe.Recipe, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.recipes[id]
	return r, ok
}

// SetIdeas sets the answer of POST /recipes/ideas.
func (s *Server) SetIdeas(ideas ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ideas = ideas
}

// RevokeAccessTokens invalidates every access token issued so far.
// Refresh tokens stay valid.
func (s *Server) RevokeAccessTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, jti := range s.issuedAccess {
		s.revoked[jti] = true
	}
}

// FailNext makes the next requests to route answer with the given
// statuses, one per request. route is "METHOD /template", for example
// "GET /recipes/{id}".
func (s *Server) FailNext(route string, statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = append(s.failures[route], statuses...)
}

// Hits returns how many requests reached route ("METHOD /template").
func (s *Server) Hits(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[route]
}

// TotalHits returns how many API requests the server received.
func (s *Server) TotalHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// --------------------------------------------------------------------
// Middleware
// --------------------------------------------------------------------

func routeName(r *http.Request) string {
	tpl := r.URL.Path
	if cur := mux.CurrentRoute(r); cur != nil {
		if t, err := cur.GetPathTemplate(); err == nil {
			tpl = t
		}
	}
	return r.Method + " " + strings.TrimPrefix(tpl, prefix)
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := routeName(r)
		s.mu.Lock()
		s.total++
		s.hits[route]++
		var status int
		if queue := s.failures[route]; len(queue) > 0 {
			status, s.failures[route] = queue[0], queue[1:]
		}
		s.mu.Unlock()

		if status != 0 {
			writeError(w, r, status, "INJECTED_FAILURE", http.StatusText(status))
			return
		}
		next.ServeHTTP(w, r)
	})
}

type ctxAccount struct{}

func (s *Server) parseToken(raw, audience string) (*account, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithAudience(audience))
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.revoked[claims.ID] {
		return nil, fmt.Errorf("token revoked")
	}
	a, ok := s.byID[claims.Subject]
	if !ok {
		return nil, fmt.Errorf("unknown subject")
	}
	return a, nil
}

func bearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(h, "Bearer ")
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a, err := s.parseToken(bearer(r), audienceAccess)
		if err != nil {
			writeError(w, r, http.StatusForbidden, "ACCESS_DENIED", "invalid or expired token")
			return
		}
		next.ServeHTTP(w, r.WithContext(withAccount(r.Context(), a)))
	})
}

func (s *Server) requireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if mux.Vars(r)["tenantId"] != accountFrom(r).user.ID {
			writeError(w, r, http.StatusForbidden, "TENANT_MISMATCH", "cannot access another user's data")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --------------------------------------------------------------------
// Tokens
// --------------------------------------------------------------------

func (s *Server) issue(a *account, audience string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   a.user.ID,
		Audience:  jwt.ClaimStrings{audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", err
	}
	if audience == audienceAccess {
		s.mu.Lock()
		s.issuedAccess = append(s.issuedAccess, claims.ID)
		s.mu.Unlock()
	}
	return tok, nil
}

func randomOTP() string {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "000000"
	}
	return fmt.Sprintf("%06d", n.Int64())
}

// --------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(msg))
}

// writeError answers with the backend's ApiErrorResponse shape.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	writeJSON(w, status, map[string]any{
		"statusCode": status,
		"errorCode":  code,
		"url":        r.URL.Path,
		"message":    msg,
	})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, r, http.StatusBadRequest, "MALFORMED_BODY", err.Error())
		return false
	}
	return true
}
