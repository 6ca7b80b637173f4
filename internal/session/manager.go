package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"recipe-companion/internal/storage"
	"recipe-companion/internal/vault"
)

var (
	otpRe  = regexp.MustCompile(`^[0-9]{6}$`)
	mailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+$`)
)

// Manager owns the current session and its persisted copy.
type Manager struct {
	store storage.Store
	auth  Authenticator
	vault *vault.Vault
	now   func() time.Time

	mu      sync.RWMutex
	current *Session

	// renewMu serializes renewals; mu is never held across network calls.
	renewMu sync.Mutex
}

// Option configures a Manager.
type Option func(*Manager)

// WithVault enables caching sealed credentials for silent re-login.
func WithVault(v *vault.Vault) Option {
	return func(m *Manager) { m.vault = v }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a Manager with no session loaded. Call Restore to
// pick up a persisted session.
func NewManager(store storage.Store, auth Authenticator, opts ...Option) *Manager {
	m := &Manager{store: store, auth: auth, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Current implements Source.
func (m *Manager) Current() (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return Session{}, false
	}
	return *m.current, true
}

func (m *Manager) set(s *Session) {
	m.mu.Lock()
	m.current = s
	m.mu.Unlock()
}

// Login authenticates and persists the new session. On failure nothing is
// stored and the previous in-memory state is kept.
func (m *Manager) Login(ctx context.Context, mail, password string) (Session, error) {
	mail = strings.TrimSpace(mail)
	if mail == "" || password == "" {
		return Session{}, fmt.Errorf("%w: mail and password are required", ErrInvalidInput)
	}

	res, err := m.auth.Login(ctx, mail, password)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %w", ErrAuthentication, err)
	}
	if res.AccessToken == "" {
		return Session{}, fmt.Errorf("%w: login response carried no access token", ErrAuthentication)
	}

	user, err := m.resolveUser(ctx, res)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %w", ErrAuthentication, err)
	}

	s := newSession(user, res.AccessToken, res.RefreshToken)
	values, err := encode(s)
	if err != nil {
		return Session{}, err
	}
	if m.vault != nil {
		sealed, err := m.sealCredentials(Credentials{Mail: mail, Password: password})
		if err != nil {
			return Session{}, err
		}
		values[KeyCredentials] = sealed
	}
	if err := m.store.SetMany(ctx, values); err != nil {
		return Session{}, fmt.Errorf("failed to persist session: %w", err)
	}

	m.set(&s)
	log.Info().Str("user_id", s.UserID()).Msg("Logged in")
	return s, nil
}

func (m *Manager) resolveUser(ctx context.Context, res AuthResult) (User, error) {
	if res.User != nil && res.User.ID != "" {
		return *res.User, nil
	}
	user, err := m.auth.Profile(ctx, res.AccessToken)
	if err != nil {
		return User{}, fmt.Errorf("failed to fetch profile: %w", err)
	}
	return user, nil
}

// Register creates an account. The backend answers with a confirmation
// pending message; no session is created.
func (m *Manager) Register(ctx context.Context, name, mail, password string) (string, error) {
	name = strings.TrimSpace(name)
	mail = strings.TrimSpace(mail)
	switch {
	case name == "":
		return "", fmt.Errorf("%w: name is required", ErrInvalidInput)
	case !mailRe.MatchString(mail):
		return "", fmt.Errorf("%w: %q is not a mail address", ErrInvalidInput, mail)
	case password == "":
		return "", fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	msg, err := m.auth.Signup(ctx, name, mail, password)
	if err != nil {
		return "", fmt.Errorf("signup: %w", err)
	}
	return msg, nil
}

// ConfirmOneTimeCode submits the 6 digit code sent by mail. The caller
// logs in afterwards.
func (m *Manager) ConfirmOneTimeCode(ctx context.Context, mail, code string) (string, error) {
	mail = strings.TrimSpace(mail)
	code = strings.TrimSpace(code)
	if mail == "" {
		return "", fmt.Errorf("%w: mail is required", ErrInvalidInput)
	}
	if !otpRe.MatchString(code) {
		return "", fmt.Errorf("%w: code must be 6 digits", ErrInvalidInput)
	}
	msg, err := m.auth.ConfirmAccount(ctx, mail, code)
	if err != nil {
		return "", fmt.Errorf("confirm account: %w", err)
	}
	return msg, nil
}

// Logout forgets the session in memory and in storage. Memory is cleared
// even if storage fails.
func (m *Manager) Logout(ctx context.Context) error {
	m.set(nil)
	if err := m.store.Remove(ctx, KeyAccessToken, KeyRefreshToken, KeyUser, KeyCredentials); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	log.Info().Msg("Logged out")
	return nil
}

// Restore loads the persisted session and checks it against the backend.
// A permission error clears it; any other error keeps it so that the app
// still starts offline.
func (m *Manager) Restore(ctx context.Context) (Session, bool, error) {
	access, ok, err := m.store.Get(ctx, KeyAccessToken)
	if err != nil {
		return Session{}, false, fmt.Errorf("failed to read session: %w", err)
	}
	if !ok || access == "" {
		return Session{}, false, nil
	}
	refresh, _, err := m.store.Get(ctx, KeyRefreshToken)
	if err != nil {
		return Session{}, false, fmt.Errorf("failed to read session: %w", err)
	}

	var user User
	hasUser := false
	if raw, ok, err := m.store.Get(ctx, KeyUser); err != nil {
		return Session{}, false, fmt.Errorf("failed to read session: %w", err)
	} else if ok {
		if err := json.Unmarshal([]byte(raw), &user); err != nil {
			log.Warn().Err(err).Msg("Stored user is not valid JSON, fetching profile again")
		} else {
			hasUser = user.ID != ""
		}
	}

	s := newSession(user, access, refresh)

	if s.Expired(m.now()) && s.RefreshToken != "" {
		res, err := m.auth.Refresh(ctx, s.RefreshToken)
		switch {
		case errors.Is(err, ErrPermissionDenied):
			log.Info().Msg("Stored refresh token rejected, clearing session")
			return Session{}, false, m.clear(ctx)
		case err != nil:
			log.Warn().Err(err).Msg("Could not refresh expired session, keeping stored session")
			m.set(&s)
			return s, true, nil
		}
		s = s.withTokens(res.AccessToken, res.RefreshToken)
		if err := m.persistTokens(ctx, s); err != nil {
			return Session{}, false, err
		}
	}

	profile, err := m.auth.Profile(ctx, s.AccessToken)
	switch {
	case errors.Is(err, ErrPermissionDenied):
		log.Info().Msg("Stored session rejected, clearing it")
		return Session{}, false, m.clear(ctx)
	case err != nil:
		log.Warn().Err(err).Bool("has_user", hasUser).Msg("Could not validate stored session, keeping it")
		m.set(&s)
		return s, true, nil
	}

	s.User = profile
	raw, err := json.Marshal(profile)
	if err != nil {
		return Session{}, false, fmt.Errorf("failed to marshal user: %w", err)
	}
	if err := m.store.SetMany(ctx, map[string]string{KeyUser: string(raw)}); err != nil {
		return Session{}, false, fmt.Errorf("failed to persist user: %w", err)
	}
	m.set(&s)
	return s, true, nil
}

func (m *Manager) clear(ctx context.Context) error {
	m.set(nil)
	if err := m.store.Remove(ctx, KeyAccessToken, KeyRefreshToken, KeyUser, KeyCredentials); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// Renew implements Source. It first presents the refresh token; if that
// is missing or rejected it logs in again with the cached credentials.
func (m *Manager) Renew(ctx context.Context, stale Session) (Session, error) {
	m.renewMu.Lock()
	defer m.renewMu.Unlock()

	cur, ok := m.Current()
	if !ok {
		return Session{}, ErrNoAccessToken
	}
	if cur.AccessToken != stale.AccessToken {
		return cur, nil
	}

	var lastErr error
	if cur.RefreshToken != "" {
		res, err := m.auth.Refresh(ctx, cur.RefreshToken)
		if err == nil && res.AccessToken != "" {
			next := cur.withTokens(res.AccessToken, res.RefreshToken)
			if res.User != nil && res.User.ID != "" {
				next.User = *res.User
			}
			if err := m.persistTokens(ctx, next); err != nil {
				return Session{}, err
			}
			m.set(&next)
			log.Debug().Str("user_id", next.UserID()).Msg("Session renewed with refresh token")
			return next, nil
		}
		if err == nil {
			err = errors.New("refresh response carried no access token")
		}
		log.Debug().Err(err).Msg("Refresh failed, trying cached credentials")
		lastErr = err
	}

	creds, ok, err := m.cachedCredentials(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Cached credentials unavailable")
	}
	if ok {
		res, err := m.auth.Login(ctx, creds.Mail, creds.Password)
		if err == nil && res.AccessToken != "" {
			next := cur.withTokens(res.AccessToken, res.RefreshToken)
			if res.User != nil && res.User.ID != "" {
				next.User = *res.User
			}
			if err := m.persistTokens(ctx, next); err != nil {
				return Session{}, err
			}
			m.set(&next)
			log.Debug().Str("user_id", next.UserID()).Msg("Session renewed with cached credentials")
			return next, nil
		}
		if err == nil {
			err = errors.New("login response carried no access token")
		}
		lastErr = err
	}

	if lastErr == nil {
		lastErr = errors.New("no refresh token or cached credentials")
	}
	return Session{}, fmt.Errorf("%w: renew session: %w", ErrAuthentication, lastErr)
}

func (m *Manager) persistTokens(ctx context.Context, s Session) error {
	values := map[string]string{KeyAccessToken: s.AccessToken, KeyRefreshToken: s.RefreshToken}
	if s.User.ID != "" {
		raw, err := json.Marshal(s.User)
		if err != nil {
			return fmt.Errorf("failed to marshal user: %w", err)
		}
		values[KeyUser] = string(raw)
	}
	if err := m.store.SetMany(ctx, values); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}
	return nil
}

func (m *Manager) sealCredentials(c Credentials) (string, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to marshal credentials: %w", err)
	}
	sealed, err := m.vault.Seal(raw)
	if err != nil {
		return "", fmt.Errorf("failed to seal credentials: %w", err)
	}
	return sealed, nil
}

func (m *Manager) cachedCredentials(ctx context.Context) (Credentials, bool, error) {
	if m.vault == nil {
		return Credentials{}, false, nil
	}
	sealed, ok, err := m.store.Get(ctx, KeyCredentials)
	if err != nil || !ok {
		return Credentials{}, false, err
	}
	raw, err := m.vault.Open(sealed)
	if err != nil {
		return Credentials{}, false, err
	}
	var c Credentials
	if err := json.Unmarshal(raw, &c); err != nil {
		return Credentials{}, false, fmt.Errorf("failed to unmarshal credentials: %w", err)
	}
	return c, c.Mail != "" && c.Password != "", nil
}

func encode(s Session) (map[string]string, error) {
	raw, err := json.Marshal(s.User)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal user: %w", err)
	}
	return map[string]string{
		KeyAccessToken:  s.AccessToken,
		KeyRefreshToken: s.RefreshToken,
		KeyUser:         string(raw),
	}, nil
}
