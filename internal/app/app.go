package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"recipe-companion/internal/api"
	"recipe-companion/internal/clipper"
	"recipe-companion/internal/config"
	"recipe-companion/internal/database"
	"recipe-companion/internal/ideas"
	"recipe-companion/internal/llm"
	"recipe-companion/internal/metrics"
	"recipe-companion/internal/planner"
	"recipe-companion/internal/session"
	"recipe-companion/internal/storage"
	"recipe-companion/internal/vault"
)

// App holds the application's dependencies. The CLI and the Telegram bot
// are thin surfaces over its methods.
type App struct {
	cfg *config.Config

	db           *database.DB
	store        storage.Store
	metricsStore *metrics.Store
	session      *session.Manager
	client       *api.Client
	textGen      llm.TextGenerator
	mealPlanner  *planner.Planner
	clipper      *clipper.Clipper
	suggester    *ideas.Suggester

	now func() time.Time

	// groceryMu serializes read-modify-write cycles on the grocery list.
	groceryMu sync.Mutex
}

type settings struct {
	apiOptions []api.Option
	now        func() time.Time
	textGen    llm.TextGenerator
}

// Option customizes New.
type Option func(*settings)

// WithAPIOptions appends options to the ones derived from the config.
func WithAPIOptions(opts ...api.Option) Option {
	return func(s *settings) { s.apiOptions = append(s.apiOptions, opts...) }
}

// WithClock replaces time.Now, which decides what "today" is.
func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

// WithTextGenerator uses g instead of the configured LLM provider.
func WithTextGenerator(g llm.TextGenerator) Option {
	return func(s *settings) { s.textGen = g }
}

// New opens local storage and wires the API client, session manager and
// services. The persisted session is not restored; call Restore.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	st := settings{now: time.Now}
	for _, opt := range opts {
		opt(&st)
	}

	db, err := database.NewDB(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	a := &App{cfg: cfg, db: db, now: st.now}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	switch cfg.Storage {
	case config.StorageFile:
		fs, err := storage.NewFileStore(cfg.StorageDir())
		if err != nil {
			return nil, fmt.Errorf("failed to initialize file storage: %w", err)
		}
		a.store = fs
	default:
		a.store = storage.NewSQLStore(db.SQL)
	}
	a.metricsStore = metrics.NewStore(db.SQL)

	policy := api.DefaultRetryPolicy()
	policy.MaxAttempts = cfg.RetryMaxAttempts
	apiOptions := append([]api.Option{
		api.WithTimeout(cfg.HTTPTimeout),
		api.WithRetryPolicy(policy),
		api.WithCallRecorder(a.metricsStore),
		api.WithDebugLogging(cfg.LogLevel == "debug" || cfg.LogLevel == "trace"),
	}, st.apiOptions...)
	base, err := api.New(cfg.APIURL, apiOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}

	var sessionOptions []session.Option
	if cfg.VaultPassphrase != "" {
		v, err := vault.New(cfg.VaultPassphrase)
		if err != nil {
			return nil, err
		}
		sessionOptions = append(sessionOptions, session.WithVault(v))
	}
	a.session = session.NewManager(a.store, base, sessionOptions...)
	a.client = base.WithSession(a.session)

	a.textGen = st.textGen
	if a.textGen == nil {
		if a.textGen, err = llm.New(ctx, cfg.LLMProvider, cfg.LLMKey()); err != nil {
			return nil, err
		}
	}

	a.mealPlanner = planner.NewPlanner(a.client, a.client)
	a.clipper = clipper.NewClipper(a.textGen)
	a.suggester = ideas.NewSuggester(a.client, a.textGen)

	ok = true
	log.Debug().Str("api_url", cfg.APIURL).Str("storage", cfg.Storage).Bool("llm", a.textGen != nil).Msg("App initialized")
	return a, nil
}

// Close releases the database and the LLM client.
func (a *App) Close() error {
	var errs []error
	if c, ok := a.textGen.(llm.Closer); ok {
		errs = append(errs, c.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}

// API returns the session-bound backend client for plain pass-through calls.
func (a *App) API() *api.Client { return a.client }

// Config returns the configuration the app was built with.
func (a *App) Config() *config.Config { return a.cfg }

func (a *App) today() string {
	return planner.FormatDate(a.now())
}
