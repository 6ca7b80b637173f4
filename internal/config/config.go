package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Prefix is prepended to every variable name, e.g. RECIPE_API_URL.
// Variables with an explicit name also fall back to the bare name.
const Prefix = "RECIPE"

// Storage backends for device storage.
const (
	StorageSQLite = "sqlite"
	StorageFile   = "file"
)

// Config holds the configuration for the application.
type Config struct {
	APIURL  string `envconfig:"API_URL" default:"http://localhost:8080/api/v1"`
	DataDir string `envconfig:"DATA_DIR"`
	Storage string `envconfig:"STORAGE" default:"sqlite"`

	// VaultPassphrase seals the cached login credentials. Without it the
	// client cannot log in again on its own when a refresh fails.
	VaultPassphrase  string        `envconfig:"VAULT_PASSPHRASE"`
	HTTPTimeout      time.Duration `envconfig:"HTTP_TIMEOUT" default:"30s"`
	RetryMaxAttempts int           `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`
	LogLevel         string        `envconfig:"LOG_LEVEL" default:"info"`
	MetricsRetention int           `envconfig:"METRICS_RETENTION_DAYS" default:"30"`

	LLMProvider  string `envconfig:"LLM_PROVIDER"`
	GeminiAPIKey string `envconfig:"GEMINI_API_KEY"`
	GroqAPIKey   string `envconfig:"GROQ_API_KEY"`

	// Telegram Config
	TelegramBotToken       string  `envconfig:"TELEGRAM_BOT_TOKEN"`
	TelegramWebhookURL     string  `envconfig:"TELEGRAM_WEBHOOK_URL"`
	TelegramAllowedUserIDs []int64 `envconfig:"TELEGRAM_ALLOWED_USER_IDS"`
	Port                   int     `envconfig:"PORT" default:"8080"`
}

// NewFromEnv creates a new Config object from environment variables. A
// .env file in the working directory is loaded first when present; it
// never overrides variables already set.
func NewFromEnv() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}
	if err := cfg.resolve(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) resolve() error {
	c.APIURL = strings.TrimRight(strings.TrimSpace(c.APIURL), "/")
	if c.APIURL == "" {
		return notSet("API_URL")
	}

	if c.DataDir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return fmt.Errorf("%s_DATA_DIR environment variable not set and no user config dir: %w", Prefix, err)
		}
		c.DataDir = filepath.Join(base, "recipe-companion")
	}

	c.Storage = strings.ToLower(c.Storage)
	if c.Storage != StorageSQLite && c.Storage != StorageFile {
		return fmt.Errorf("unsupported %s_STORAGE: %s (want sqlite or file)", Prefix, c.Storage)
	}
	if c.RetryMaxAttempts < 1 {
		return fmt.Errorf("%s_RETRY_MAX_ATTEMPTS must be at least 1", Prefix)
	}

	c.LLMProvider = strings.ToLower(c.LLMProvider)
	switch c.LLMProvider {
	case "":
	case "gemini":
		if c.GeminiAPIKey == "" {
			return notSet("GEMINI_API_KEY")
		}
	case "groq":
		if c.GroqAPIKey == "" {
			return notSet("GROQ_API_KEY")
		}
	default:
		return fmt.Errorf("unsupported %s_LLM_PROVIDER: %s (want gemini or groq)", Prefix, c.LLMProvider)
	}
	return nil
}

// LLMKey returns the API key of the configured LLM provider.
func (c *Config) LLMKey() string {
	if c.LLMProvider == "groq" {
		return c.GroqAPIKey
	}
	return c.GeminiAPIKey
}

// RequireTelegram checks the settings the bot cannot start without.
func (c *Config) RequireTelegram() error {
	if c.TelegramBotToken == "" {
		return notSet("TELEGRAM_BOT_TOKEN")
	}
	if len(c.TelegramAllowedUserIDs) == 0 {
		return notSet("TELEGRAM_ALLOWED_USER_IDS")
	}
	return nil
}

// DBPath is the SQLite database holding device storage and API metrics.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "recipe-companion.db")
}

// StorageDir holds one file per key when Storage is "file".
func (c *Config) StorageDir() string {
	return filepath.Join(c.DataDir, "storage")
}

func notSet(name string) error {
	return fmt.Errorf("%s_%s environment variable not set", Prefix, name)
}
