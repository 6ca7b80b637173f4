package config

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger points the global zerolog logger at stderr in a human
// readable format and sets the level.
func InitLogger(level string) error {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		NoColor:    true,
		TimeFormat: time.RFC3339,
	}).With().Timestamp().Logger()
	return SetLogLevel(level)
}

// SetLogLevel changes the global level. An empty level means info.
func SetLogLevel(level string) error {
	if level == "" {
		level = zerolog.LevelInfoValue
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zerolog.SetGlobalLevel(lvl)
	return nil
}
