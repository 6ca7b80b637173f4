package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"recipe-companion/internal/app"
	"recipe-companion/internal/config"
)

var (
	apiURLFlag string
	debugFlag  bool
	jsonFlag   bool

	application *app.App

	rootCmd = &cobra.Command{
		Use:           "recipe-companion",
		Short:         "Command line client for the recipe app backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(cmd)
		},
	}
)

// skipRestore marks commands that work without a signed-in session.
const skipRestore = "skip-restore"

func main() {
	rootCmd.PersistentFlags().StringVar(&apiURLFlag, "api-url", "", "Backend base URL (overrides RECIPE_API_URL)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Log requests and responses")
	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "Print results as JSON")

	err := rootCmd.Execute()
	if application != nil {
		if cerr := application.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("Failed to close application")
		}
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command) error {
	cfg, err := config.NewFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if apiURLFlag != "" {
		cfg.APIURL = apiURLFlag
	}
	if debugFlag {
		cfg.LogLevel = "debug"
	}
	if err := config.InitLogger(cfg.LogLevel); err != nil {
		return err
	}

	ctx := ctxOf(cmd)
	application, err = app.New(ctx, cfg)
	if err != nil {
		return err
	}
	if cmd.Annotations[skipRestore] != "" {
		return nil
	}
	if _, ok, err := application.Restore(ctx); err != nil {
		// A backend outage keeps the stored session; the command itself
		// reports whatever fails next.
		log.Warn().Err(err).Msg("Could not verify the stored session")
	} else if !ok {
		log.Debug().Msg("Not signed in")
	}
	return nil
}

func ctxOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// output prints v as indented JSON with --json, otherwise runs the
// human-readable printer.
func output(v any, human func()) error {
	if !jsonFlag {
		human()
		return nil
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
