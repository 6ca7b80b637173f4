package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"recipe-companion/internal/app"
	"recipe-companion/internal/config"
	"recipe-companion/internal/telegram"
)

const cleanupInterval = 24 * time.Hour

func main() {
	// 1. Load Configuration
	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if err := config.InitLogger(cfg.LogLevel); err != nil {
		log.Fatal().Err(err).Msg("Failed to init logger")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Wire the application and restore the stored session
	application, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer application.Close()

	if _, ok, err := application.Restore(ctx); err != nil {
		log.Warn().Err(err).Msg("Could not verify the stored session")
	} else if !ok {
		log.Warn().Msg("Not signed in; run `recipe-companion login` first")
	}

	// 3. Initialize Telegram Bot
	bot, err := telegram.NewBot(cfg, application)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize Telegram Bot")
	}

	go cleanupMetrics(ctx, application)

	// 4. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port),
		Handler:           bot.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.Port).Msg("Telegram Bot Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	bot.Wait()

	log.Info().Msg("Server exiting")
}

// cleanupMetrics drops expired call records once a day.
func cleanupMetrics(ctx context.Context, a *app.App) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		affected, err := a.CleanupMetrics(ctx, 0)
		if err != nil {
			log.Warn().Err(err).Msg("Metrics cleanup failed")
		} else if affected > 0 {
			log.Info().Int64("removed", affected).Msg("Old metric records removed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
