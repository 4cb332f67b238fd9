package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/tendant/linkvault/pkg/linkvault"
	"github.com/tendant/linkvault/pkg/linkvault/config"
)

func main() {
	help := flag.Bool("h", false, "print the environment variables read at startup")
	flag.Parse()
	if *help {
		config.EnvUsage(os.Stdout)
		return
	}

	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()

	serverConfig, err := config.Load(config.WithEnv())
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := newLogger(serverConfig)
	slog.SetDefault(logger)

	if err := run(serverConfig, logger); err != nil {
		logger.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.ServerConfig) *slog.Logger {
	if cfg.Environment == "development" {
		return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
			Level:      cfg.SlogLevel(),
			TimeFormat: time.Kitchen,
		}))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
}

func run(cfg *config.ServerConfig, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, closeStore, err := cfg.BuildService(ctx, logger)
	if err != nil {
		return fmt.Errorf("failed to build service: %w", err)
	}
	defer closeStore()

	if cfg.TokenAuth() == nil {
		logger.Warn("JWT_SECRET is not set, uploads are not authenticated")
	}

	sweeper := linkvault.NewSweeper(svc, cfg.SweepInterval, cfg.SweepStartupDelay, logger)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           NewHTTPServer(svc, cfg).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("LinkVault server starting",
			"port", cfg.Port,
			"env", cfg.Environment,
			"storage", cfg.Storage.Type,
			"database", cfg.DatabaseType,
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server exiting")
	return nil
}
