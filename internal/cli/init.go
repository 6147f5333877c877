// Package cli provides common CLI initialization utilities shared by
// cmd/transactions and cmd/seed.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"transactions/internal/config"
	"transactions/internal/log"
)

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// installs it as the slog default. An unknown level falls back to info.
func SetupLogger() *log.Logger {
	level, err := log.ParseLevel(os.Getenv("LOG_LEVEL"))
	format := os.Getenv("LOG_FORMAT")

	logger := log.New(log.Config{
		Level:     level,
		Component: "app",
		Handler:   log.NewHandler(os.Stdout, format, level),
	})
	log.SetDefault(logger)

	if err != nil {
		logger.Warn("Falling back to info logging", log.FieldError, err.Error())
	}
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err.Error())
		os.Exit(1)
	}
	return cfg
}

// GracefulShutdown waits for SIGINT or SIGTERM, then runs shutdown with a
// context bounded by timeout. The returned channel closes once shutdown
// has returned.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, shutdown func(context.Context)) <-chan struct{} {
	done := make(chan struct{})

	go func() {
		defer close(done)

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if shutdown != nil {
			shutdown(ctx)
		}

		if ctx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
			return
		}
		logger.Info("Shutdown complete")
	}()

	return done
}
