package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"transactions/internal/cli"
	"transactions/internal/config"
	apphttp "transactions/internal/http"
	"transactions/internal/log"
	"transactions/internal/seed"
	"transactions/internal/services"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	res := cli.OpenBackend(context.Background(), logger, cfg)
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err.Error())
		}
	}()

	svc := services.NewTransactionService(res.Store)
	loader := cli.NewSeedLoader(logger, cfg, res)

	seedOnStart(logger, cfg, svc, loader)

	srv := apphttp.NewServer(":"+cfg.Port, svc, loader, apphttp.Options{
		Logger:             logger,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitRPM:       cfg.RateLimitRPM,
		Pages: apphttp.PageDefaults{
			PerPage:    cfg.DefaultPerPage,
			MaxPerPage: cfg.MaxPerPage,
		},
	})

	done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err.Error())
		}
	})

	logger.Info("Starting transactions server",
		"port", cfg.Port,
		log.FieldBackend, cfg.DataBackend,
		"amqp_enabled", res.Publisher != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err.Error(), "port", cfg.Port)
		os.Exit(1)
	}

	<-done
	logger.Info("Server stopped gracefully")
}

// seedOnStart loads the dataset before serving when SEED_ON_START asks for
// it. A failed startup seed is logged and the server starts anyway.
func seedOnStart(logger *log.Logger, cfg *config.Config, svc *services.TransactionService, loader *seed.Loader) {
	ctx := context.Background()

	switch cfg.SeedOnStart {
	case config.SeedOnStartAlways:
	case config.SeedOnStartAuto:
		empty, err := svc.IsEmpty(ctx)
		if err != nil {
			logger.Warn("Could not check store contents, skipping startup seed", log.FieldError, err.Error())
			return
		}
		if !empty {
			logger.Info("Store already populated, skipping startup seed")
			return
		}
	default:
		return
	}

	if _, err := loader.Seed(ctx); err != nil {
		logger.Error("Startup seed failed", log.FieldError, err.Error(), log.FieldSeedURL, cfg.SeedURL)
	}
}
