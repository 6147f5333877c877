package cli

import (
	"context"
	"os"

	"transactions/internal/backend"
	"transactions/internal/config"
	"transactions/internal/log"
	"transactions/internal/seed"
)

// OpenBackend opens the configured store and optional event publisher.
// Exits the process on failure.
func OpenBackend(ctx context.Context, logger *log.Logger, cfg *config.Config) *backend.BackendResult {
	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err.Error())
		os.Exit(1)
	}

	res, err := backend.NewFactory(logger).CreateBackend(ctx, backendConfig)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err.Error(), log.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}
	return res
}

// NewSeedLoader builds the loader for SEED_URL, publishing dataset.seeded
// events when the backend has a publisher.
func NewSeedLoader(logger *log.Logger, cfg *config.Config, res *backend.BackendResult) *seed.Loader {
	opts := []seed.Option{
		seed.WithTimeout(cfg.SeedTimeout),
		seed.WithLogger(logger),
	}
	if res.Publisher != nil {
		opts = append(opts, seed.WithNotifier(res.Publisher))
	}
	return seed.NewLoader(res.Store, cfg.SeedURL, opts...)
}
