// Command seed replaces the configured store's dataset with the records at
// SEED_URL and exits.
package main

import (
	"context"
	"os"

	"transactions/internal/cli"
	"transactions/internal/log"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	res := cli.OpenBackend(context.Background(), logger, cfg)
	loader := cli.NewSeedLoader(logger, cfg, res)

	result, err := loader.Seed(context.Background())
	if cerr := res.Cleanup(); cerr != nil {
		logger.Warn("Backend cleanup failed", log.FieldError, cerr.Error())
	}
	if err != nil {
		logger.Error("Seeding failed", log.FieldError, err.Error(), log.FieldSeedURL, cfg.SeedURL)
		os.Exit(1)
	}

	logger.Info("Database seeded successfully",
		log.FieldBatchID, result.BatchID,
		log.FieldRows, result.Inserted,
		log.FieldDuration, result.Duration.Milliseconds())
}
