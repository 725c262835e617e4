package main

import (
	"context"
	"fmt"
	"os"

	"donation-payments/config"
	pgStorage "donation-payments/internal/adapter/storage/postgres"
	"donation-payments/pkg/logger"
)

const usage = "usage: migrate <up|down|status|version>"

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	command := os.Args[1]
	switch command {
	case "up", "down", "status", "version":
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load(os.Getenv("DPAY_CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.Component(logger.New(cfg.Log.Level, cfg.Log.Pretty), "migrate")
	ctx := context.Background()

	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	if err := pgStorage.Migrate(ctx, pool, command, os.Args[2:]...); err != nil {
		log.Error().Err(err).Str("command", command).Msg("migration failed")
		pool.Close()
		os.Exit(1)
	}
	log.Info().Str("command", command).Msg("migration finished")
}
