// Curio - Retrieval Fusion and Personalized Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curio

// Package main is the entry point for the Curio server.
//
// Curio ranks a catalog of library works and external entries for a user,
// fusing text, tag and embedding retrieval channels and personalizing the
// result with tag affinity, visual clusters and an implicit feedback
// profile.
//
// # Startup Order
//
//  1. Configuration: koanf v2 (defaults, optional YAML, environment)
//  2. Catalog: DuckDB, optionally seeded from CATALOG_SEED_FILE
//  3. Feedback store: BadgerDB feedback log and profile vectors
//  4. Ranking: profile provider, recommendation and search engines
//  5. Event bus: watermill feedback.recorded router (EVENTS_ENABLED)
//  6. HTTP API and supervisor tree
//
// # Signal Handling
//
// SIGINT and SIGTERM cancel the supervisor tree. The HTTP server drains
// in-flight requests within SHUTDOWN_TIMEOUT, then the bus and the
// stores close.
//
// # Example Usage
//
//	export DUCKDB_PATH=/data/curio.duckdb
//	export BADGER_PATH=/data/feedback
//	export CATALOG_SEED_FILE=/data/seed.jsonl
//	export EMBED_ENABLED=true EMBED_URL=http://embedder:9000
//	./curio
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/curio/internal/config"
	"github.com/tomtom215/curio/internal/logging"
	"github.com/tomtom215/curio/internal/supervisor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Init(cfg.LoggingOptions())

	logging.Info().
		Str("addr", cfg.Server.Addr()).
		Str("catalog", cfg.Catalog.Path).
		Str("store", cfg.Store.Path).
		Bool("events", cfg.Events.Enabled).
		Bool("embed", cfg.Embed.Enabled).
		Msg("Starting Curio")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := newApp(ctx, cfg, logging.Logger())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize")
	}
	defer app.Close()

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(logging.WithComponent("supervisor")), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		app.Close()
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}
	app.register(tree)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	errCh := tree.ServeBackground(ctx)
	logging.Info().Str("addr", cfg.Server.Addr()).Msg("Supervisor tree started")

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
		cancel()
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 { //nolint:errcheck // report is best effort
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Curio stopped")
}
