// Eventstats - Event Engagement Similarity and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventstats

// Command eventstats runs several eventstats roles in one process.
//
// Roles are given as arguments, separately or comma separated. With no
// arguments every role runs:
//
//	eventstats                      # collector, aggregator, analyzer
//	eventstats collector,analyzer
//
// A single process is convenient for development with the embedded NATS
// server:
//
//	export BROKER_BACKEND=nats
//	export NATS_EMBEDDED=true
//	export NATS_STORE_DIR=/tmp/eventstats-nats
//	export DB_DRIVER=memory
//	./eventstats
package main

import (
	"context"
	"os"

	"github.com/tomtom215/eventstats/internal/app"
	"github.com/tomtom215/eventstats/internal/config"
	"github.com/tomtom215/eventstats/internal/logging"
)

func main() {
	roles, err := app.ParseRoles(os.Args[1:])
	if err != nil {
		logging.Fatal().Err(err).Msg("Invalid role")
	}

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Init(cfg.LoggingSettings())
	logging.Info().Int("roles", len(roles)).Msg("Starting eventstats")

	ctx, cancel := app.SignalContext(context.Background())
	defer cancel()

	if err := app.Run(ctx, cfg, roles...); err != nil {
		logging.Error().Err(err).Msg("Eventstats stopped with error")
		cancel()
		os.Exit(1)
	}
	logging.Info().Msg("Shutdown complete")
}
