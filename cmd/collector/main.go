// Eventstats - Event Engagement Similarity and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventstats

// Command collector runs the eventstats collector.
//
// The collector accepts user actions over HTTP (POST /api/v1/actions) and
// publishes them to the action topic.
//
// Configuration comes from built-in defaults, an optional config.yaml (or the
// file named by CONFIG_PATH), and environment variables, highest last.
// SIGINT and SIGTERM trigger a graceful shutdown.
package main

import (
	"context"
	"os"

	"github.com/tomtom215/eventstats/internal/app"
	"github.com/tomtom215/eventstats/internal/config"
	"github.com/tomtom215/eventstats/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Init(cfg.LoggingSettings())
	logging.Info().Str("role", string(app.RoleCollector)).Msg("Starting eventstats")

	ctx, cancel := app.SignalContext(context.Background())
	defer cancel()

	if err := app.Run(ctx, cfg, app.RoleCollector); err != nil {
		logging.Error().Err(err).Msg("Collector stopped with error")
		cancel()
		os.Exit(1)
	}
	logging.Info().Msg("Shutdown complete")
}
