// Eventstats - Event Engagement Similarity and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventstats

// Command analyzer runs the eventstats analyzer.
//
// The analyzer persists actions and similarity scores to its store and serves
// recommendations, similar events, and interaction totals over HTTP.
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
	logging.Info().Str("role", string(app.RoleAnalyzer)).Msg("Starting eventstats")

	ctx, cancel := app.SignalContext(context.Background())
	defer cancel()

	if err := app.Run(ctx, cfg, app.RoleAnalyzer); err != nil {
		logging.Error().Err(err).Msg("Analyzer stopped with error")
		cancel()
		os.Exit(1)
	}
	logging.Info().Msg("Shutdown complete")
}
