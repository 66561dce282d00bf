// Eventstats - Event Engagement Similarity and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventstats

/*
Package middleware provides the infrastructure middleware shared by the
collector and analyzer HTTP surfaces.

Key Components:

  - RequestID: UUID request ids, echoed in X-Request-ID and carried in the
    logging context
  - PrometheusMetrics: request counters and latency histograms labelled by
    chi route pattern
  - PerformanceMonitor: sliding window of request latencies with percentile
    stats and slow request logging

Every wrapper preserves http.Flusher so that the streamed NDJSON responses of
the analyzer reach the client line by line.

Middleware Stack:

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.PrometheusMetrics)
	r.Use(monitor.Middleware)
*/
package middleware
