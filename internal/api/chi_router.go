// Eventstats - Event Engagement Similarity and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventstats

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/eventstats/internal/middleware"
)

// newBaseRouter builds the middleware stack and the routes shared by both
// surfaces: health probes and /metrics.
func newBaseRouter(health *HealthHandler, mw *ChiMiddleware) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(mw.RateLimitHealth())
		r.Get("/live", health.Live)
		r.Get("/ready", health.Ready)
	})

	r.Handle("/metrics", promhttp.Handler())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})
	return r
}

// NewCollectorRouter returns the ingest surface.
func NewCollectorRouter(h *CollectorHandler, health *HealthHandler, mw *ChiMiddleware) http.Handler {
	r := newBaseRouter(health, mw)

	r.Group(func(r chi.Router) {
		r.Use(mw.RateLimit())
		r.Use(APISecurityHeaders())
		r.Use(middleware.PrometheusMetrics)
		r.Post("/api/v1/actions", h.CollectAction)
	})
	return r
}

// NewAnalyzerRouter returns the recommendation query surface. monitor may be
// nil.
func NewAnalyzerRouter(h *AnalyzerHandler, health *HealthHandler, mw *ChiMiddleware, monitor *middleware.PerformanceMonitor) http.Handler {
	r := newBaseRouter(health, mw)

	r.Group(func(r chi.Router) {
		r.Use(mw.RateLimit())
		r.Use(APISecurityHeaders())
		r.Use(middleware.PrometheusMetrics)
		if monitor != nil {
			r.Use(monitor.Middleware)
		}

		r.Get("/api/v1/users/{userId}/recommendations", h.Recommendations)
		r.Get("/api/v1/events/{eventId}/similar", h.SimilarEvents)
		r.Get("/api/v1/events/interactions", h.InteractionsCount)
	})
	return r
}
