// Eventstats - Event Engagement Similarity and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventstats

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/eventstats/internal/logging"
	"github.com/tomtom215/eventstats/internal/models"
	"github.com/tomtom215/eventstats/internal/validation"
)

// Query limits.
const (
	DefaultQueryLimit = 10
	MaxQueryLimit     = 1000
	MaxInteractionIDs = 1000
)

// Querier runs the three recommendation queries. recommend.Engine
// implements it.
type Querier interface {
	Recommendations(ctx context.Context, userID int64, limit int) ([]models.ScoredEvent, error)
	SimilarEvents(ctx context.Context, eventID, userID int64, limit int) ([]models.ScoredEvent, error)
	InteractionsCount(ctx context.Context, eventIDs []int64) ([]models.ScoredEvent, error)
}

// RecommendationsQuery holds the parameters of the recommendations route.
type RecommendationsQuery struct {
	UserID int64 `json:"userId"`
	Limit  int   `json:"limit" validate:"lte=1000"`
}

// SimilarEventsQuery holds the parameters of the similar events route.
type SimilarEventsQuery struct {
	EventID int64 `json:"eventId"`
	UserID  int64 `json:"userId"`
	Limit   int   `json:"limit" validate:"lte=1000"`
}

// InteractionsQuery holds the parameters of the interactions route.
type InteractionsQuery struct {
	IDs []int64 `json:"ids" validate:"max=1000"`
}

// AnalyzerHandler serves the recommendation queries as NDJSON streams.
type AnalyzerHandler struct {
	querier Querier
}

// NewAnalyzerHandler creates a handler over q.
func NewAnalyzerHandler(q Querier) *AnalyzerHandler {
	return &AnalyzerHandler{querier: q}
}

// Recommendations handles GET /api/v1/users/{userId}/recommendations.
func (h *AnalyzerHandler) Recommendations(w http.ResponseWriter, r *http.Request) {
	var q RecommendationsQuery
	var err error
	if q.UserID, err = parseInt64("userId", chi.URLParam(r, "userId")); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	if q.Limit, err = getIntParam(r, "limit", DefaultQueryLimit); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	if !validQuery(w, &q) {
		return
	}

	start := time.Now()
	results, err := h.querier.Recommendations(r.Context(), q.UserID, q.Limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "QUERY_FAILED", err.Error(), err)
		return
	}
	logging.Ctx(r.Context()).Info().
		Int64("user_id", q.UserID).
		Int("limit", q.Limit).
		Int("results", len(results)).
		Dur("duration", time.Since(start)).
		Msg("Recommendations served")
	streamScores(r.Context(), w, results)
}

// SimilarEvents handles GET /api/v1/events/{eventId}/similar?userId=.
func (h *AnalyzerHandler) SimilarEvents(w http.ResponseWriter, r *http.Request) {
	var q SimilarEventsQuery
	var err error
	if q.EventID, err = parseInt64("eventId", chi.URLParam(r, "eventId")); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	if q.UserID, err = parseInt64("userId", r.URL.Query().Get("userId")); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	if q.Limit, err = getIntParam(r, "limit", DefaultQueryLimit); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	if !validQuery(w, &q) {
		return
	}

	start := time.Now()
	results, err := h.querier.SimilarEvents(r.Context(), q.EventID, q.UserID, q.Limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "QUERY_FAILED", err.Error(), err)
		return
	}
	logging.Ctx(r.Context()).Info().
		Int64("event_id", q.EventID).
		Int64("user_id", q.UserID).
		Int("results", len(results)).
		Dur("duration", time.Since(start)).
		Msg("Similar events served")
	streamScores(r.Context(), w, results)
}

// InteractionsCount handles GET /api/v1/events/interactions?ids=.
func (h *AnalyzerHandler) InteractionsCount(w http.ResponseWriter, r *http.Request) {
	var q InteractionsQuery
	var err error
	if q.IDs, err = getInt64ListParam(r, "ids"); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	if !validQuery(w, &q) {
		return
	}

	results, err := h.querier.InteractionsCount(r.Context(), q.IDs)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "QUERY_FAILED", err.Error(), err)
		return
	}
	logging.Ctx(r.Context()).Debug().
		Int("requested", len(q.IDs)).
		Int("results", len(results)).
		Msg("Interaction totals served")
	streamScores(r.Context(), w, results)
}

func validQuery(w http.ResponseWriter, q interface{}) bool {
	if verr := validation.ValidateStruct(q); verr != nil {
		apiErr := verr.ToAPIError()
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return false
	}
	return true
}

// streamScores writes one JSON object per line and flushes after each, so a
// client can consume results as they arrive. An empty result is a 200 with
// an empty body.
func streamScores(ctx context.Context, w http.ResponseWriter, results []models.ScoredEvent) {
	w.Header().Set("Content-Type", ContentTypeNDJSON)
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)
	for i := range results {
		if ctx.Err() != nil {
			return
		}
		if err := enc.Encode(&results[i]); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Int("written", i).Msg("Client stream closed early")
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}
