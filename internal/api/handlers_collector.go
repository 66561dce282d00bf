// Eventstats - Event Engagement Similarity and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventstats

package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/eventstats/internal/eventprocessor"
	"github.com/tomtom215/eventstats/internal/logging"
	"github.com/tomtom215/eventstats/internal/models"
	"github.com/tomtom215/eventstats/internal/validation"
)

// maxActionBodyBytes bounds an ingest request body.
const maxActionBodyBytes = 4 << 10

// UserActionRequest is the ingest request body. The timestamp defaults to
// the time the collector received the request.
type UserActionRequest struct {
	UserID     *int64     `json:"userId" validate:"required"`
	EventID    *int64     `json:"eventId" validate:"required"`
	ActionKind string     `json:"actionKind" validate:"required,actionkind"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
}

// CollectorHandler publishes ingested actions to the action topic.
type CollectorHandler struct {
	producer eventprocessor.Producer
	topic    string
	now      func() time.Time
}

// NewCollectorHandler creates a handler publishing to topic.
func NewCollectorHandler(producer eventprocessor.Producer, topic string) *CollectorHandler {
	return &CollectorHandler{producer: producer, topic: topic, now: time.Now}
}

// CollectAction handles POST /api/v1/actions. The response is sent only
// after the broker has accepted the message.
func (h *CollectorHandler) CollectAction(w http.ResponseWriter, r *http.Request) {
	var req UserActionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxActionBodyBytes)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON request body", nil)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		apiErr := verr.ToAPIError()
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	action, err := req.toAction(h.now())
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	log := logging.Ctx(r.Context())
	payload, err := eventprocessor.EncodeAction(action)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error(), err)
		return
	}
	if err := eventprocessor.PublishOne(r.Context(), h.producer, h.topic, payload); err != nil {
		log.Error().Err(err).
			Int64("user_id", action.UserID).
			Int64("event_id", action.EventID).
			Msg("Failed to publish user action")
		respondError(w, http.StatusInternalServerError, "PUBLISH_FAILED", err.Error(), nil)
		return
	}

	log.Debug().
		Int64("user_id", action.UserID).
		Int64("event_id", action.EventID).
		Str("kind", action.Kind.String()).
		Msg("User action collected")
	w.WriteHeader(http.StatusNoContent)
}

func (req *UserActionRequest) toAction(received time.Time) (models.ActionEvent, error) {
	kind, err := models.ParseActionKind(req.ActionKind)
	if err != nil {
		return models.ActionEvent{}, err
	}
	at := received
	if req.Timestamp != nil && !req.Timestamp.IsZero() {
		at = *req.Timestamp
	}
	return models.ActionEvent{
		UserID:     *req.UserID,
		EventID:    *req.EventID,
		Kind:       kind,
		OccurredAt: at.UTC(),
	}, nil
}
