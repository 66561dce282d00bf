// Eventstats - Event Engagement Similarity and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventstats

package models

import "time"

// Interaction is the persisted maximum engagement weight of a user on an event.
// UpdatedAt only moves when Weight increases.
type Interaction struct {
	UserID    int64     `json:"user_id"`
	EventID   int64     `json:"event_id"`
	Weight    float64   `json:"weight"`
	UpdatedAt time.Time `json:"updated_at"`
}

// InteractionFromAction converts an action into the interaction it would
// produce on a first write.
func InteractionFromAction(a ActionEvent) Interaction {
	return Interaction{
		UserID:    a.UserID,
		EventID:   a.EventID,
		Weight:    a.Weight(),
		UpdatedAt: a.OccurredAt,
	}
}

// ScoredEvent is one entry of an ordered query result: a similarity score,
// an interaction total, or a predicted rating depending on the query.
type ScoredEvent struct {
	EventID int64   `json:"eventId"`
	Score   float64 `json:"score"`
}
