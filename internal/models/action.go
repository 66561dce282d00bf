// Eventstats - Event Engagement Similarity and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventstats

package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownActionKind is returned when an action kind is not one of VIEW, REGISTER, LIKE.
var ErrUnknownActionKind = errors.New("unknown action kind")

// ActionKind is the closed set of engagement signals a user can send for an event.
type ActionKind string

const (
	ActionView     ActionKind = "VIEW"
	ActionRegister ActionKind = "REGISTER"
	ActionLike     ActionKind = "LIKE"
)

// Action weights. A user's weight on an event is the maximum weight of any
// action they have sent for it.
const (
	WeightView     = 0.4
	WeightRegister = 0.8
	WeightLike     = 1.0
)

// ParseActionKind accepts the bare kind names as well as the ACTION_ prefixed
// names used by external clients. Matching is case-insensitive.
func ParseActionKind(s string) (ActionKind, error) {
	name := strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(s)), "ACTION_")
	kind := ActionKind(name)
	if !kind.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownActionKind, s)
	}
	return kind, nil
}

// Valid reports whether k is one of the three known kinds.
func (k ActionKind) Valid() bool {
	switch k {
	case ActionView, ActionRegister, ActionLike:
		return true
	default:
		return false
	}
}

// Weight returns the engagement weight of the kind, or 0 for an unknown kind.
func (k ActionKind) Weight() float64 {
	switch k {
	case ActionView:
		return WeightView
	case ActionRegister:
		return WeightRegister
	case ActionLike:
		return WeightLike
	default:
		return 0
	}
}

func (k ActionKind) String() string {
	return string(k)
}

// ActionEvent is one user engagement signal as carried on the action topic.
type ActionEvent struct {
	UserID     int64      `json:"userId"`
	EventID    int64      `json:"eventId"`
	Kind       ActionKind `json:"actionKind"`
	OccurredAt time.Time  `json:"timestamp"`
}

// Weight is shorthand for e.Kind.Weight().
func (e ActionEvent) Weight() float64 {
	return e.Kind.Weight()
}
