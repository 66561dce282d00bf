// Eventstats - Event Engagement Similarity and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventstats

package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrSelfSimilarity is returned when a similarity edge would join an event to itself.
var ErrSelfSimilarity = errors.New("similarity requires two distinct events")

// PairKey identifies an unordered pair of events. Low is always less than High.
type PairKey struct {
	Low  int64
	High int64
}

// NewPairKey orders a and b numerically. The caller guarantees a != b.
func NewPairKey(a, b int64) PairKey {
	if a < b {
		return PairKey{Low: a, High: b}
	}
	return PairKey{Low: b, High: a}
}

// Other returns the endpoint of the pair that is not id.
func (p PairKey) Other(id int64) int64 {
	if p.Low == id {
		return p.High
	}
	return p.Low
}

// Contains reports whether id is one of the endpoints.
func (p PairKey) Contains(id int64) bool {
	return p.Low == id || p.High == id
}

func (p PairKey) String() string {
	return fmt.Sprintf("{%d,%d}", p.Low, p.High)
}

// SimilarityUpdate is the current similarity score of an unordered event pair.
// It is both the message on the similarity topic and the persisted row; later
// updates for the same pair supersede earlier ones.
type SimilarityUpdate struct {
	EventLow   int64     `json:"eventA"`
	EventHigh  int64     `json:"eventB"`
	Score      float64   `json:"score"`
	ComputedAt time.Time `json:"timestamp"`
}

// NewSimilarityUpdate builds an update for the pair {a,b} in canonical order.
func NewSimilarityUpdate(a, b int64, score float64, at time.Time) (SimilarityUpdate, error) {
	if a == b {
		return SimilarityUpdate{}, fmt.Errorf("%w: event %d", ErrSelfSimilarity, a)
	}
	key := NewPairKey(a, b)
	return SimilarityUpdate{EventLow: key.Low, EventHigh: key.High, Score: score, ComputedAt: at}, nil
}

// Pair returns the canonical key of the update.
func (u SimilarityUpdate) Pair() PairKey {
	return PairKey{Low: u.EventLow, High: u.EventHigh}
}

// Canonical reports whether EventLow < EventHigh.
func (u SimilarityUpdate) Canonical() bool {
	return u.EventLow < u.EventHigh
}
