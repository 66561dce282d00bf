// Eventstats - Event Engagement Similarity and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventstats

// Package aggregator maintains event-to-event cosine similarity incrementally
// from the stream of user actions.
//
// Each user's weight on an event is the maximum weight of the actions they
// sent for it. Treating an event as the vector of its users' weights, the
// similarity of events a and b is
//
//	score{a,b} = sharedMin{a,b} / sqrt(total[a] * total[b])
//
// where total[e] is the sum of weights on e and sharedMin{a,b} is the sum over
// users of min(weight on a, weight on b). Matrix keeps total and sharedMin up
// to date one action at a time, so the score after any prefix of the stream
// equals a batch computation over that prefix.
//
// The matrix lives only in memory and grows with the catalog. It is rebuilt
// by replaying the action topic; there is no snapshot.
package aggregator

import (
	"fmt"
	"math"
	"time"

	"github.com/tomtom215/eventstats/internal/models"
)

// ApplyResult describes the effect of one action on the matrix.
type ApplyResult struct {
	// Updates holds the new score of every pair the action touched.
	Updates []models.SimilarityUpdate

	// Changed is false when the action did not raise the user's weight.
	Changed bool
}

// Matrix is the incremental similarity state. It is not safe for concurrent
// use; the aggregator loop is its only writer.
type Matrix struct {
	userWeight  map[int64]map[int64]float64 // event -> user -> weight
	totalWeight map[int64]float64           // event -> sum of user weights
	sharedMin   map[models.PairKey]float64  // pair -> sum of per-user minimums

	// events lists known events in first-seen order so that emission order
	// is deterministic.
	events []int64

	now func() time.Time
}

// NewMatrix creates an empty matrix.
func NewMatrix() *Matrix {
	return &Matrix{
		userWeight:  make(map[int64]map[int64]float64),
		totalWeight: make(map[int64]float64),
		sharedMin:   make(map[models.PairKey]float64),
		now:         time.Now,
	}
}

// SetClock replaces the clock used to stamp updates.
func (m *Matrix) SetClock(now func() time.Time) {
	m.now = now
}

// Apply folds one action into the matrix and returns the similarity updates
// it causes. Every update reflects the state after this action.
func (m *Matrix) Apply(a models.ActionEvent) (ApplyResult, error) {
	if !a.Kind.Valid() {
		return ApplyResult{}, fmt.Errorf("apply action: %w: %q", models.ErrUnknownActionKind, a.Kind)
	}
	users, seen := m.userWeight[a.EventID]
	if !seen {
		return m.applyNewEvent(a.EventID, a.UserID, a.Weight()), nil
	}

	old := users[a.UserID]
	updated := math.Max(old, a.Weight())
	if updated == old {
		return ApplyResult{}, nil
	}

	users[a.UserID] = updated
	m.totalWeight[a.EventID] += updated - old

	at := m.now()
	var updates []models.SimilarityUpdate
	for _, other := range m.events {
		if other == a.EventID {
			continue
		}
		w, ok := m.userWeight[other][a.UserID]
		if !ok {
			continue
		}
		key := models.NewPairKey(a.EventID, other)
		m.sharedMin[key] += math.Min(updated, w) - math.Min(old, w)
		updates = append(updates, m.update(key, at))
	}
	return ApplyResult{Updates: updates, Changed: true}, nil
}

func (m *Matrix) applyNewEvent(event, user int64, weight float64) ApplyResult {
	m.userWeight[event] = map[int64]float64{user: weight}
	m.totalWeight[event] = weight
	m.events = append(m.events, event)

	at := m.now()
	var updates []models.SimilarityUpdate
	for _, other := range m.events {
		if other == event {
			continue
		}
		w := m.userWeight[other][user]
		if w == 0 {
			continue
		}
		key := models.NewPairKey(event, other)
		m.sharedMin[key] = math.Min(weight, w)
		updates = append(updates, m.update(key, at))
	}
	return ApplyResult{Updates: updates, Changed: true}
}

func (m *Matrix) update(key models.PairKey, at time.Time) models.SimilarityUpdate {
	return models.SimilarityUpdate{
		EventLow:   key.Low,
		EventHigh:  key.High,
		Score:      m.score(key),
		ComputedAt: at,
	}
}

func (m *Matrix) score(key models.PairKey) float64 {
	denom := math.Sqrt(m.totalWeight[key.Low] * m.totalWeight[key.High])
	if denom == 0 {
		return 0
	}
	return m.sharedMin[key] / denom
}

// Score returns the current similarity of a and b, and whether the pair has
// any shared weight.
func (m *Matrix) Score(a, b int64) (float64, bool) {
	if a == b {
		return 0, false
	}
	key := models.NewPairKey(a, b)
	if _, ok := m.sharedMin[key]; !ok {
		return 0, false
	}
	return m.score(key), true
}

// TotalWeight returns the sum of user weights on event.
func (m *Matrix) TotalWeight(event int64) float64 {
	return m.totalWeight[event]
}

// SharedMinWeight returns the sum over users of min(weight on a, weight on b).
func (m *Matrix) SharedMinWeight(a, b int64) float64 {
	if a == b {
		return 0
	}
	return m.sharedMin[models.NewPairKey(a, b)]
}

// UserWeight returns the user's current weight on event, or 0.
func (m *Matrix) UserWeight(event, user int64) float64 {
	return m.userWeight[event][user]
}

// Size returns the number of known events and of pairs with shared weight.
func (m *Matrix) Size() (events, pairs int) {
	return len(m.events), len(m.sharedMin)
}
