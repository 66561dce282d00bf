// Eventstats - Event Engagement Similarity and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventstats

package database

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/tomtom215/eventstats/internal/models"
)

type interactionKey struct {
	user  int64
	event int64
}

// MemoryStore is a Store held in process memory. It orders results exactly
// like the SQL backends.
type MemoryStore struct {
	mu           sync.RWMutex
	interactions map[interactionKey]models.Interaction
	similarities map[models.PairKey]models.SimilarityUpdate
	closed       bool
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		interactions: make(map[interactionKey]models.Interaction),
		similarities: make(map[models.PairKey]models.SimilarityUpdate),
	}
}

// ProcessUserAction merges the action, keeping the maximum weight.
func (s *MemoryStore) ProcessUserAction(_ context.Context, action models.ActionEvent) error {
	in := models.InteractionFromAction(action)
	if in.Weight <= 0 {
		return fmt.Errorf("upsert interaction: %w: %q", models.ErrUnknownActionKind, action.Kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	key := interactionKey{user: in.UserID, event: in.EventID}
	if cur, ok := s.interactions[key]; ok && in.Weight <= cur.Weight {
		return nil
	}
	s.interactions[key] = in
	return nil
}

// ProcessEventSimilarity overwrites the row of the update's pair.
func (s *MemoryStore) ProcessEventSimilarity(_ context.Context, update models.SimilarityUpdate) error {
	u, err := models.NewSimilarityUpdate(update.EventLow, update.EventHigh, update.Score, update.ComputedAt)
	if err != nil {
		return fmt.Errorf("upsert similarity: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.similarities[u.Pair()] = u
	return nil
}

// SumInteractionWeights returns the total weight per event for eventIDs.
func (s *MemoryStore) SumInteractionWeights(_ context.Context, eventIDs []int64) (map[int64]float64, error) {
	totals := make(map[int64]float64)
	if len(eventIDs) == 0 {
		return totals, nil
	}
	wanted := toSet(eventIDs)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	for key, in := range s.interactions {
		if wanted[key.event] {
			totals[key.event] += in.Weight
		}
	}
	return totals, nil
}

// RecentEventIDs returns the user's most recently updated events.
func (s *MemoryStore) RecentEventIDs(_ context.Context, userID int64, limit int) ([]int64, error) {
	if limit <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	var mine []models.Interaction
	for key, in := range s.interactions {
		if key.user == userID {
			mine = append(mine, in)
		}
	}
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}

	sort.Slice(mine, func(i, j int) bool {
		if !mine[i].UpdatedAt.Equal(mine[j].UpdatedAt) {
			return mine[i].UpdatedAt.After(mine[j].UpdatedAt)
		}
		return mine[i].EventID > mine[j].EventID
	})
	if len(mine) > limit {
		mine = mine[:limit]
	}
	ids := make([]int64, len(mine))
	for i, in := range mine {
		ids[i] = in.EventID
	}
	return ids, nil
}

// SimilarExcluding returns the best scored neighbours of eventID not in exclude.
func (s *MemoryStore) SimilarExcluding(_ context.Context, eventID int64, exclude []int64, limit int) ([]models.ScoredEvent, error) {
	if limit <= 0 {
		return nil, nil
	}
	skip := toSet(exclude)

	s.mu.RLock()
	var out []models.ScoredEvent
	for key, u := range s.similarities {
		if !key.Contains(eventID) {
			continue
		}
		other := key.Other(eventID)
		if skip[other] {
			continue
		}
		out = append(out, models.ScoredEvent{EventID: other, Score: u.Score})
	}
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].EventID < out[j].EventID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Candidates returns the best rows with exactly one endpoint in interacted.
func (s *MemoryStore) Candidates(_ context.Context, interacted []int64, limit int) ([]models.SimilarityUpdate, error) {
	if limit <= 0 || len(interacted) == 0 {
		return nil, nil
	}
	in := toSet(interacted)
	return s.selectSimilarities(limit, func(key models.PairKey) bool {
		return in[key.Low] != in[key.High]
	})
}

// Links returns the best rows joining candidate to an event in interacted.
func (s *MemoryStore) Links(_ context.Context, candidate int64, interacted []int64, limit int) ([]models.SimilarityUpdate, error) {
	if limit <= 0 || len(interacted) == 0 {
		return nil, nil
	}
	in := toSet(interacted)
	return s.selectSimilarities(limit, func(key models.PairKey) bool {
		return key.Contains(candidate) && in[key.Other(candidate)]
	})
}

func (s *MemoryStore) selectSimilarities(limit int, match func(models.PairKey) bool) ([]models.SimilarityUpdate, error) {
	s.mu.RLock()
	var out []models.SimilarityUpdate
	for key, u := range s.similarities {
		if match(key) {
			out = append(out, u)
		}
	}
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].EventLow != out[j].EventLow {
			return out[i].EventLow < out[j].EventLow
		}
		return out[i].EventHigh < out[j].EventHigh
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// UserWeights returns the user's stored weights for eventIDs.
func (s *MemoryStore) UserWeights(_ context.Context, userID int64, eventIDs []int64) (map[int64]float64, error) {
	weights := make(map[int64]float64)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	for _, id := range eventIDs {
		if in, ok := s.interactions[interactionKey{user: userID, event: id}]; ok {
			weights[id] = in.Weight
		}
	}
	return weights, nil
}

// Ping reports whether the store is open.
func (s *MemoryStore) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Close marks the store closed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func toSet(ids []int64) map[int64]bool {
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
