// Eventstats - Event Engagement Similarity and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventstats

// Package recommend answers the three read queries over the interaction and
// similarity tables: interaction totals, events similar to an event, and
// personalized recommendations.
//
// Personalized recommendations are item-based collaborative filtering. The
// user's most recent events form the interacted set I. Candidates are events
// joined to I by a similarity row, taken best row first. A candidate's
// predicted rating is the similarity-weighted mean of the user's weights on
// the events of I it is linked to:
//
//	predicted(c) = Σ sim(c,i)·w(i) / Σ sim(c,i)
//
// Results keep the candidate order of the similarity query; they are not
// re-sorted by predicted rating.
package recommend

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tomtom215/eventstats/internal/cache"
	"github.com/tomtom215/eventstats/internal/models"
)

// MaxLinksPerCandidate bounds the similarity rows used to predict one
// candidate's rating.
const MaxLinksPerCandidate = 10

// Store is the subset of the database the engine uses.
type Store interface {
	ProcessUserAction(ctx context.Context, action models.ActionEvent) error
	ProcessEventSimilarity(ctx context.Context, update models.SimilarityUpdate) error

	SumInteractionWeights(ctx context.Context, eventIDs []int64) (map[int64]float64, error)
	RecentEventIDs(ctx context.Context, userID int64, limit int) ([]int64, error)
	SimilarExcluding(ctx context.Context, eventID int64, exclude []int64, limit int) ([]models.ScoredEvent, error)
	Candidates(ctx context.Context, interacted []int64, limit int) ([]models.SimilarityUpdate, error)
	Links(ctx context.Context, candidate int64, interacted []int64, limit int) ([]models.SimilarityUpdate, error)
	UserWeights(ctx context.Context, userID int64, eventIDs []int64) (map[int64]float64, error)
}

// Engine runs the read queries. It is safe for concurrent use.
type Engine struct {
	store  Store
	totals cache.TotalsCache
	logger zerolog.Logger
}

// NewEngine creates an engine over store. totals may be nil.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewEngine(store Store, totals cache.TotalsCache, logger zerolog.Logger) *Engine {
	return &Engine{
		store:  store,
		totals: totals,
		logger: logger.With().Str("component", "recommend").Logger(),
	}
}

// InteractionsCount returns the total interaction weight of each distinct id
// in eventIDs, in first-occurrence order. Events without interactions are
// left out. An empty input never reaches the store.
func (e *Engine) InteractionsCount(ctx context.Context, eventIDs []int64) ([]models.ScoredEvent, error) {
	ids := dedupe(eventIDs)
	if len(ids) == 0 {
		return nil, nil
	}

	totals, err := e.lookupTotals(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]models.ScoredEvent, 0, len(totals))
	for _, id := range ids {
		if total, ok := totals[id]; ok {
			out = append(out, models.ScoredEvent{EventID: id, Score: total})
		}
	}
	return out, nil
}

// ProcessUserAction upserts the interaction and evicts the event's cached
// total. The interaction store worker writes through here so that totals
// served by this process follow the table.
func (e *Engine) ProcessUserAction(ctx context.Context, action models.ActionEvent) error {
	if err := e.store.ProcessUserAction(ctx, action); err != nil {
		return err
	}
	if e.totals == nil {
		return nil
	}
	if err := e.totals.Delete(ctx, []int64{action.EventID}); err != nil {
		// The entry still expires after the TTL.
		e.logger.Warn().Err(err).Int64("event_id", action.EventID).Msg("Totals cache eviction failed")
	}
	return nil
}

// ProcessEventSimilarity upserts the similarity row. Nothing derived from
// similarities is cached.
func (e *Engine) ProcessEventSimilarity(ctx context.Context, update models.SimilarityUpdate) error {
	return e.store.ProcessEventSimilarity(ctx, update)
}

// lookupTotals serves what it can from the cache and asks the store for the
// rest. Cache failures fall through to the store.
func (e *Engine) lookupTotals(ctx context.Context, ids []int64) (map[int64]float64, error) {
	if e.totals == nil {
		totals, err := e.store.SumInteractionWeights(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("interaction totals: %w", err)
		}
		return totals, nil
	}

	hits, misses, err := e.totals.GetMany(ctx, ids)
	if err != nil {
		e.logger.Warn().Err(err).Msg("Totals cache read failed")
		hits, misses = map[int64]float64{}, ids
	}
	if len(misses) == 0 {
		return hits, nil
	}

	fresh, err := e.store.SumInteractionWeights(ctx, misses)
	if err != nil {
		return nil, fmt.Errorf("interaction totals: %w", err)
	}
	if err := e.totals.SetMany(ctx, fresh); err != nil {
		e.logger.Warn().Err(err).Msg("Totals cache write failed")
	}
	for id, total := range fresh {
		hits[id] = total
	}
	return hits, nil
}

// SimilarEvents returns up to limit events most similar to eventID, leaving
// out the user's limit most recent events.
func (e *Engine) SimilarEvents(ctx context.Context, eventID, userID int64, limit int) ([]models.ScoredEvent, error) {
	if limit <= 0 {
		return nil, nil
	}
	recent, err := e.store.RecentEventIDs(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("similar events: %w", err)
	}
	similar, err := e.store.SimilarExcluding(ctx, eventID, recent, limit)
	if err != nil {
		return nil, fmt.Errorf("similar events: %w", err)
	}
	return similar, nil
}

// Recommendations returns up to limit events the user has not recently
// interacted with, each with its predicted rating, in candidate order.
func (e *Engine) Recommendations(ctx context.Context, userID int64, limit int) ([]models.ScoredEvent, error) {
	if limit <= 0 {
		return nil, nil
	}
	interacted, err := e.store.RecentEventIDs(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("recommendations: %w", err)
	}
	if len(interacted) == 0 {
		return nil, nil
	}
	inSet := make(map[int64]bool, len(interacted))
	for _, id := range interacted {
		inSet[id] = true
	}

	rows, err := e.store.Candidates(ctx, interacted, limit)
	if err != nil {
		return nil, fmt.Errorf("recommendations: %w", err)
	}

	var out []models.ScoredEvent
	considered := make(map[int64]bool, len(rows))
	for _, row := range rows {
		candidate, ok := candidateOf(row.Pair(), inSet)
		if !ok || considered[candidate] {
			continue
		}
		considered[candidate] = true

		predicted, ok, err := e.predict(ctx, userID, candidate, interacted)
		if err != nil {
			return nil, fmt.Errorf("recommendations: %w", err)
		}
		if !ok || predicted < 0 {
			continue
		}
		out = append(out, models.ScoredEvent{EventID: candidate, Score: predicted})
		if len(out) == limit {
			break
		}
	}

	e.logger.Debug().
		Int64("user_id", userID).
		Int("interacted", len(interacted)).
		Int("candidates", len(rows)).
		Int("returned", len(out)).
		Msg("Recommendations computed")
	return out, nil
}

// predict computes the candidate's rating from its links to interacted. It
// reports false when there is no usable link.
func (e *Engine) predict(ctx context.Context, userID, candidate int64, interacted []int64) (float64, bool, error) {
	links, err := e.store.Links(ctx, candidate, interacted, MaxLinksPerCandidate)
	if err != nil {
		return 0, false, err
	}
	if len(links) == 0 {
		return 0, false, nil
	}

	linked := make([]int64, len(links))
	for i, l := range links {
		linked[i] = l.Pair().Other(candidate)
	}
	weights, err := e.store.UserWeights(ctx, userID, linked)
	if err != nil {
		return 0, false, err
	}

	var num, den float64
	for i, l := range links {
		w, ok := weights[linked[i]]
		if !ok {
			continue
		}
		num += l.Score * w
		den += l.Score
	}
	if den == 0 {
		return 0, false, nil
	}
	return num / den, true, nil
}

// candidateOf returns the endpoint of key outside the interacted set, when
// exactly one endpoint is outside it.
func candidateOf(key models.PairKey, interacted map[int64]bool) (int64, bool) {
	lowIn, highIn := interacted[key.Low], interacted[key.High]
	switch {
	case lowIn && !highIn:
		return key.High, true
	case highIn && !lowIn:
		return key.Low, true
	default:
		return 0, false
	}
}

func dedupe(ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
