// Eventstats - Event Engagement Similarity and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventstats

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/eventstats/internal/models"
)

// ProcessUserAction merges the action into the interactions table. The row
// changes only when the action's weight is strictly greater than the stored
// one.
func (db *DB) ProcessUserAction(ctx context.Context, action models.ActionEvent) (err error) {
	start := time.Now()
	defer func() { observe("upsert_interaction", start, err) }()

	in := models.InteractionFromAction(action)
	if in.Weight <= 0 {
		return fmt.Errorf("upsert interaction: %w: %q", models.ErrUnknownActionKind, action.Kind)
	}

	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO interactions (user_id, event_id, weight, ts)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, event_id) DO UPDATE SET
			weight = EXCLUDED.weight,
			ts = EXCLUDED.ts
		WHERE EXCLUDED.weight > interactions.weight`,
		in.UserID, in.EventID, in.Weight, in.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("upsert interaction (%d,%d): %w", in.UserID, in.EventID, err)
	}
	return nil
}

// ProcessEventSimilarity writes the update over any existing row for the
// pair. A non-canonical pair is stored under its canonical key.
func (db *DB) ProcessEventSimilarity(ctx context.Context, update models.SimilarityUpdate) (err error) {
	start := time.Now()
	defer func() { observe("upsert_similarity", start, err) }()

	if update.EventLow == update.EventHigh {
		return fmt.Errorf("upsert similarity: %w: %d", models.ErrSelfSimilarity, update.EventLow)
	}
	key := models.NewPairKey(update.EventLow, update.EventHigh)

	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO similarities (event1, event2, similarity, ts)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (event1, event2) DO UPDATE SET
			similarity = EXCLUDED.similarity,
			ts = EXCLUDED.ts`,
		key.Low, key.High, update.Score, update.ComputedAt.UTC())
	if err != nil {
		return fmt.Errorf("upsert similarity %s: %w", key, err)
	}
	return nil
}
