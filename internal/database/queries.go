// Eventstats - Event Engagement Similarity and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventstats

package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/eventstats/internal/models"
)

// inList returns "?, ?, ?" for ids and the matching arguments.
func inList(ids []int64) (string, []interface{}) {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", "), args
}

// SumInteractionWeights returns the total interaction weight of each event
// in eventIDs that has any interactions.
func (db *DB) SumInteractionWeights(ctx context.Context, eventIDs []int64) (totals map[int64]float64, err error) {
	totals = make(map[int64]float64)
	if len(eventIDs) == 0 {
		return totals, nil
	}
	start := time.Now()
	defer func() { observe("sum_interaction_weights", start, err) }()

	in, args := inList(eventIDs)
	query := `SELECT event_id, SUM(weight) FROM interactions WHERE event_id IN (` + in + `) GROUP BY event_id`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sum interaction weights: %w", err)
	}
	defer closeWithLog(rows, "rows")

	for rows.Next() {
		var id int64
		var total float64
		if err := rows.Scan(&id, &total); err != nil {
			return nil, fmt.Errorf("scan interaction total: %w", err)
		}
		totals[id] = total
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate interaction totals: %w", err)
	}
	return totals, nil
}

// RecentEventIDs returns up to limit events the user interacted with, most
// recently updated first. Ties on ts break by descending event id.
func (db *DB) RecentEventIDs(ctx context.Context, userID int64, limit int) (ids []int64, err error) {
	if limit <= 0 {
		return nil, nil
	}
	start := time.Now()
	defer func() { observe("recent_event_ids", start, err) }()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT event_id FROM interactions
		WHERE user_id = ?
		ORDER BY ts DESC, event_id DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent events of user %d: %w", userID, err)
	}
	defer closeWithLog(rows, "rows")

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan recent event: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent events: %w", err)
	}
	return ids, nil
}

// SimilarExcluding returns up to limit events similar to eventID, best
// first, leaving out any event in exclude. Each result is keyed by the
// endpoint that is not eventID.
func (db *DB) SimilarExcluding(ctx context.Context, eventID int64, exclude []int64, limit int) (out []models.ScoredEvent, err error) {
	if limit <= 0 {
		return nil, nil
	}
	start := time.Now()
	defer func() { observe("similar_excluding", start, err) }()

	const other = `CASE WHEN event1 = ? THEN event2 ELSE event1 END`
	var b strings.Builder
	b.WriteString(`SELECT ` + other + ` AS other, similarity FROM similarities WHERE (event1 = ? OR event2 = ?)`)
	args := []interface{}{eventID, eventID, eventID}
	if len(exclude) > 0 {
		in, inArgs := inList(exclude)
		b.WriteString(` AND ` + other + ` NOT IN (` + in + `)`)
		args = append(args, eventID)
		args = append(args, inArgs...)
	}
	b.WriteString(` ORDER BY similarity DESC, other ASC LIMIT ?`)
	args = append(args, limit)

	rows, err := db.conn.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("events similar to %d: %w", eventID, err)
	}
	defer closeWithLog(rows, "rows")

	for rows.Next() {
		var e models.ScoredEvent
		if err := rows.Scan(&e.EventID, &e.Score); err != nil {
			return nil, fmt.Errorf("scan similar event: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate similar events: %w", err)
	}
	return out, nil
}

// Candidates returns up to limit similarity rows with exactly one endpoint
// in interacted, best first.
func (db *DB) Candidates(ctx context.Context, interacted []int64, limit int) (out []models.SimilarityUpdate, err error) {
	if limit <= 0 || len(interacted) == 0 {
		return nil, nil
	}
	start := time.Now()
	defer func() { observe("candidates", start, err) }()

	in, inArgs := inList(interacted)
	query := `SELECT event1, event2, similarity, ts FROM similarities
		WHERE (event1 IN (` + in + `) AND event2 NOT IN (` + in + `))
		   OR (event2 IN (` + in + `) AND event1 NOT IN (` + in + `))
		ORDER BY similarity DESC, event1 ASC, event2 ASC
		LIMIT ?`
	args := make([]interface{}, 0, 4*len(inArgs)+1)
	for i := 0; i < 4; i++ {
		args = append(args, inArgs...)
	}
	args = append(args, limit)

	out, err = db.querySimilarities(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("recommendation candidates: %w", err)
	}
	return out, nil
}

// Links returns up to limit similarity rows joining candidate to an event in
// interacted, best first.
func (db *DB) Links(ctx context.Context, candidate int64, interacted []int64, limit int) (out []models.SimilarityUpdate, err error) {
	if limit <= 0 || len(interacted) == 0 {
		return nil, nil
	}
	start := time.Now()
	defer func() { observe("links", start, err) }()

	in, inArgs := inList(interacted)
	query := `SELECT event1, event2, similarity, ts FROM similarities
		WHERE (event1 = ? AND event2 IN (` + in + `))
		   OR (event2 = ? AND event1 IN (` + in + `))
		ORDER BY similarity DESC, event1 ASC, event2 ASC
		LIMIT ?`
	args := make([]interface{}, 0, 2*len(inArgs)+3)
	args = append(args, candidate)
	args = append(args, inArgs...)
	args = append(args, candidate)
	args = append(args, inArgs...)
	args = append(args, limit)

	out, err = db.querySimilarities(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("links of candidate %d: %w", candidate, err)
	}
	return out, nil
}

func (db *DB) querySimilarities(ctx context.Context, query string, args ...interface{}) ([]models.SimilarityUpdate, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer closeWithLog(rows, "rows")
	return scanSimilarities(rows)
}

func scanSimilarities(rows *sql.Rows) ([]models.SimilarityUpdate, error) {
	var out []models.SimilarityUpdate
	for rows.Next() {
		var u models.SimilarityUpdate
		if err := rows.Scan(&u.EventLow, &u.EventHigh, &u.Score, &u.ComputedAt); err != nil {
			return nil, fmt.Errorf("scan similarity: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate similarities: %w", err)
	}
	return out, nil
}

// UserWeights returns the user's stored weight on each of eventIDs that has one.
func (db *DB) UserWeights(ctx context.Context, userID int64, eventIDs []int64) (weights map[int64]float64, err error) {
	weights = make(map[int64]float64)
	if len(eventIDs) == 0 {
		return weights, nil
	}
	start := time.Now()
	defer func() { observe("user_weights", start, err) }()

	in, inArgs := inList(eventIDs)
	args := append([]interface{}{userID}, inArgs...)
	rows, err := db.conn.QueryContext(ctx,
		`SELECT event_id, weight FROM interactions WHERE user_id = ? AND event_id IN (`+in+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("weights of user %d: %w", userID, err)
	}
	defer closeWithLog(rows, "rows")

	for rows.Next() {
		var id int64
		var w float64
		if err := rows.Scan(&id, &w); err != nil {
			return nil, fmt.Errorf("scan user weight: %w", err)
		}
		weights[id] = w
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user weights: %w", err)
	}
	return weights, nil
}
