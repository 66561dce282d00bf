// Eventstats - Event Engagement Similarity and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventstats

package database

import (
	"context"
	"fmt"
	"time"
)

// schemaContext returns a context with timeout for schema operations
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range tableCreationQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", query, err)
		}
	}
	return nil
}

func tableCreationQueries() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS interactions (
			user_id BIGINT NOT NULL,
			event_id BIGINT NOT NULL,
			weight DOUBLE NOT NULL,
			ts TIMESTAMP NOT NULL,
			PRIMARY KEY (user_id, event_id)
		)`,
		`CREATE TABLE IF NOT EXISTS similarities (
			event1 BIGINT NOT NULL,
			event2 BIGINT NOT NULL,
			similarity DOUBLE NOT NULL,
			ts TIMESTAMP NOT NULL,
			PRIMARY KEY (event1, event2)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_interactions_event ON interactions(event_id)`,
		`CREATE INDEX IF NOT EXISTS idx_similarities_event2 ON similarities(event2)`,
	}
}
