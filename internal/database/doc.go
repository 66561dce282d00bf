// Eventstats - Event Engagement Similarity and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventstats

// Package database persists interactions and similarities and answers the
// read queries of the recommendation engine.
//
// # Tables
//
//	interactions(user_id, event_id, weight, ts)    unique (user_id, event_id)
//	similarities(event1, event2, similarity, ts)   unique (event1, event2)
//
// The writers keep event1 < event2; the schema does not enforce it.
//
// # Write Semantics
//
// ProcessUserAction is a monotone merge: the stored weight is the maximum
// action weight seen for the pair, and ts only moves when the weight grows.
// ProcessEventSimilarity overwrites unconditionally, so the last applied
// update wins. Both are idempotent, which is what lets the store workers
// run at-least-once.
//
// # Backends
//
//   - duckdb: the default, through github.com/duckdb/duckdb-go/v2
//   - sqlite3: a single-connection SQLite file through github.com/mattn/go-sqlite3
//   - memory: MemoryStore, for tests and the all-in-one binary
//
// The SQL backends share one set of statements; both dialects accept ?
// placeholders and ON CONFLICT ... DO UPDATE ... WHERE.
package database
