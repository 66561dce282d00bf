// Eventstats - Event Engagement Similarity and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventstats

// Package models defines the data types shared by the eventstats pipeline:
// action events and their weights, similarity updates keyed by canonical
// event pairs, persisted interactions, and the HTTP response envelope.
package models
