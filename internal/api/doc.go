// Eventstats - Event Engagement Similarity and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventstats

/*
Package api provides the two HTTP surfaces of eventstats, both built on chi.

Collector (ingest):

	POST /api/v1/actions
	     {"userId":1,"eventId":10,"actionKind":"ACTION_LIKE","timestamp":"2026-01-02T15:04:05Z"}
	     204 on success, 400 on a bad request, 500 with the publish error otherwise

Analyzer (recommendation queries), each streamed as NDJSON, one
{"eventId":..,"score":..} object per line:

	GET /api/v1/users/{userId}/recommendations?limit=10
	GET /api/v1/events/{eventId}/similar?userId=1&limit=10
	GET /api/v1/events/interactions?ids=10,11,12

A query that fails before the first line is written is answered with a 500
JSON error envelope. A failure after streaming has started can only close the
connection early; clients detect it as a truncated stream.

Both surfaces also serve:

	GET /api/v1/health/live
	GET /api/v1/health/ready
	GET /metrics
*/
package api
