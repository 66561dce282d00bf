// Eventstats - Event Engagement Similarity and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventstats

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordAggregatorAction(t *testing.T) {
	consumed := testutil.ToFloat64(AggregatorActionsConsumed)
	ignored := testutil.ToFloat64(AggregatorActionsIgnored)
	emitted := testutil.ToFloat64(AggregatorUpdatesEmitted)

	RecordAggregatorAction(3, true)
	RecordAggregatorAction(0, false)

	if got := testutil.ToFloat64(AggregatorActionsConsumed) - consumed; got != 2 {
		t.Errorf("consumed delta = %v, want 2", got)
	}
	if got := testutil.ToFloat64(AggregatorActionsIgnored) - ignored; got != 1 {
		t.Errorf("ignored delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(AggregatorUpdatesEmitted) - emitted; got != 3 {
		t.Errorf("emitted delta = %v, want 3", got)
	}
}

func TestRecordWorkerRecord(t *testing.T) {
	applied := testutil.ToFloat64(WorkerRecordsApplied.WithLabelValues("test-worker"))
	failed := testutil.ToFloat64(WorkerRecordsFailed.WithLabelValues("test-worker"))

	RecordWorkerRecord("test-worker", nil)
	RecordWorkerRecord("test-worker", errors.New("db down"))

	if got := testutil.ToFloat64(WorkerRecordsApplied.WithLabelValues("test-worker")) - applied; got != 1 {
		t.Errorf("applied delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(WorkerRecordsFailed.WithLabelValues("test-worker")) - failed; got != 1 {
		t.Errorf("failed delta = %v, want 1", got)
	}
}

func TestRecordMatrixSize(t *testing.T) {
	RecordMatrixSize(12, 30)
	if got := testutil.ToFloat64(AggregatorKnownEvents); got != 12 {
		t.Errorf("known events = %v, want 12", got)
	}
	if got := testutil.ToFloat64(AggregatorKnownPairs); got != 30 {
		t.Errorf("known pairs = %v, want 30", got)
	}
}

func TestRecordStoreOperationCountsErrors(t *testing.T) {
	before := testutil.ToFloat64(StoreOperationErrors.WithLabelValues("upsert_interaction_test"))
	RecordStoreOperation("upsert_interaction_test", time.Millisecond, nil)
	RecordStoreOperation("upsert_interaction_test", time.Millisecond, errors.New("locked"))
	if got := testutil.ToFloat64(StoreOperationErrors.WithLabelValues("upsert_interaction_test")) - before; got != 1 {
		t.Errorf("error delta = %v, want 1", got)
	}
}

func TestRecordPublishAndCache(t *testing.T) {
	ok := testutil.ToFloat64(PublishTotal.WithLabelValues("t", "ok"))
	RecordPublish("t", nil)
	if got := testutil.ToFloat64(PublishTotal.WithLabelValues("t", "ok")) - ok; got != 1 {
		t.Errorf("publish ok delta = %v, want 1", got)
	}

	hits := testutil.ToFloat64(CacheHits)
	misses := testutil.ToFloat64(CacheMisses)
	RecordCacheLookup(true)
	RecordCacheLookup(false)
	RecordCacheLookup(false)
	if testutil.ToFloat64(CacheHits)-hits != 1 || testutil.ToFloat64(CacheMisses)-misses != 2 {
		t.Error("cache counters not updated")
	}
}
