// Eventstats - Event Engagement Similarity and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventstats

// Package metrics exposes the Prometheus collectors for the eventstats
// pipeline: the similarity aggregator, the store workers, the store, the
// query cache, and the HTTP surfaces. Collectors are registered with the
// default registry through promauto and served by promhttp at /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Aggregator Metrics
	AggregatorActionsConsumed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eventstats_aggregator_actions_consumed_total",
			Help: "Total number of action events applied to the similarity matrix",
		},
	)

	AggregatorActionsIgnored = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eventstats_aggregator_actions_ignored_total",
			Help: "Actions that did not raise the user's weight on the event",
		},
	)

	AggregatorUpdatesEmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eventstats_aggregator_similarity_updates_total",
			Help: "Total number of similarity updates published",
		},
	)

	AggregatorKnownEvents = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "eventstats_aggregator_known_events",
			Help: "Number of events held in the in-memory similarity matrix",
		},
	)

	AggregatorKnownPairs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "eventstats_aggregator_known_pairs",
			Help: "Number of event pairs with a shared weight",
		},
	)

	// Store Worker Metrics
	WorkerRecordsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventstats_worker_records_applied_total",
			Help: "Records durably applied to the store, by worker",
		},
		[]string{"worker"},
	)

	WorkerRecordsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventstats_worker_records_failed_total",
			Help: "Records whose store write failed, by worker",
		},
		[]string{"worker"},
	)

	// Consumer Metrics
	MalformedMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventstats_malformed_messages_total",
			Help: "Messages that could not be decoded, by consumer",
		},
		[]string{"consumer"},
	)

	CommitFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventstats_commit_failures_total",
			Help: "Offset commits that failed, by consumer",
		},
		[]string{"consumer"},
	)

	PublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventstats_publish_total",
			Help: "Messages published, by topic and result",
		},
		[]string{"topic", "result"},
	)

	// Store Metrics
	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eventstats_store_operation_duration_seconds",
			Help:    "Duration of store operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	StoreOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventstats_store_operation_errors_total",
			Help: "Failed store operations",
		},
		[]string{"operation"},
	)

	// Cache Metrics
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eventstats_cache_hits_total",
			Help: "Interaction totals served from cache",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eventstats_cache_misses_total",
			Help: "Interaction totals looked up in the store",
		},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventstats_api_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eventstats_api_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Stats Client Metrics
	ClientRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventstats_client_requests_total",
			Help: "Stats client calls by operation and result (success, failure, rejected)",
		},
		[]string{"operation", "result"},
	)

	ClientBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "eventstats_client_circuit_breaker_state",
			Help: "Stats client circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "eventstats_api_active_requests",
			Help: "HTTP requests currently being served",
		},
	)
)

// RecordAggregatorAction records one applied action and the number of
// similarity updates it produced. An action that raised no weight is counted
// as ignored.
func RecordAggregatorAction(updates int, changed bool) {
	AggregatorActionsConsumed.Inc()
	if !changed {
		AggregatorActionsIgnored.Inc()
	}
	AggregatorUpdatesEmitted.Add(float64(updates))
}

// RecordMatrixSize publishes the current size of the similarity matrix.
func RecordMatrixSize(events, pairs int) {
	AggregatorKnownEvents.Set(float64(events))
	AggregatorKnownPairs.Set(float64(pairs))
}

// RecordWorkerRecord records the outcome of one store worker write.
func RecordWorkerRecord(worker string, err error) {
	if err != nil {
		WorkerRecordsFailed.WithLabelValues(worker).Inc()
		return
	}
	WorkerRecordsApplied.WithLabelValues(worker).Inc()
}

// RecordMalformed records an undecodable message.
func RecordMalformed(consumer string) {
	MalformedMessages.WithLabelValues(consumer).Inc()
}

// RecordCommitFailure records a failed offset commit.
func RecordCommitFailure(consumer string) {
	CommitFailures.WithLabelValues(consumer).Inc()
}

// RecordPublish records a publish attempt.
func RecordPublish(topic string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	PublishTotal.WithLabelValues(topic, result).Inc()
}

// RecordStoreOperation records a store call.
func RecordStoreOperation(operation string, duration time.Duration, err error) {
	StoreOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		StoreOperationErrors.WithLabelValues(operation).Inc()
	}
}

// RecordCacheLookup records a cache hit or miss.
func RecordCacheLookup(hit bool) {
	if hit {
		CacheHits.Inc()
		return
	}
	CacheMisses.Inc()
}

// RecordAPIRequest records an HTTP request.
func RecordAPIRequest(method, route, status string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, status).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the in-flight request gauge.
func TrackActiveRequest(start bool) {
	if start {
		APIActiveRequests.Inc()
		return
	}
	APIActiveRequests.Dec()
}

// RecordClientRequest records one stats client call.
func RecordClientRequest(operation, result string) {
	ClientRequests.WithLabelValues(operation, result).Inc()
}
