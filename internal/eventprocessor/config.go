// Eventstats - Event Engagement Similarity and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventstats

package eventprocessor

import "time"

// KafkaConsumerConfig configures a franz-go consumer.
type KafkaConsumerConfig struct {
	Brokers        []string
	ClientID       string
	Group          string
	Topic          string
	PollTimeout    time.Duration
	MaxPollRecords int

	// Replay reads the topic from the earliest retained offset without
	// joining Group. Commit becomes a no-op.
	Replay bool
}

// KafkaProducerConfig configures a franz-go producer.
type KafkaProducerConfig struct {
	Brokers  []string
	ClientID string
	Linger   time.Duration
}

// JetStreamConsumerConfig configures a durable JetStream pull consumer.
type JetStreamConsumerConfig struct {
	URL            string
	Stream         string
	Durable        string
	Subject        string
	PollTimeout    time.Duration
	MaxPollRecords int

	// AckWait must exceed the longest time a record stays uncommitted. The
	// aggregator holds acknowledgements until shutdown.
	AckWait time.Duration

	// Replay uses an ephemeral consumer delivering from the first message.
	Replay bool
}

// DefaultAggregatorAckWait is the ack wait used for the aggregator's consumer.
const DefaultAggregatorAckWait = 7 * 24 * time.Hour

// ServerConfig holds embedded NATS server configuration.
type ServerConfig struct {
	Host              string
	Port              int
	StoreDir          string
	JetStreamMaxMem   int64
	JetStreamMaxStore int64
}

// DefaultServerConfig returns defaults for the embedded NATS server.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:              "127.0.0.1",
		Port:              4222,
		StoreDir:          "/data/nats/jetstream",
		JetStreamMaxMem:   1 << 30,  // 1GB
		JetStreamMaxStore: 10 << 30, // 10GB
	}
}

// PublisherConfig holds NATS publisher configuration.
type PublisherConfig struct {
	URL              string
	MaxReconnects    int
	ReconnectWait    time.Duration
	ReconnectBuffer  int
	EnableTrackMsgID bool // nolint:revive // ID is correct per Go conventions
}

// DefaultPublisherConfig returns defaults for the NATS publisher.
func DefaultPublisherConfig(url string) PublisherConfig {
	return PublisherConfig{
		URL:              url,
		MaxReconnects:    -1, // Unlimited
		ReconnectWait:    2 * time.Second,
		ReconnectBuffer:  8 * 1024 * 1024, // 8MB
		EnableTrackMsgID: true,
	}
}

// StreamConfig defines the JetStream stream carrying both topics.
type StreamConfig struct {
	Name            string
	Subjects        []string
	MaxAge          time.Duration
	MaxBytes        int64
	DuplicateWindow time.Duration
	Replicas        int
}

// DefaultStreamConfig returns a stream config for the given topics.
func DefaultStreamConfig(name string, subjects ...string) StreamConfig {
	return StreamConfig{
		Name:            name,
		Subjects:        subjects,
		MaxAge:          30 * 24 * time.Hour,
		MaxBytes:        -1,
		DuplicateWindow: 2 * time.Minute,
		Replicas:        1,
	}
}

// CircuitBreakerConfig holds circuit breaker settings.
type CircuitBreakerConfig struct {
	Name             string
	MaxRequests      uint32        // Allowed in half-open state
	Interval         time.Duration // Reset interval for counts
	Timeout          time.Duration // Time to stay open
	FailureThreshold uint32        // Failures before opening
}

// DefaultCircuitBreakerConfig returns production defaults.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		MaxRequests:      3,
		Interval:         30 * time.Second,
		Timeout:          10 * time.Second,
		FailureThreshold: 5,
	}
}
