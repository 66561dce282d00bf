// Eventstats - Event Engagement Similarity and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventstats

/*
Package eventprocessor moves eventstats messages between processes.

It provides the broker-independent Consumer and Producer interfaces, two
backends for them, the Avro wire codec, and StoreWorker, the consume, apply,
commit loop used by the analyzer.

# Backends

Kafka (default) uses franz-go. Consumers join a consumer group with
auto-commit disabled; offsets move only when Commit is called.

	consumer, err := eventprocessor.NewKafkaConsumer(eventprocessor.KafkaConsumerConfig{
	    Brokers: []string{"localhost:9092"},
	    Group:   "analyzer-user-actions",
	    Topic:   "stats.user-actions.v1",
	}, logger)

NATS uses a JetStream stream holding both topics as subjects. Consumers are
durable pull consumers with AckAll, so acknowledging a message commits every
earlier one. Publishing goes through a Watermill NATS publisher guarded by a
gobreaker circuit breaker. For single-node deployments an embedded
nats-server can be started with NewEmbeddedServer.

# Delivery

Every backend gives at-least-once delivery. StoreWorker commits after each
record is applied, so a crash re-delivers at most the record in flight. The
similarity aggregator commits only when it shuts down and rebuilds its state
by replaying whatever was not committed.

# Wire Format

Messages are keyless and Avro binary encoded, one ActionEvent or
SimilarityUpdate per message. See codec.go for the schemas.
*/
package eventprocessor
