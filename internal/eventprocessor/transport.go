// Eventstats - Event Engagement Similarity and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventstats

package eventprocessor

import "context"

// Record is one message received from a topic.
type Record struct {
	Topic     string
	Partition int32
	Offset    int64
	Value     []byte

	// handle is the backend message, used by Commit.
	handle interface{}
}

// Consumer receives records from one topic on behalf of one consumer group.
// Implementations are used by a single goroutine.
type Consumer interface {
	// Poll blocks until records are available, the poll timeout elapses, or
	// ctx is cancelled. A timeout returns an empty slice and no error.
	Poll(ctx context.Context) ([]Record, error)

	// Commit marks the given records, and everything before them on the same
	// partition, as consumed by the group.
	Commit(ctx context.Context, records ...Record) error

	// Close releases the broker connection without committing.
	Close() error
}

// Producer publishes payloads to topics.
type Producer interface {
	// Publish sends one keyless message. It may return before the broker has
	// acknowledged the message; Flush reports delivery failures.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Flush waits for every outstanding Publish and returns the first
	// delivery error since the previous Flush.
	Flush(ctx context.Context) error

	Close() error
}

// SyncProducer is implemented by producers that can wait for the
// acknowledgement of a single message without flushing everything else.
type SyncProducer interface {
	PublishSync(ctx context.Context, topic string, payload []byte) error
}

// PublishOne publishes payload and waits until the broker has accepted it.
// Producers that are not SyncProducers are flushed.
func PublishOne(ctx context.Context, p Producer, topic string, payload []byte) error {
	if sp, ok := p.(SyncProducer); ok {
		return sp.PublishSync(ctx, topic, payload)
	}
	if err := p.Publish(ctx, topic, payload); err != nil {
		return err
	}
	return p.Flush(ctx)
}

// ConsumerFactory opens a consumer. Supervised loops call it on every start
// so that a restart gets a fresh broker session.
type ConsumerFactory func(ctx context.Context) (Consumer, error)

// ProducerFactory opens a producer.
type ProducerFactory func(ctx context.Context) (Producer, error)

type partitionKey struct {
	topic     string
	partition int32
}

// OffsetTracker remembers the last record seen on each partition so that a
// long run of records can be committed with one call.
type OffsetTracker struct {
	last map[partitionKey]Record
}

// NewOffsetTracker creates an empty tracker.
func NewOffsetTracker() *OffsetTracker {
	return &OffsetTracker{last: make(map[partitionKey]Record)}
}

// Track records rec as processed.
func (t *OffsetTracker) Track(rec Record) {
	key := partitionKey{topic: rec.Topic, partition: rec.Partition}
	if prev, ok := t.last[key]; ok && prev.Offset > rec.Offset {
		return
	}
	t.last[key] = rec
}

// Pending returns the last processed record of every partition.
func (t *OffsetTracker) Pending() []Record {
	out := make([]Record, 0, len(t.last))
	for _, rec := range t.last {
		out = append(out, rec)
	}
	return out
}

// Len returns the number of partitions with processed records.
func (t *OffsetTracker) Len() int {
	return len(t.last)
}

// Reset forgets all tracked records.
func (t *OffsetTracker) Reset() {
	t.last = make(map[partitionKey]Record)
}
