// Eventstats - Event Engagement Similarity and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventstats

package eventprocessor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/tomtom215/eventstats/internal/metrics"
)

// KafkaConsumer is a Consumer backed by a franz-go client.
type KafkaConsumer struct {
	client *kgo.Client
	cfg    KafkaConsumerConfig
	logger zerolog.Logger
}

// NewKafkaConsumer creates a consumer for cfg.Topic. Unless cfg.Replay is
// set the client joins cfg.Group with auto-commit disabled and starts from
// the earliest offset when the group has no commit yet.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewKafkaConsumer(cfg KafkaConsumerConfig, logger zerolog.Logger) (*KafkaConsumer, error) {
	if cfg.MaxPollRecords <= 0 {
		cfg.MaxPollRecords = 500
	}
	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.ConsumeTopics(cfg.Topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	}
	if !cfg.Replay {
		opts = append(opts,
			kgo.ConsumerGroup(cfg.Group),
			kgo.DisableAutoCommit(),
		)
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}

	return &KafkaConsumer{
		client: client,
		cfg:    cfg,
		logger: logger.With().Str("topic", cfg.Topic).Str("group", cfg.Group).Logger(),
	}, nil
}

// Poll fetches up to MaxPollRecords records, waiting at most PollTimeout.
func (c *KafkaConsumer) Poll(ctx context.Context) ([]Record, error) {
	pollCtx, cancel := context.WithTimeout(ctx, c.cfg.PollTimeout)
	defer cancel()

	fetches := c.client.PollRecords(pollCtx, c.cfg.MaxPollRecords)
	if fetches.IsClientClosed() {
		return nil, ErrConsumerClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var errs []error
	fetches.EachError(func(topic string, partition int32, err error) {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return
		}
		errs = append(errs, fmt.Errorf("fetch %s[%d]: %w", topic, partition, err))
	})
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	records := make([]Record, 0, fetches.NumRecords())
	fetches.EachRecord(func(r *kgo.Record) {
		records = append(records, Record{
			Topic:     r.Topic,
			Partition: r.Partition,
			Offset:    r.Offset,
			Value:     r.Value,
			handle:    r,
		})
	})
	return records, nil
}

// Commit synchronously commits the offsets following the given records.
func (c *KafkaConsumer) Commit(ctx context.Context, records ...Record) error {
	if c.cfg.Replay || len(records) == 0 {
		return nil
	}
	krs := make([]*kgo.Record, 0, len(records))
	for _, rec := range records {
		if kr, ok := rec.handle.(*kgo.Record); ok {
			krs = append(krs, kr)
		}
	}
	if err := c.client.CommitRecords(ctx, krs...); err != nil {
		return fmt.Errorf("commit offsets: %w", err)
	}
	return nil
}

// Close leaves the group and closes the client. Nothing is committed.
func (c *KafkaConsumer) Close() error {
	c.client.Close()
	return nil
}

// KafkaProducer is a Producer backed by a franz-go client. Publish is
// asynchronous; Flush waits for acknowledgement from all in-sync replicas.
//
// With a circuit breaker set, PublishSync and Flush count towards it and
// every call fails fast while it is open.
type KafkaProducer struct {
	client         *kgo.Client
	circuitBreaker *gobreaker.CircuitBreaker[interface{}]

	mu       sync.Mutex
	firstErr error
}

// NewKafkaProducer creates a producer.
func NewKafkaProducer(cfg KafkaProducerConfig) (*KafkaProducer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerLinger(cfg.Linger),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return &KafkaProducer{client: client}, nil
}

// SetCircuitBreaker guards the producer with cb.
func (p *KafkaProducer) SetCircuitBreaker(cb *gobreaker.CircuitBreaker[interface{}]) {
	p.circuitBreaker = cb
}

func (p *KafkaProducer) guard(fn func() error) error {
	if p.circuitBreaker == nil {
		return fn()
	}
	_, err := p.circuitBreaker.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	return err
}

// Publish enqueues a keyless record.
func (p *KafkaProducer) Publish(ctx context.Context, topic string, payload []byte) error {
	if p.circuitBreaker != nil && p.circuitBreaker.State() == gobreaker.StateOpen {
		metrics.RecordPublish(topic, gobreaker.ErrOpenState)
		return fmt.Errorf("produce to %s: %w", topic, gobreaker.ErrOpenState)
	}
	p.client.Produce(ctx, &kgo.Record{Topic: topic, Value: payload}, func(r *kgo.Record, err error) {
		metrics.RecordPublish(r.Topic, err)
		if err == nil {
			return
		}
		p.mu.Lock()
		if p.firstErr == nil {
			p.firstErr = fmt.Errorf("produce to %s: %w", r.Topic, err)
		}
		p.mu.Unlock()
	})
	return nil
}

// PublishSync produces one record and waits for its acknowledgement.
func (p *KafkaProducer) PublishSync(ctx context.Context, topic string, payload []byte) error {
	err := p.guard(func() error {
		return p.client.ProduceSync(ctx, &kgo.Record{Topic: topic, Value: payload}).FirstErr()
	})
	metrics.RecordPublish(topic, err)
	if err != nil {
		return fmt.Errorf("produce to %s: %w", topic, err)
	}
	return nil
}

// Flush blocks until every buffered record is acknowledged or failed.
func (p *KafkaProducer) Flush(ctx context.Context) error {
	return p.guard(func() error {
		if err := p.client.Flush(ctx); err != nil {
			return fmt.Errorf("flush producer: %w", err)
		}
		p.mu.Lock()
		defer p.mu.Unlock()
		err := p.firstErr
		p.firstErr = nil
		return err
	})
}

// Ping checks that at least one broker is reachable.
func (p *KafkaProducer) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

// Close closes the client. Unflushed records are failed.
func (p *KafkaProducer) Close() error {
	p.client.Close()
	return nil
}
