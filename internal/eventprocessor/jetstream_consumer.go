// Eventstats - Event Engagement Similarity and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventstats

package eventprocessor

import (
	"context"
	"errors"
	"fmt"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

// JetStreamConsumer is a Consumer backed by a JetStream pull consumer.
// The stream sequence number stands in for the offset; there is a single
// partition per subject.
type JetStreamConsumer struct {
	nc       *natsgo.Conn
	consumer jetstream.Consumer
	cfg      JetStreamConsumerConfig
	logger   zerolog.Logger
}

// NewJetStreamConsumer connects to cfg.URL and creates or updates the durable
// consumer cfg.Durable on cfg.Stream, filtered to cfg.Subject.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewJetStreamConsumer(ctx context.Context, cfg JetStreamConsumerConfig, logger zerolog.Logger) (*JetStreamConsumer, error) {
	if cfg.MaxPollRecords <= 0 {
		cfg.MaxPollRecords = 500
	}
	if cfg.AckWait <= 0 {
		cfg.AckWait = 30 * time.Second
	}
	logger = logger.With().Str("topic", cfg.Subject).Str("durable", cfg.Durable).Logger()

	nc, err := natsgo.Connect(cfg.URL,
		natsgo.Name(cfg.Durable),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	consumerCfg := jetstream.ConsumerConfig{
		Durable:       cfg.Durable,
		FilterSubject: cfg.Subject,
		DeliverPolicy: jetstream.DeliverAllPolicy,
		AckPolicy:     jetstream.AckAllPolicy,
		AckWait:       cfg.AckWait,
		MaxAckPending: -1,
		MaxDeliver:    -1,
	}
	if cfg.Replay {
		consumerCfg.Durable = ""
		consumerCfg.AckPolicy = jetstream.AckNonePolicy
		consumerCfg.InactiveThreshold = 5 * time.Minute
	}

	cons, err := js.CreateOrUpdateConsumer(ctx, cfg.Stream, consumerCfg)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create consumer %s on stream %s: %w", cfg.Durable, cfg.Stream, err)
	}

	return &JetStreamConsumer{nc: nc, consumer: cons, cfg: cfg, logger: logger}, nil
}

// Poll pulls up to MaxPollRecords messages, waiting at most PollTimeout.
// Cancelling ctx abandons the pull; undelivered messages stay on the stream.
func (c *JetStreamConsumer) Poll(ctx context.Context) ([]Record, error) {
	if c.nc.IsClosed() {
		return nil, ErrConsumerClosed
	}
	batch, err := c.consumer.Fetch(c.cfg.MaxPollRecords, jetstream.FetchMaxWait(c.cfg.PollTimeout))
	if err != nil {
		return nil, fmt.Errorf("fetch from %s: %w", c.cfg.Subject, err)
	}

	var records []Record
	msgs := batch.Messages()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				if err := batch.Error(); err != nil && !isFetchTimeout(err) {
					return nil, fmt.Errorf("fetch from %s: %w", c.cfg.Subject, err)
				}
				return records, nil
			}
			meta, err := msg.Metadata()
			if err != nil {
				return nil, fmt.Errorf("read message metadata: %w", err)
			}
			records = append(records, Record{
				Topic:  msg.Subject(),
				Offset: int64(meta.Sequence.Stream),
				Value:  msg.Data(),
				handle: msg,
			})
		}
	}
}

func isFetchTimeout(err error) bool {
	return errors.Is(err, natsgo.ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}

// Commit acknowledges the record with the highest sequence. With AckAll this
// acknowledges every earlier message for the consumer.
func (c *JetStreamConsumer) Commit(ctx context.Context, records ...Record) error {
	if c.cfg.Replay || len(records) == 0 {
		return nil
	}
	last := records[0]
	for _, rec := range records[1:] {
		if rec.Offset > last.Offset {
			last = rec
		}
	}
	msg, ok := last.handle.(jetstream.Msg)
	if !ok {
		return fmt.Errorf("commit offsets: record %d has no JetStream handle", last.Offset)
	}
	if err := msg.DoubleAck(ctx); err != nil {
		return fmt.Errorf("commit offsets: %w", err)
	}
	return nil
}

// Close drains nothing and closes the NATS connection.
func (c *JetStreamConsumer) Close() error {
	c.nc.Close()
	return nil
}
