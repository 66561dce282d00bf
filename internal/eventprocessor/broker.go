// Eventstats - Event Engagement Similarity and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventstats

package eventprocessor

import (
	"context"
	"fmt"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"github.com/tomtom215/eventstats/internal/config"
	"github.com/tomtom215/eventstats/internal/logging"
)

// Broker builds consumers and producers for the configured backend.
type Broker struct {
	cfg     *config.Config
	natsURL string
	logger  zerolog.Logger
}

// NewBroker validates the backend name.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewBroker(cfg *config.Config, logger zerolog.Logger) (*Broker, error) {
	switch cfg.Broker.Backend {
	case "kafka", "nats":
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Broker.Backend)
	}
	return &Broker{cfg: cfg, natsURL: cfg.Broker.NATS.URL, logger: logger}, nil
}

// UseNATSURL points NATS clients at url, typically an embedded server.
func (b *Broker) UseNATSURL(url string) {
	b.natsURL = url
}

// Backend returns the configured backend name.
func (b *Broker) Backend() string {
	return b.cfg.Broker.Backend
}

// Prepare creates the JetStream stream for the nats backend. Kafka topics are
// created on first produce.
func (b *Broker) Prepare(ctx context.Context) error {
	if b.cfg.Broker.Backend != "nats" {
		return nil
	}
	nc, err := natsgo.Connect(b.natsURL, natsgo.Name("eventstats-init"))
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("create JetStream context: %w", err)
	}

	streamCfg := DefaultStreamConfig(b.cfg.Broker.NATS.StreamName, b.cfg.Topics.Actions, b.cfg.Topics.Similarities)
	streamCfg.MaxAge = time.Duration(b.cfg.Broker.NATS.RetentionDays) * 24 * time.Hour
	initializer, err := NewStreamInitializer(js, &streamCfg)
	if err != nil {
		return err
	}
	if _, err := initializer.EnsureStream(ctx); err != nil {
		return err
	}
	b.logger.Info().Str("stream", streamCfg.Name).Strs("subjects", streamCfg.Subjects).Msg("JetStream stream ready")
	return nil
}

// Consumers returns a factory for consumers of topic in group. With replay
// set the consumer reads from the start of the retained log and never commits.
func (b *Broker) Consumers(group, topic string, replay bool) ConsumerFactory {
	cc := b.cfg.Consumer
	return func(ctx context.Context) (Consumer, error) {
		if b.cfg.Broker.Backend == "nats" {
			ackWait := 30 * time.Second
			if group == cc.AggregatorGroup {
				ackWait = DefaultAggregatorAckWait
			}
			return NewJetStreamConsumer(ctx, JetStreamConsumerConfig{
				URL:            b.natsURL,
				Stream:         b.cfg.Broker.NATS.StreamName,
				Durable:        group,
				Subject:        topic,
				PollTimeout:    cc.PollTimeout,
				MaxPollRecords: cc.MaxPollRecords,
				AckWait:        ackWait,
				Replay:         replay,
			}, b.logger)
		}
		return NewKafkaConsumer(KafkaConsumerConfig{
			Brokers:        b.cfg.Broker.Kafka.Brokers,
			ClientID:       b.cfg.Broker.Kafka.ClientID + "-" + group,
			Group:          group,
			Topic:          topic,
			PollTimeout:    cc.PollTimeout,
			MaxPollRecords: cc.MaxPollRecords,
			Replay:         replay,
		}, b.logger)
	}
}

// Producers returns a factory for producers.
func (b *Broker) Producers() ProducerFactory {
	return func(ctx context.Context) (Producer, error) {
		if b.cfg.Broker.Backend == "nats" {
			pub, err := NewPublisher(DefaultPublisherConfig(b.natsURL), logging.NewWatermillAdapter(b.logger))
			if err != nil {
				return nil, err
			}
			pub.SetCircuitBreaker(NewCircuitBreaker(DefaultCircuitBreakerConfig("nats-publisher")))
			return pub, nil
		}
		prod, err := NewKafkaProducer(KafkaProducerConfig{
			Brokers:  b.cfg.Broker.Kafka.Brokers,
			ClientID: b.cfg.Broker.Kafka.ClientID + "-producer",
			Linger:   b.cfg.Broker.Kafka.ProducerLinger,
		})
		if err != nil {
			return nil, err
		}
		prod.SetCircuitBreaker(NewCircuitBreaker(DefaultCircuitBreakerConfig("kafka-producer")))
		return prod, nil
	}
}
