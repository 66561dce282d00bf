// Eventstats - Event Engagement Similarity and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventstats

//go:build integration

package eventprocessor

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/eventstats/internal/config"
	"github.com/tomtom215/eventstats/internal/models"
	"github.com/tomtom215/eventstats/internal/testinfra"
)

func TestKafkaBrokerPublishConsumeCommit(t *testing.T) {
	testinfra.SkipIfNoDocker(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	rp, err := testinfra.NewRedpandaContainer(ctx)
	if err != nil {
		t.Fatalf("start redpanda: %v", err)
	}
	defer testinfra.CleanupContainer(t, ctx, rp)

	cfg := &config.Config{
		Broker: config.BrokerConfig{
			Backend: "kafka",
			Kafka:   config.KafkaConfig{Brokers: rp.Brokers, ClientID: "eventstats-it"},
		},
		Topics: config.TopicsConfig{Actions: "it.user-actions", Similarities: "it.events-similarity"},
		Consumer: config.ConsumerConfig{
			PollTimeout:       2 * time.Second,
			MaxPollRecords:    100,
			AggregatorGroup:   "it-aggregator",
			InteractionsGroup: "it-interactions",
			SimilaritiesGroup: "it-similarities",
		},
	}
	broker, err := NewBroker(cfg, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	producer, err := broker.Producers()(ctx)
	if err != nil {
		t.Fatalf("open producer: %v", err)
	}
	defer producer.Close()

	at := time.UnixMilli(1700000000000).UTC()
	for i := int64(1); i <= 5; i++ {
		data, err := EncodeAction(models.ActionEvent{UserID: i, EventID: 100, Kind: models.ActionLike, OccurredAt: at})
		if err != nil {
			t.Fatal(err)
		}
		if err := producer.Publish(ctx, cfg.Topics.Actions, data); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}
	if err := producer.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	consumer, err := broker.Consumers(cfg.Consumer.InteractionsGroup, cfg.Topics.Actions, false)(ctx)
	if err != nil {
		t.Fatalf("open consumer: %v", err)
	}
	records := pollN(ctx, t, consumer, 5)
	// Commit only the first three; the group must resume at the fourth.
	if err := consumer.Commit(ctx, records[:3]...); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	_ = consumer.Close()

	consumer, err = broker.Consumers(cfg.Consumer.InteractionsGroup, cfg.Topics.Actions, false)(ctx)
	if err != nil {
		t.Fatalf("reopen consumer: %v", err)
	}
	defer consumer.Close()
	rest := pollN(ctx, t, consumer, 2)
	a, err := DecodeAction(rest[0].Value)
	if err != nil {
		t.Fatal(err)
	}
	if a.UserID != 4 {
		t.Errorf("resumed at user %d, want 4", a.UserID)
	}
}
