// Eventstats - Event Engagement Similarity and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventstats

package eventprocessor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/eventstats/internal/config"
	"github.com/tomtom215/eventstats/internal/models"
)

func startEmbeddedNATS(t *testing.T) *EmbeddedServer {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping embedded NATS test in short mode")
	}
	srv, err := NewEmbeddedServer(&ServerConfig{
		Host:              "127.0.0.1",
		Port:              -1,
		StoreDir:          t.TempDir(),
		JetStreamMaxMem:   64 << 20,
		JetStreamMaxStore: 256 << 20,
	})
	if err != nil {
		t.Fatalf("NewEmbeddedServer: %v", err)
	}
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func natsTestConfig() *config.Config {
	return &config.Config{
		Broker: config.BrokerConfig{
			Backend: "nats",
			NATS:    config.NATSConfig{StreamName: "EVENTSTATS_TEST", RetentionDays: 1},
		},
		Topics: config.TopicsConfig{Actions: "test.actions", Similarities: "test.similarities"},
		Consumer: config.ConsumerConfig{
			PollTimeout:       500 * time.Millisecond,
			MaxPollRecords:    10,
			AggregatorGroup:   "aggregator",
			InteractionsGroup: "interactions",
			SimilaritiesGroup: "similarities",
		},
	}
}

func TestNATSBrokerPublishConsumeCommit(t *testing.T) {
	srv := startEmbeddedNATS(t)
	if !srv.IsRunning() {
		t.Fatal("embedded server not running")
	}

	cfg := natsTestConfig()
	broker, err := NewBroker(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewBroker: %v", err)
	}
	broker.UseNATSURL(srv.ClientURL())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := broker.Prepare(ctx); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	// Preparing twice updates the existing stream.
	if err := broker.Prepare(ctx); err != nil {
		t.Fatalf("second Prepare: %v", err)
	}

	producer, err := broker.Producers()(ctx)
	if err != nil {
		t.Fatalf("open producer: %v", err)
	}
	defer producer.Close()

	at := time.UnixMilli(1700000000000).UTC()
	for i := int64(1); i <= 3; i++ {
		data, err := EncodeAction(models.ActionEvent{UserID: i, EventID: 10, Kind: models.ActionView, OccurredAt: at})
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

	// Two groups on the same topic each see every message.
	for _, group := range []string{cfg.Consumer.AggregatorGroup, cfg.Consumer.InteractionsGroup} {
		consumer, err := broker.Consumers(group, cfg.Topics.Actions, false)(ctx)
		if err != nil {
			t.Fatalf("open consumer %s: %v", group, err)
		}
		records := pollN(ctx, t, consumer, 3)
		for i, rec := range records {
			a, err := DecodeAction(rec.Value)
			if err != nil {
				t.Fatalf("DecodeAction: %v", err)
			}
			if a.UserID != int64(i+1) {
				t.Errorf("%s record %d user = %d", group, i, a.UserID)
			}
		}
		if err := consumer.Commit(ctx, records...); err != nil {
			t.Fatalf("Commit: %v", err)
		}
		_ = consumer.Close()
	}

	// A committed group resumes after its last acknowledged message.
	consumer, err := broker.Consumers(cfg.Consumer.InteractionsGroup, cfg.Topics.Actions, false)(ctx)
	if err != nil {
		t.Fatalf("reopen consumer: %v", err)
	}
	defer consumer.Close()
	records, err := consumer.Poll(ctx)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected no records after commit, got %d", len(records))
	}

	// Replay reads the retained log regardless of commits.
	replay, err := broker.Consumers(cfg.Consumer.AggregatorGroup, cfg.Topics.Actions, true)(ctx)
	if err != nil {
		t.Fatalf("open replay consumer: %v", err)
	}
	defer replay.Close()
	if got := pollN(ctx, t, replay, 3); len(got) != 3 {
		t.Errorf("replay returned %d records, want 3", len(got))
	}
}

func TestJetStreamPollStopsOnCancel(t *testing.T) {
	srv := startEmbeddedNATS(t)
	cfg := natsTestConfig()
	cfg.Consumer.PollTimeout = 10 * time.Second

	broker, err := NewBroker(cfg, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	broker.UseNATSURL(srv.ClientURL())
	if err := broker.Prepare(context.Background()); err != nil {
		t.Fatal(err)
	}

	consumer, err := broker.Consumers(cfg.Consumer.SimilaritiesGroup, cfg.Topics.Similarities, false)(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	start := time.Now()
	_, err = consumer.Poll(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("Poll was not interrupted by cancellation")
	}
}

func TestNewBrokerRejectsUnknownBackend(t *testing.T) {
	cfg := natsTestConfig()
	cfg.Broker.Backend = "rabbitmq"
	if _, err := NewBroker(cfg, zerolog.Nop()); !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("expected ErrUnknownBackend, got %v", err)
	}
}

func pollN(ctx context.Context, t *testing.T, c Consumer, n int) []Record {
	t.Helper()
	var out []Record
	deadline := time.Now().Add(10 * time.Second)
	for len(out) < n && time.Now().Before(deadline) {
		recs, err := c.Poll(ctx)
		if err != nil {
			t.Fatalf("Poll: %v", err)
		}
		out = append(out, recs...)
	}
	if len(out) != n {
		t.Fatalf("polled %d records, want %d", len(out), n)
	}
	return out
}
