// Eventstats - Event Engagement Similarity and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventstats

package aggregator

import (
	"context"
	"errors"
	"io"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/eventstats/internal/eventprocessor"
	"github.com/tomtom215/eventstats/internal/models"
)

type fakeConsumer struct {
	mu        sync.Mutex
	batches   [][]eventprocessor.Record
	committed []eventprocessor.Record
	commitErr error
	onDrained func()
	closed    bool
}

func (c *fakeConsumer) Poll(ctx context.Context) ([]eventprocessor.Record, error) {
	c.mu.Lock()
	if len(c.batches) > 0 {
		b := c.batches[0]
		c.batches = c.batches[1:]
		c.mu.Unlock()
		return b, nil
	}
	fn := c.onDrained
	c.onDrained = nil
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func (c *fakeConsumer) Commit(_ context.Context, records ...eventprocessor.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.commitErr != nil {
		return c.commitErr
	}
	c.committed = append(c.committed, records...)
	return nil
}

func (c *fakeConsumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

type fakeProducer struct {
	mu        sync.Mutex
	published map[string][][]byte
	flushErr  error
	flushes   int
}

func newFakeProducer() *fakeProducer {
	return &fakeProducer{published: make(map[string][][]byte)}
}

func (p *fakeProducer) Publish(_ context.Context, topic string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published[topic] = append(p.published[topic], payload)
	return nil
}

func (p *fakeProducer) Flush(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.flushes++
	return p.flushErr
}

func (p *fakeProducer) Close() error { return nil }

func (p *fakeProducer) updates(t *testing.T, topic string) []models.SimilarityUpdate {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.SimilarityUpdate, 0, len(p.published[topic]))
	for _, raw := range p.published[topic] {
		u, err := eventprocessor.DecodeSimilarity(raw)
		if err != nil {
			t.Fatalf("DecodeSimilarity() error = %v", err)
		}
		out = append(out, u)
	}
	return out
}

func actionRecord(t *testing.T, offset int64, a models.ActionEvent) eventprocessor.Record {
	t.Helper()
	if a.OccurredAt.IsZero() {
		a.OccurredAt = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	}
	payload, err := eventprocessor.EncodeAction(a)
	if err != nil {
		t.Fatalf("EncodeAction() error = %v", err)
	}
	return eventprocessor.Record{Topic: "actions", Partition: 0, Offset: offset, Value: payload}
}

func newTestService(c *fakeConsumer, p *fakeProducer, skip bool) (*Service, *Matrix) {
	m := NewMatrix()
	svc := NewService(m,
		func(context.Context) (eventprocessor.Consumer, error) { return c, nil },
		func(context.Context) (eventprocessor.Producer, error) { return p, nil },
		Config{SimilarityTopic: "similarities", SkipMalformed: skip},
		zerolog.New(io.Discard),
	)
	return svc, m
}

// testContext bounds a Serve call that is expected to return on its own.
func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// serve runs svc until the consumer has been drained and returns Serve's error.
func serve(t *testing.T, svc *Service, c *fakeConsumer) error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c.mu.Lock()
	c.onDrained = cancel
	c.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return")
		return nil
	}
}

func TestServicePublishesAndCommitsAtShutdown(t *testing.T) {
	c := &fakeConsumer{batches: [][]eventprocessor.Record{
		{
			actionRecord(t, 0, act(1, 10, models.ActionView)),
			actionRecord(t, 1, act(1, 11, models.ActionView)),
		},
		{
			actionRecord(t, 2, act(1, 10, models.ActionLike)),
		},
	}}
	p := newFakeProducer()
	svc, m := newTestService(c, p, false)

	if err := serve(t, svc, c); !errors.Is(err, context.Canceled) {
		t.Fatalf("Serve() error = %v, want context.Canceled", err)
	}

	updates := p.updates(t, "similarities")
	if len(updates) != 2 {
		t.Fatalf("published %d updates, want 2", len(updates))
	}
	last := updates[1]
	if last.EventLow != 10 || last.EventHigh != 11 || math.Abs(last.Score-0.4/math.Sqrt(0.4)) > epsilon {
		t.Errorf("last update = %+v", last)
	}
	if p.flushes < 2 {
		t.Errorf("flushes = %d, want one per batch", p.flushes)
	}

	if len(c.committed) != 1 || c.committed[0].Offset != 2 {
		t.Errorf("committed = %+v, want single commit at offset 2", c.committed)
	}
	if !c.closed {
		t.Error("consumer not closed")
	}
	if got := m.TotalWeight(10); math.Abs(got-1.0) > epsilon {
		t.Errorf("TotalWeight(10) = %v, want 1.0", got)
	}
}

func TestServiceMalformedIsFatalByDefault(t *testing.T) {
	for _, payload := range [][]byte{{}, {0xff}, {0x02, 0x04}} {
		c := &fakeConsumer{batches: [][]eventprocessor.Record{
			{{Topic: "actions", Offset: 0, Value: payload}},
		}}
		p := newFakeProducer()
		svc, m := newTestService(c, p, false)

		err := svc.Serve(testContext(t))
		if !errors.Is(err, eventprocessor.ErrMalformedMessage) {
			t.Fatalf("Serve(%x) error = %v, want ErrMalformedMessage", payload, err)
		}
		if events, _ := m.Size(); events != 0 {
			t.Errorf("payload %x reached the matrix", payload)
		}
		if len(c.committed) != 0 {
			t.Errorf("committed %+v after fatal decode error", c.committed)
		}
	}
}

func TestServiceSkipsMalformedWhenConfigured(t *testing.T) {
	c := &fakeConsumer{batches: [][]eventprocessor.Record{
		{
			actionRecord(t, 0, act(1, 10, models.ActionView)),
			{Topic: "actions", Offset: 1, Value: []byte{0xff}},
			actionRecord(t, 2, act(1, 11, models.ActionView)),
		},
	}}
	p := newFakeProducer()
	svc, _ := newTestService(c, p, true)

	if err := serve(t, svc, c); !errors.Is(err, context.Canceled) {
		t.Fatalf("Serve() error = %v", err)
	}
	if got := len(p.updates(t, "similarities")); got != 1 {
		t.Errorf("published %d updates, want 1", got)
	}
	if len(c.committed) != 1 || c.committed[0].Offset != 2 {
		t.Errorf("committed = %+v, want offset 2", c.committed)
	}
}

func TestServiceFlushFailureKeepsUpdatesForRestart(t *testing.T) {
	c := &fakeConsumer{batches: [][]eventprocessor.Record{
		{
			actionRecord(t, 0, act(1, 10, models.ActionView)),
			actionRecord(t, 1, act(1, 11, models.ActionView)),
		},
	}}
	p := newFakeProducer()
	p.flushErr = errors.New("broker unavailable")
	svc, _ := newTestService(c, p, false)

	if err := svc.Serve(testContext(t)); err == nil {
		t.Fatal("Serve() returned nil after flush failure")
	}
	if len(c.committed) != 0 {
		t.Fatalf("committed %+v with unflushed updates", c.committed)
	}

	// The supervisor restarts the service once the broker is back.
	p.flushErr = nil
	c2 := &fakeConsumer{}
	svc.newConsumer = func(context.Context) (eventprocessor.Consumer, error) { return c2, nil }
	if err := serve(t, svc, c2); !errors.Is(err, context.Canceled) {
		t.Fatalf("Serve() after restart error = %v", err)
	}

	updates := p.updates(t, "similarities")
	if len(updates) < 1 || updates[len(updates)-1].Pair() != models.NewPairKey(10, 11) {
		t.Fatalf("updates = %+v, want {10,11} re-sent", updates)
	}
	if len(c2.committed) != 1 || c2.committed[0].Offset != 1 {
		t.Errorf("committed = %+v, want offset 1", c2.committed)
	}
}

func TestServiceCommitFailureAtShutdownIsNotAnError(t *testing.T) {
	c := &fakeConsumer{
		batches:   [][]eventprocessor.Record{{actionRecord(t, 0, act(1, 10, models.ActionView))}},
		commitErr: errors.New("coordinator moved"),
	}
	svc, _ := newTestService(c, newFakeProducer(), false)

	if err := serve(t, svc, c); !errors.Is(err, context.Canceled) {
		t.Fatalf("Serve() error = %v, want context.Canceled", err)
	}
	if svc.tracker.Len() != 1 {
		t.Errorf("tracker should keep the uncommitted offset, has %d", svc.tracker.Len())
	}
}

// The matrix is not persisted: a restarted aggregator only knows what its
// consumer hands it, so resuming from the committed offset scores pairs on
// post-restart actions alone and only a replay restores the full score.
func TestServiceRestartResumeVersusReplay(t *testing.T) {
	history := []models.ActionEvent{
		act(1, 10, models.ActionLike),
		act(1, 11, models.ActionView),
		act(2, 10, models.ActionView),
		act(2, 11, models.ActionView),
	}
	records := make([]eventprocessor.Record, len(history))
	for i, a := range history {
		records[i] = actionRecord(t, int64(i), a)
	}
	scoreOf := func(actions []models.ActionEvent) float64 {
		m := NewMatrix()
		for _, a := range actions {
			mustApply(t, m, a)
		}
		s, ok := m.Score(10, 11)
		if !ok {
			t.Fatal("Score(10, 11) not found")
		}
		return s
	}

	first := &fakeConsumer{batches: [][]eventprocessor.Record{records[:2]}}
	svc, _ := newTestService(first, newFakeProducer(), false)
	if err := serve(t, svc, first); !errors.Is(err, context.Canceled) {
		t.Fatalf("Serve() error = %v, want context.Canceled", err)
	}
	if len(first.committed) != 1 || first.committed[0].Offset != 1 {
		t.Fatalf("committed = %+v, want offset 1", first.committed)
	}

	tests := []struct {
		name    string
		batch   []eventprocessor.Record
		wantFor []models.ActionEvent
	}{
		{"resume from committed offset", records[2:], history[2:]},
		{"replay from start", records, history},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &fakeConsumer{batches: [][]eventprocessor.Record{tt.batch}}
			p := newFakeProducer()
			svc, _ := newTestService(c, p, false)
			if err := serve(t, svc, c); !errors.Is(err, context.Canceled) {
				t.Fatalf("Serve() error = %v, want context.Canceled", err)
			}

			updates := p.updates(t, "similarities")
			if len(updates) == 0 {
				t.Fatal("no similarity updates published")
			}
			last := updates[len(updates)-1]
			if want := scoreOf(tt.wantFor); math.Abs(last.Score-want) > epsilon {
				t.Errorf("score(10, 11) = %v, want %v", last.Score, want)
			}
		})
	}
	if math.Abs(scoreOf(history[2:])-scoreOf(history)) < epsilon {
		t.Fatal("history does not distinguish a partial matrix from a full one")
	}
}
