// Eventstats - Event Engagement Similarity and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventstats

package eventprocessor

import (
	"context"
	"sync"
)

// mockConsumer serves preloaded batches, then blocks in Poll until ctx is
// cancelled or cancelAfterDrain fires.
type mockConsumer struct {
	mu        sync.Mutex
	batches   [][]Record
	committed []Record
	pollErr   error
	commitErr error
	closed    bool

	// onDrained is called once when the last batch has been handed out and
	// Poll is entered again.
	onDrained func()
	drained   bool
}

func (m *mockConsumer) Poll(ctx context.Context) ([]Record, error) {
	m.mu.Lock()
	if m.pollErr != nil {
		err := m.pollErr
		m.mu.Unlock()
		return nil, err
	}
	if len(m.batches) > 0 {
		batch := m.batches[0]
		m.batches = m.batches[1:]
		m.mu.Unlock()
		return batch, nil
	}
	if !m.drained && m.onDrained != nil {
		m.drained = true
		m.mu.Unlock()
		m.onDrained()
	} else {
		m.mu.Unlock()
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func (m *mockConsumer) Commit(_ context.Context, records ...Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.commitErr != nil {
		return m.commitErr
	}
	m.committed = append(m.committed, records...)
	return nil
}

func (m *mockConsumer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockConsumer) Committed() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Record(nil), m.committed...)
}

func (m *mockConsumer) factory() ConsumerFactory {
	return func(context.Context) (Consumer, error) { return m, nil }
}
