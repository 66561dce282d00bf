// Eventstats - Event Engagement Similarity and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventstats

package aggregator

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/tomtom215/eventstats/internal/models"
)

const epsilon = 1e-9

func act(user, event int64, kind models.ActionKind) models.ActionEvent {
	return models.ActionEvent{UserID: user, EventID: event, Kind: kind}
}

func mustApply(t *testing.T, m *Matrix, a models.ActionEvent) ApplyResult {
	t.Helper()
	res, err := m.Apply(a)
	if err != nil {
		t.Fatalf("Apply(%+v) error = %v", a, err)
	}
	return res
}

func TestMatrixViewViewLike(t *testing.T) {
	m := NewMatrix()
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.SetClock(func() time.Time { return fixed })

	if res := mustApply(t, m, act(1, 10, models.ActionView)); len(res.Updates) != 0 || !res.Changed {
		t.Fatalf("first action: got %+v, want no updates and changed", res)
	}

	res := mustApply(t, m, act(1, 11, models.ActionView))
	if len(res.Updates) != 1 {
		t.Fatalf("second action: got %d updates, want 1", len(res.Updates))
	}
	if got := res.Updates[0]; got.EventLow != 10 || got.EventHigh != 11 || math.Abs(got.Score-1.0) > epsilon {
		t.Errorf("second action update = %+v, want {10,11} score 1.0", got)
	}

	res = mustApply(t, m, act(1, 10, models.ActionLike))
	if len(res.Updates) != 1 {
		t.Fatalf("like: got %d updates, want 1", len(res.Updates))
	}
	u := res.Updates[0]
	want := 0.4 / math.Sqrt(1.0*0.4)
	if u.EventLow != 10 || u.EventHigh != 11 || math.Abs(u.Score-want) > epsilon {
		t.Errorf("like update = %+v, want {10,11} score %v", u, want)
	}
	if math.Abs(u.Score-0.632) > 0.001 {
		t.Errorf("score = %v, want about 0.632", u.Score)
	}
	if !u.ComputedAt.Equal(fixed) {
		t.Errorf("ComputedAt = %v, want %v", u.ComputedAt, fixed)
	}

	if got := m.TotalWeight(10); math.Abs(got-1.0) > epsilon {
		t.Errorf("TotalWeight(10) = %v, want 1.0", got)
	}
	if got := m.TotalWeight(11); math.Abs(got-0.4) > epsilon {
		t.Errorf("TotalWeight(11) = %v, want 0.4", got)
	}
	if got := m.SharedMinWeight(11, 10); math.Abs(got-0.4) > epsilon {
		t.Errorf("SharedMinWeight(11, 10) = %v, want 0.4", got)
	}
	if got, ok := m.Score(11, 10); !ok || math.Abs(got-want) > epsilon {
		t.Errorf("Score(11, 10) = %v, %v, want %v", got, ok, want)
	}
}

func TestMatrixDuplicateIsNoop(t *testing.T) {
	m := NewMatrix()
	mustApply(t, m, act(1, 10, models.ActionRegister))
	mustApply(t, m, act(1, 11, models.ActionLike))

	tests := []struct {
		name   string
		action models.ActionEvent
	}{
		{"same action again", act(1, 11, models.ActionLike)},
		{"weaker action", act(1, 11, models.ActionView)},
		{"weaker on first event", act(1, 10, models.ActionView)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before, _ := m.Score(10, 11)
			res := mustApply(t, m, tt.action)
			if res.Changed || len(res.Updates) != 0 {
				t.Errorf("got %+v, want no change", res)
			}
			after, _ := m.Score(10, 11)
			if before != after {
				t.Errorf("score moved from %v to %v", before, after)
			}
		})
	}
}

func TestMatrixNewEventSkipsUsersWithoutWeight(t *testing.T) {
	m := NewMatrix()
	mustApply(t, m, act(1, 10, models.ActionView))
	mustApply(t, m, act(2, 11, models.ActionView))

	res := mustApply(t, m, act(1, 12, models.ActionLike))
	if len(res.Updates) != 1 || res.Updates[0].Pair() != models.NewPairKey(10, 12) {
		t.Fatalf("updates = %+v, want only {10,12}", res.Updates)
	}
	if _, ok := m.Score(11, 12); ok {
		t.Error("Score(11, 12) should not exist without a shared user")
	}
	if events, pairs := m.Size(); events != 3 || pairs != 1 {
		t.Errorf("Size() = %d, %d, want 3, 1", events, pairs)
	}
}

func TestMatrixSeenEventEmitsForEveryCoEngagedEvent(t *testing.T) {
	m := NewMatrix()
	mustApply(t, m, act(2, 10, models.ActionView)) // 10 known through user 2
	mustApply(t, m, act(1, 11, models.ActionView))
	mustApply(t, m, act(1, 12, models.ActionView))

	// 10 is known but user 1 has no weight on it yet.
	res := mustApply(t, m, act(1, 10, models.ActionRegister))
	if len(res.Updates) != 2 {
		t.Fatalf("got %d updates, want 2", len(res.Updates))
	}
	for _, u := range res.Updates {
		if !u.Canonical() {
			t.Errorf("update %+v is not canonical", u)
		}
		if !u.Pair().Contains(10) {
			t.Errorf("update %+v does not touch event 10", u)
		}
	}
	if got := m.SharedMinWeight(10, 11); math.Abs(got-0.4) > epsilon {
		t.Errorf("SharedMinWeight(10, 11) = %v, want 0.4", got)
	}
	if got := m.TotalWeight(10); math.Abs(got-1.2) > epsilon {
		t.Errorf("TotalWeight(10) = %v, want 1.2", got)
	}
}

func TestMatrixRejectsUnknownKind(t *testing.T) {
	m := NewMatrix()
	_, err := m.Apply(act(1, 10, models.ActionKind("SHARE")))
	if !errors.Is(err, models.ErrUnknownActionKind) {
		t.Fatalf("error = %v, want ErrUnknownActionKind", err)
	}
	if events, _ := m.Size(); events != 0 {
		t.Errorf("matrix has %d events after rejected action", events)
	}
}

// batchScores computes every pair score from scratch over the final per-user
// maximum weights.
func batchScores(history []models.ActionEvent) map[models.PairKey]float64 {
	weights := make(map[int64]map[int64]float64)
	for _, a := range history {
		if weights[a.EventID] == nil {
			weights[a.EventID] = make(map[int64]float64)
		}
		weights[a.EventID][a.UserID] = math.Max(weights[a.EventID][a.UserID], a.Weight())
	}

	totals := make(map[int64]float64)
	for e, users := range weights {
		for _, w := range users {
			totals[e] += w
		}
	}

	scores := make(map[models.PairKey]float64)
	for a, ua := range weights {
		for b, ub := range weights {
			if a >= b {
				continue
			}
			var shared float64
			overlap := false
			for user, wa := range ua {
				if wb, ok := ub[user]; ok {
					shared += math.Min(wa, wb)
					overlap = true
				}
			}
			if overlap {
				scores[models.NewPairKey(a, b)] = shared / math.Sqrt(totals[a]*totals[b])
			}
		}
	}
	return scores
}

func TestMatrixMatchesBatchComputation(t *testing.T) {
	kinds := []models.ActionKind{models.ActionView, models.ActionRegister, models.ActionLike}

	for seed := int64(1); seed <= 20; seed++ {
		rng := rand.New(rand.NewSource(seed))
		m := NewMatrix()
		var history []models.ActionEvent
		lastEmitted := make(map[models.PairKey]float64)

		for i := 0; i < 400; i++ {
			a := act(int64(rng.Intn(15)), int64(100+rng.Intn(25)), kinds[rng.Intn(len(kinds))])
			history = append(history, a)
			res := mustApply(t, m, a)
			for _, u := range res.Updates {
				lastEmitted[u.Pair()] = u.Score
			}

			// Invariant after every step.
			for key := range lastEmitted {
				shared := m.SharedMinWeight(key.Low, key.High)
				limit := math.Min(m.TotalWeight(key.Low), m.TotalWeight(key.High))
				if shared > limit+epsilon {
					t.Fatalf("seed %d step %d: sharedMin%s = %v > %v", seed, i, key, shared, limit)
				}
			}
		}

		want := batchScores(history)
		_, pairs := m.Size()
		if pairs != len(want) {
			t.Fatalf("seed %d: %d pairs, batch has %d", seed, pairs, len(want))
		}
		for key, score := range want {
			got, ok := m.Score(key.Low, key.High)
			if !ok || math.Abs(got-score) > epsilon {
				t.Errorf("seed %d: Score%s = %v, %v, want %v", seed, key, got, ok, score)
			}
		}
		for key, emitted := range lastEmitted {
			// A later action can change an event total without touching
			// this pair, so the last emitted score may be stale. It must
			// never be for a pair the batch pass does not know.
			if _, ok := want[key]; !ok {
				t.Errorf("seed %d: emitted %s (%v) has no overlap in batch", seed, key, emitted)
			}
		}
	}
}
