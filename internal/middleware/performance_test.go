// Eventstats - Event Engagement Similarity and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventstats

package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/eventstats/internal/logging"
)

func TestNewPerformanceMonitorDefaults(t *testing.T) {
	pm := NewPerformanceMonitor(10, 0)
	if pm.slowThreshold != DefaultSlowRequestThreshold {
		t.Errorf("slowThreshold = %v, want %v", pm.slowThreshold, DefaultSlowRequestThreshold)
	}
}

func TestPerformanceMonitorSlidingWindow(t *testing.T) {
	pm := NewPerformanceMonitor(3, time.Second)
	for i := int64(1); i <= 5; i++ {
		pm.RecordRequest(&RequestMetrics{Route: "/a", Method: http.MethodGet, DurationMS: i * 10})
	}

	recent := pm.GetRecentMetrics(10)
	if len(recent) != 3 {
		t.Fatalf("window holds %d metrics, want 3", len(recent))
	}
	if recent[0].DurationMS != 30 || recent[2].DurationMS != 50 {
		t.Errorf("window = %+v, want durations 30..50", recent)
	}
	if got := pm.RequestCount(http.MethodGet, "/a"); got != 5 {
		t.Errorf("lifetime count = %d, want 5", got)
	}
	if got := pm.GetRecentMetrics(0); got != nil {
		t.Errorf("GetRecentMetrics(0) = %v, want nil", got)
	}
}

func TestPerformanceMonitorGetStats(t *testing.T) {
	pm := NewPerformanceMonitor(100, time.Second)
	for _, d := range []int64{10, 20, 30, 40, 100} {
		pm.RecordRequest(&RequestMetrics{Route: "/busy", Method: http.MethodGet, DurationMS: d})
	}
	pm.RecordRequest(&RequestMetrics{Route: "/quiet", Method: http.MethodGet, DurationMS: 5})

	stats := pm.GetStats()
	if len(stats) != 2 {
		t.Fatalf("got %d endpoints, want 2", len(stats))
	}
	busy := stats[0]
	if busy.Endpoint != "GET /busy" {
		t.Fatalf("first endpoint = %s, want GET /busy", busy.Endpoint)
	}
	if busy.RequestCount != 5 || busy.MinDuration != 10 || busy.MaxDuration != 100 {
		t.Errorf("busy stats = %+v", busy)
	}
	if busy.AvgDuration != 40 {
		t.Errorf("avg = %v, want 40", busy.AvgDuration)
	}
	if busy.P50Duration != 30 {
		t.Errorf("p50 = %d, want 30", busy.P50Duration)
	}
}

func TestPerformanceMonitorMiddlewareLogsSlowRequests(t *testing.T) {
	var buf bytes.Buffer
	logging.SetLogger(logging.NewTestLogger(&buf))
	defer logging.Init(logging.DefaultConfig())

	pm := NewPerformanceMonitor(10, time.Millisecond)
	r := chi.NewRouter()
	r.Use(pm.Middleware)
	r.Get("/users/{userId}/recommendations", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(5 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/7/recommendations", nil))

	recent := pm.GetRecentMetrics(1)
	if len(recent) != 1 || recent[0].Route != "/users/{userId}/recommendations" {
		t.Fatalf("recorded %+v, want the route pattern", recent)
	}
	if !strings.Contains(buf.String(), "Slow request detected") {
		t.Errorf("expected slow request warning, got %s", buf.String())
	}
}

func TestPercentile(t *testing.T) {
	tests := []struct {
		name   string
		sorted []int64
		p      float64
		want   int64
	}{
		{"empty", nil, 0.5, 0},
		{"single", []int64{7}, 0.99, 7},
		{"p50 of five", []int64{1, 2, 3, 4, 5}, 0.5, 3},
		{"p99 of five", []int64{1, 2, 3, 4, 5}, 0.99, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := percentile(tt.sorted, tt.p); got != tt.want {
				t.Errorf("percentile(%v, %v) = %d, want %d", tt.sorted, tt.p, got, tt.want)
			}
		})
	}
}
