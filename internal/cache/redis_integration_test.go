// Eventstats - Event Engagement Similarity and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventstats

//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tomtom215/eventstats/internal/testinfra"
)

func TestRedisCacheRoundTrip(t *testing.T) {
	testinfra.SkipIfNoDocker(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	rc, err := testinfra.NewRedisContainer(ctx)
	if err != nil {
		t.Fatalf("start redis: %v", err)
	}
	defer testinfra.CleanupContainer(t, ctx, rc)

	c := NewRedisCache(redis.NewClient(&redis.Options{Addr: rc.Addr}), 2*time.Second)
	defer c.Close()

	if err := c.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	if err := c.SetMany(ctx, map[int64]float64{10: 1.4, 11: 0.8}); err != nil {
		t.Fatalf("SetMany() error = %v", err)
	}

	hits, misses, err := c.GetMany(ctx, []int64{10, 11, 12})
	if err != nil {
		t.Fatalf("GetMany() error = %v", err)
	}
	if hits[10] != 1.4 || hits[11] != 0.8 || len(misses) != 1 || misses[0] != 12 {
		t.Errorf("GetMany() = %v, %v", hits, misses)
	}

	if err := c.Delete(ctx, []int64{11}); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	hits, _, err = c.GetMany(ctx, []int64{11})
	if err != nil {
		t.Fatalf("GetMany() after delete error = %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("deleted entry still cached: %v", hits)
	}

	time.Sleep(3 * time.Second)
	hits, _, err = c.GetMany(ctx, []int64{10})
	if err != nil {
		t.Fatalf("GetMany() after ttl error = %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("entries survived their ttl: %v", hits)
	}
}
