// Eventstats - Event Engagement Similarity and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventstats

// Package cache holds short-lived interaction totals in front of the store.
//
// Totals change with every interaction write, so entries live for a few
// seconds only; a stale total is acceptable for popularity counts. Two
// backends implement TotalsCache: an in-process LRU and Redis, for analyzers
// running as several replicas.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tomtom215/eventstats/internal/config"
	"github.com/tomtom215/eventstats/internal/metrics"
)

// TotalsCache stores the total interaction weight per event.
type TotalsCache interface {
	// GetMany returns the cached totals among ids and the ids it could not
	// answer.
	GetMany(ctx context.Context, ids []int64) (hits map[int64]float64, misses []int64, err error)

	// SetMany caches the given totals.
	SetMany(ctx context.Context, totals map[int64]float64) error

	// Delete evicts ids, e.g. after their interactions changed.
	Delete(ctx context.Context, ids []int64) error

	Close() error
}

// New returns the cache selected by cfg.Backend, or nil when caching is off.
func New(cfg *config.CacheConfig) (TotalsCache, error) {
	switch cfg.Backend {
	case "", "none":
		return nil, nil
	case "memory":
		return NewMemoryCache(cfg.Capacity, cfg.TTL), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return NewRedisCache(client, cfg.TTL), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// MemoryCache is a TotalsCache backed by an LRU.
type MemoryCache struct {
	lru *LRU[int64, float64]
}

// NewMemoryCache creates an in-process cache.
func NewMemoryCache(capacity int, ttl time.Duration) *MemoryCache {
	return &MemoryCache{lru: NewLRU[int64, float64](capacity, ttl)}
}

// GetMany implements TotalsCache.
func (c *MemoryCache) GetMany(_ context.Context, ids []int64) (map[int64]float64, []int64, error) {
	hits := make(map[int64]float64, len(ids))
	var misses []int64
	for _, id := range ids {
		if v, ok := c.lru.Get(id); ok {
			hits[id] = v
			metrics.RecordCacheLookup(true)
			continue
		}
		misses = append(misses, id)
		metrics.RecordCacheLookup(false)
	}
	return hits, misses, nil
}

// SetMany implements TotalsCache.
func (c *MemoryCache) SetMany(_ context.Context, totals map[int64]float64) error {
	for id, v := range totals {
		c.lru.Add(id, v)
	}
	return nil
}

// Delete implements TotalsCache.
func (c *MemoryCache) Delete(_ context.Context, ids []int64) error {
	for _, id := range ids {
		c.lru.Remove(id)
	}
	return nil
}

// Close implements TotalsCache.
func (c *MemoryCache) Close() error {
	c.lru.Clear()
	return nil
}
