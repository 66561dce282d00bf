// Eventstats - Event Engagement Similarity and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventstats

package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tomtom215/eventstats/internal/metrics"
)

const totalsKeyPrefix = "eventstats:totals:"

// RedisCache is a TotalsCache shared by every analyzer replica.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache wraps client. Entries expire after ttl.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisCache{client: client, ttl: ttl}
}

func totalsKey(id int64) string {
	return totalsKeyPrefix + strconv.FormatInt(id, 10)
}

// GetMany reads all ids with one MGET.
func (c *RedisCache) GetMany(ctx context.Context, ids []int64) (map[int64]float64, []int64, error) {
	hits := make(map[int64]float64, len(ids))
	if len(ids) == 0 {
		return hits, nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = totalsKey(id)
	}
	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, ids, fmt.Errorf("redis mget: %w", err)
	}

	var misses []int64
	for i, raw := range values {
		s, ok := raw.(string)
		if !ok {
			misses = append(misses, ids[i])
			metrics.RecordCacheLookup(false)
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			misses = append(misses, ids[i])
			metrics.RecordCacheLookup(false)
			continue
		}
		hits[ids[i]] = v
		metrics.RecordCacheLookup(true)
	}
	return hits, misses, nil
}

// SetMany writes all totals in one pipeline.
func (c *RedisCache) SetMany(ctx context.Context, totals map[int64]float64) error {
	if len(totals) == 0 {
		return nil
	}
	_, err := c.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for id, v := range totals {
			pipe.Set(ctx, totalsKey(id), strconv.FormatFloat(v, 'g', -1, 64), c.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis pipeline set: %w", err)
	}
	return nil
}

// Delete removes the ids' keys with one DEL.
func (c *RedisCache) Delete(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = totalsKey(id)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Ping checks the connection.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
