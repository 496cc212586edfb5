// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package mapping

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/anisync/internal/platform/constants"
)

// # Statistics Cache

// StatisticsCache stores the last computed [Statistics] snapshot.
type StatisticsCache interface {
	// Get reports a miss with (nil, false, nil).
	Get(ctx context.Context) (*Statistics, bool, error)
	Set(ctx context.Context, stats *Statistics) error
	Invalidate(ctx context.Context) error
}

// RedisStatisticsCache keeps the snapshot under a single Redis key.
type RedisStatisticsCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisStatisticsCache constructs the cache. A non-positive ttl selects
// [constants.DefaultStatisticsTTL].
func NewRedisStatisticsCache(client redis.Cmdable, ttl time.Duration) *RedisStatisticsCache {
	if ttl <= 0 {
		ttl = constants.DefaultStatisticsTTL
	}
	return &RedisStatisticsCache{client: client, ttl: ttl}
}

// Get returns the cached snapshot if present.
func (cache *RedisStatisticsCache) Get(ctx context.Context) (*Statistics, bool, error) {
	raw, err := cache.client.Get(ctx, constants.RedisKeyMappingStatistics).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("statistics cache: get: %w", err)
	}

	var stats Statistics
	if err := json.Unmarshal(raw, &stats); err != nil {
		return nil, false, fmt.Errorf("statistics cache: decode: %w", err)
	}
	return &stats, true, nil
}

// Set stores the snapshot with the configured TTL.
func (cache *RedisStatisticsCache) Set(ctx context.Context, stats *Statistics) error {
	raw, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("statistics cache: encode: %w", err)
	}

	if err := cache.client.Set(ctx, constants.RedisKeyMappingStatistics, raw, cache.ttl).Err(); err != nil {
		return fmt.Errorf("statistics cache: set: %w", err)
	}
	return nil
}

// Invalidate drops the snapshot so the next read recomputes it.
func (cache *RedisStatisticsCache) Invalidate(ctx context.Context) error {
	if err := cache.client.Del(ctx, constants.RedisKeyMappingStatistics).Err(); err != nil {
		return fmt.Errorf("statistics cache: invalidate: %w", err)
	}
	return nil
}
