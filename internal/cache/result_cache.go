package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rcandelario/instacart-insights/internal/config"
	"github.com/redis/go-redis/v9"
)

const (
	resultKeyPrefix     = "insights:result"
	resultScanBatchSize = 100
)

// ViewFilter narrows an API view of a run's result tables. The zero value
// means no filtering.
type ViewFilter struct {
	DepartmentID int64
	EntityID     int64
	Limit        int
}

// ResultCache stores rendered API responses keyed by run, view and filter.
// Scores are batch-relative, so entries are only valid for their run and the
// whole run's keyspace is invalidated when a new run completes.
type ResultCache interface {
	Get(ctx context.Context, runID, view string, filter ViewFilter) ([]byte, bool, error)
	Set(ctx context.Context, runID, view string, filter ViewFilter, payload []byte) error
	InvalidateAll(ctx context.Context) error
}

type redisResultCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopResultCache struct{}

func NewResultCache(cfg config.CacheConfig) (ResultCache, error) {
	if !cfg.Enabled {
		return &noopResultCache{}, nil
	}

	client, ttl, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}

	return &redisResultCache{client: client, ttl: ttl}, nil
}

func NewNoopResultCache() ResultCache {
	return &noopResultCache{}
}

func (c *redisResultCache) Get(ctx context.Context, runID, view string, filter ViewFilter) ([]byte, bool, error) {
	payload, err := c.client.Get(ctx, buildResultKey(runID, view, filter)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}
	return payload, true, nil
}

func (c *redisResultCache) Set(ctx context.Context, runID, view string, filter ViewFilter, payload []byte) error {
	if err := c.client.Set(ctx, buildResultKey(runID, view, filter), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisResultCache) InvalidateAll(ctx context.Context) error {
	return deleteKeysWithPrefix(ctx, c.client, resultKeyPrefix, resultScanBatchSize)
}

func (n *noopResultCache) Get(ctx context.Context, runID, view string, filter ViewFilter) ([]byte, bool, error) {
	return nil, false, nil
}

func (n *noopResultCache) Set(ctx context.Context, runID, view string, filter ViewFilter, payload []byte) error {
	return nil
}

func (n *noopResultCache) InvalidateAll(ctx context.Context) error {
	return nil
}

func buildResultKey(runID, view string, filter ViewFilter) string {
	return fmt.Sprintf("%s:%s:%s:%s", resultKeyPrefix, runID, view, filterHash(filter))
}

func filterHash(filter ViewFilter) string {
	parts := []string{}
	if filter.DepartmentID != 0 {
		parts = append(parts, "department_id="+strconv.FormatInt(filter.DepartmentID, 10))
	}
	if filter.EntityID != 0 {
		parts = append(parts, "entity_id="+strconv.FormatInt(filter.EntityID, 10))
	}
	if filter.Limit != 0 {
		parts = append(parts, "limit="+strconv.Itoa(filter.Limit))
	}

	if len(parts) == 0 {
		return "all"
	}

	sum := sha1.Sum([]byte(strings.Join(parts, "&")))
	return hex.EncodeToString(sum[:])
}
