// Package cache provides a Redis-backed query result cache with
// single-flight de-duplication for concurrent identical queries.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/talfrim/searchengine/internal/search"
	"github.com/talfrim/searchengine/pkg/config"
	pkgredis "github.com/talfrim/searchengine/pkg/redis"
)

const keyPrefix = "search:"

// QueryCache caches ranked query results keyed by a normalized form of the
// query text plus the invocation options. Redis failures degrade to cache
// misses; the engine never depends on the cache for correctness.
type QueryCache struct {
	client *pkgredis.Client
	cfg    config.RedisConfig
	group  singleflight.Group
	logger *slog.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

func New(client *pkgredis.Client, cfg config.RedisConfig) *QueryCache {
	return &QueryCache{
		client: client,
		cfg:    cfg,
		logger: slog.Default().With("component", "query-cache"),
	}
}

func (c *QueryCache) Get(ctx context.Context, query string, opts search.Options) (*search.QueryResults, bool) {
	key := c.buildKey(query, opts)
	data, err := c.client.Get(ctx, key)
	if err != nil {
		if pkgredis.IsNilError(err) {
			c.misses.Add(1)
			return nil, false
		}
		c.logger.Error("cache get failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	var result search.QueryResults
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	c.logger.Debug("cache hit", "query", query, "key", key)
	return &result, true
}

func (c *QueryCache) Set(ctx context.Context, query string, opts search.Options, result *search.QueryResults) {
	key := c.buildKey(query, opts)
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.cfg.CacheTTL); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result when present; otherwise it runs
// computeFn exactly once per key across concurrent callers and caches the
// outcome. The boolean reports whether the result came from cache.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	query string,
	opts search.Options,
	computeFn func() (*search.QueryResults, error),
) (*search.QueryResults, bool, error) {
	if result, ok := c.Get(ctx, query, opts); ok {
		return result, true, nil
	}
	key := c.buildKey(query, opts)
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		if result, ok := c.Get(ctx, query, opts); ok {
			return result, nil
		}
		result, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, query, opts, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*search.QueryResults), false, nil
}

// Invalidate removes every cached query result. Called after an index reset
// or rebuild so stale rankings cannot be served.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	pattern := keyPrefix + "*"
	deleted, err := c.client.FlushByPattern(ctx, pattern)
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidate", "keys_deleted", deleted)
	return nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) buildKey(query string, opts search.Options) string {
	raw := fmt.Sprintf("%s:limit=%d:sem=%t:ent=%t",
		normalizeQuery(query), opts.Limit, opts.Semantic, opts.Entities)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}

// normalizeQuery folds case and word order so trivially reworded queries
// share a cache entry. Ranking is order-independent, so this is safe.
func normalizeQuery(query string) string {
	words := strings.Fields(strings.ToLower(query))
	sort.Strings(words)
	return strings.Join(words, ",")
}
