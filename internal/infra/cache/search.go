package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	gocache "github.com/patrickmn/go-cache"
	"github.com/zeebo/xxh3"

	"github.com/totegamma/diamond-portal"
)

// SearchKey derives a cache key from everything that shapes a search result.
func SearchKey(q diamond.SearchQuery) string {
	b, _ := json.Marshal(q)
	return fmt.Sprintf("diamond:search:%016x", xxh3.Hash(b))
}

// MemorySearchCache keeps search results in process memory.
type MemorySearchCache struct {
	cache *gocache.Cache
}

func NewMemorySearchCache(ttl time.Duration) *MemorySearchCache {
	return &MemorySearchCache{
		cache: gocache.New(ttl, 2*ttl),
	}
}

func (c *MemorySearchCache) Get(ctx context.Context, q diamond.SearchQuery) ([]diamond.Endpoint, bool) {
	x, found := c.cache.Get(SearchKey(q))
	if !found {
		return nil, false
	}
	return x.([]diamond.Endpoint), true
}

func (c *MemorySearchCache) Set(ctx context.Context, q diamond.SearchQuery, endpoints []diamond.Endpoint) {
	c.cache.Set(SearchKey(q), endpoints, gocache.DefaultExpiration)
}

// MemcachedSearchCache shares search results between portal processes.
type MemcachedSearchCache struct {
	mc  *memcache.Client
	ttl time.Duration
}

func NewMemcachedSearchCache(mc *memcache.Client, ttl time.Duration) *MemcachedSearchCache {
	return &MemcachedSearchCache{mc: mc, ttl: ttl}
}

func (c *MemcachedSearchCache) Get(ctx context.Context, q diamond.SearchQuery) ([]diamond.Endpoint, bool) {
	item, err := c.mc.Get(SearchKey(q))
	if err != nil {
		if err != memcache.ErrCacheMiss {
			slog.WarnContext(
				ctx, "search cache lookup failed",
				slog.String("error", err.Error()),
				slog.String("module", "cache"),
			)
		}
		return nil, false
	}

	var endpoints []diamond.Endpoint
	if err := json.Unmarshal(item.Value, &endpoints); err != nil {
		return nil, false
	}
	return endpoints, true
}

func (c *MemcachedSearchCache) Set(ctx context.Context, q diamond.SearchQuery, endpoints []diamond.Endpoint) {
	b, err := json.Marshal(endpoints)
	if err != nil {
		return
	}
	err = c.mc.Set(&memcache.Item{
		Key:        SearchKey(q),
		Value:      b,
		Expiration: int32(c.ttl / time.Second),
	})
	if err != nil {
		slog.WarnContext(
			ctx, "search cache store failed",
			slog.String("error", err.Error()),
			slog.String("module", "cache"),
		)
	}
}
