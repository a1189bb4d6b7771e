package registry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/orgsync/pkg/composables"
)

// DocumentCache stores downloaded exports so repeated runs skip the multi-megabyte download.
type DocumentCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
}

type RedisCache struct {
	redis  *redis.Client
	prefix string
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{redis: client, prefix: "orgsync:registry:document:v1"}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.redis.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return c.redis.Set(ctx, c.key(key), data, ttl).Err()
}

func (c *RedisCache) key(key string) string {
	sum := sha256.Sum256([]byte(key))
	return c.prefix + ":" + hex.EncodeToString(sum[:8])
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryCache is a process-local DocumentCache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry), now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || (!e.expiresAt.IsZero() && c.now().After(e.expiresAt)) {
		return nil, false, nil
	}
	return e.data, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, data []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := memoryEntry{data: data}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}
	c.entries[key] = e
	return nil
}

// CachedFetcher serves the export from cache and falls back to the wrapped Fetcher.
// Cache failures are logged and never fail the fetch.
type CachedFetcher struct {
	next  Fetcher
	cache DocumentCache
	key   string
	ttl   time.Duration
}

func NewCachedFetcher(next Fetcher, cache DocumentCache, key string, ttl time.Duration) *CachedFetcher {
	return &CachedFetcher{next: next, cache: cache, key: key, ttl: ttl}
}

func (f *CachedFetcher) Fetch(ctx context.Context) ([]byte, error) {
	data, ok, err := f.cache.Get(ctx, f.key)
	switch {
	case err != nil:
		logCacheError(ctx, "get", err)
	case ok:
		recordDocumentCache(true)
		return data, nil
	}
	recordDocumentCache(false)

	data, err = f.next.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	if err := f.cache.Set(ctx, f.key, data, f.ttl); err != nil {
		logCacheError(ctx, "set", err)
	}
	return data, nil
}

func logCacheError(ctx context.Context, op string, err error) {
	logger := composables.UseLogger(ctx)
	if logger == nil {
		return
	}
	logger.WithFields(logrus.Fields{"op": op, "error": err.Error()}).Warn("registry document cache unavailable")
}
