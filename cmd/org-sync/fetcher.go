package main

import (
	"github.com/redis/go-redis/v9"

	"github.com/iota-uz/orgsync/modules/organization/infrastructure/registry"
	"github.com/iota-uz/orgsync/pkg/configuration"
)

// newFetcher builds the registry client for url (the configured URL when empty),
// fronted by the Redis document cache when REGISTRY_CACHE_ENABLED is set.
// The returned func releases the Redis connection.
func newFetcher(conf *configuration.Configuration, url string) (registry.Fetcher, func()) {
	if url == "" {
		url = conf.Registry.URL
	}
	client := registry.NewClient(url, conf.Registry.Timeout, registry.WithRetries(conf.Registry.Retries))
	if !conf.Registry.CacheEnabled {
		return client, func() {}
	}
	rdb := redis.NewClient(&redis.Options{Addr: conf.RedisURL})
	cache := registry.NewRedisCache(rdb)
	return registry.NewCachedFetcher(client, cache, client.URL(), conf.Registry.CacheTTL), func() { _ = rdb.Close() }
}
