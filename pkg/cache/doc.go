// Package cache provides response caching for idempotent GET-style requests.
//
// Two Store implementations are provided:
//
//   - Cache: an in-memory store with TTL expiry, LRU eviction bounded by a
//     maximum entry count, hit/miss statistics, and an optional background
//     sweep of expired entries.
//   - RedisStore: a Redis-backed store so several processes can share one
//     response cache. Backend errors degrade to a cache miss.
//
// # Basic Usage
//
//	c := cache.New(cache.Options{
//		DefaultTTL: time.Hour,
//		MaxSize:    1000,
//	})
//	defer c.Close()
//
//	key := cache.GenerateKey("/v1/points/near", url.Values{"lat": {"35.0"}})
//
//	if value, ok := c.Get(ctx, key); ok {
//		// Cache hit. A nil value is still a hit: ok distinguishes
//		// "present with null payload" from "absent".
//		return value, nil
//	}
//
//	value, err := fetch(ctx)
//	if err != nil {
//		return nil, err
//	}
//	c.Set(ctx, key, value, 0) // 0 means the store's default TTL
//
// # Memoization
//
// Cached wraps an arbitrary context-taking function so repeated calls with
// equal arguments are served from the cache:
//
//	lookup := cache.Cached(c, "geocode", 10*time.Minute, geocode)
//	result, err := lookup(ctx, "Akihabara Station")
//
// # Metrics
//
// The package exports Prometheus metrics:
//
//   - apiclient_cache_hits_total{layer} - cache hits by store layer
//   - apiclient_cache_misses_total{layer} - cache misses
//   - apiclient_cache_evictions_total - LRU evictions (memory layer)
//   - apiclient_cache_expired_total - entries removed by TTL expiry
//   - apiclient_cache_entries{layer} - current entry count
//   - apiclient_cache_errors_total{operation} - backend errors (redis layer)
//
// # Expiry Semantics
//
// Expiry discovered lazily on Get is authoritative: a stale entry is removed
// and reported as a miss even if the background sweep never ran. The sweep
// only bounds memory held by entries that are never read again.
package cache
