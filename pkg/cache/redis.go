package cache

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisStore is a Store backed by Redis, letting several client processes
// share one response cache. Expiry is enforced server-side through the key
// TTL and double-checked against the stored entry on read.
//
// Backend failures never fail the caller: errors are logged, counted, and
// reported as a miss (Get) or dropped (Set/Delete), so a cache outage only
// costs extra upstream requests.
type RedisStore struct {
	redis      *redis.Client
	prefix     string
	defaultTTL time.Duration
	logger     zerolog.Logger

	hits   atomic.Uint64
	misses atomic.Uint64
}

// Compile-time interface check.
var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a Redis-backed store. All keys are namespaced under
// prefix to keep the cache isolated from other users of the same database.
func NewRedisStore(redisClient *redis.Client, prefix string, defaultTTL time.Duration, logger zerolog.Logger) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if prefix == "" {
		prefix = "apicache"
	}
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}

	return &RedisStore{
		redis:      redisClient,
		prefix:     prefix,
		defaultTTL: defaultTTL,
		logger:     logger,
	}
}

func (s *RedisStore) redisKey(key string) string {
	return s.prefix + ":" + key
}

// Get retrieves the entry stored under key. Any backend or decode error is
// reported as a miss.
func (s *RedisStore) Get(ctx context.Context, key string) (any, bool) {
	data, err := s.redis.Get(ctx, s.redisKey(key)).Bytes()
	if err != nil {
		if err != redis.Nil {
			CacheErrors.WithLabelValues("get").Inc()
			s.logger.Warn().Err(err).Str("key", key).Msg("Redis cache get failed")
		}
		s.misses.Add(1)
		CacheMisses.WithLabelValues("redis").Inc()
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		s.logger.Warn().Err(err).Str("key", key).Msg("Corrupt cache entry, treating as miss")
		s.misses.Add(1)
		CacheMisses.WithLabelValues("redis").Inc()
		return nil, false
	}

	// Redis TTL should have removed stale entries already; re-check in case
	// of clock drift between writers.
	if entry.IsExpired() {
		_ = s.redis.Del(ctx, s.redisKey(key)).Err()
		s.misses.Add(1)
		CacheMisses.WithLabelValues("redis").Inc()
		CacheExpired.Inc()
		return nil, false
	}

	s.hits.Add(1)
	CacheHits.WithLabelValues("redis").Inc()
	return entry.Value, true
}

// Set stores value under key with the given TTL (the store default when
// ttl <= 0). Errors are logged and dropped.
func (s *RedisStore) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	entry := Entry{Value: value, ExpiresAt: time.Now().Add(ttl)}
	data, err := json.Marshal(&entry)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		s.logger.Warn().Err(err).Str("key", key).Msg("Failed to marshal cache entry")
		return
	}

	if err := s.redis.Set(ctx, s.redisKey(key), data, ttl).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		s.logger.Warn().Err(err).Str("key", key).Msg("Redis cache set failed")
	}
}

// Delete removes key, reporting whether it was present.
func (s *RedisStore) Delete(ctx context.Context, key string) bool {
	removed, err := s.redis.Del(ctx, s.redisKey(key)).Result()
	if err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		s.logger.Warn().Err(err).Str("key", key).Msg("Redis cache delete failed")
		return false
	}
	return removed > 0
}

// Clear removes every entry under the store's prefix and resets counters.
func (s *RedisStore) Clear(ctx context.Context) {
	iter := s.redis.Scan(ctx, 0, s.prefix+":*", 0).Iterator()
	for iter.Next(ctx) {
		if err := s.redis.Del(ctx, iter.Val()).Err(); err != nil {
			CacheErrors.WithLabelValues("clear").Inc()
			s.logger.Warn().Err(err).Str("key", iter.Val()).Msg("Redis cache clear failed")
		}
	}
	if err := iter.Err(); err != nil {
		CacheErrors.WithLabelValues("clear").Inc()
		s.logger.Warn().Err(err).Msg("Redis cache scan failed during clear")
	}

	s.hits.Store(0)
	s.misses.Store(0)
}

// Stats returns hit/miss telemetry tracked by this process. Size and MaxSize
// are zero: the shared backend's entry count is not tracked per process.
func (s *RedisStore) Stats() Stats {
	hits := s.hits.Load()
	misses := s.misses.Load()
	total := hits + misses

	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return Stats{
		Hits:          hits,
		Misses:        misses,
		HitRate:       hitRate,
		TotalRequests: total,
	}
}
