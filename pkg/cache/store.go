package cache

import (
	"context"
	"time"
)

// Store is the caching contract the client programs against. Implementations
// must be safe for concurrent use and must treat a stored nil value as a
// valid hit.
type Store interface {
	// Get returns the cached value for key. The bool reports presence;
	// (nil, true) means a cached null payload, not a miss.
	Get(ctx context.Context, key string) (any, bool)

	// Set stores value under key. A ttl <= 0 selects the store's default.
	Set(ctx context.Context, key string, value any, ttl time.Duration)

	// Delete removes key, reporting whether it was present.
	Delete(ctx context.Context, key string) bool

	// Clear drops all entries and resets statistics.
	Clear(ctx context.Context)

	// Stats returns a snapshot of hit/miss telemetry.
	Stats() Stats
}

// Stats is a point-in-time snapshot of cache telemetry.
type Stats struct {
	Hits          uint64  `json:"hits"`
	Misses        uint64  `json:"misses"`
	Size          int     `json:"size"`
	MaxSize       int     `json:"max_size"`
	HitRate       float64 `json:"hit_rate"`
	TotalRequests uint64  `json:"total_requests"`
}
