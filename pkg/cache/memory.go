package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Default sizing for the in-memory store.
const (
	DefaultTTL             = time.Hour
	DefaultMaxSize         = 1000
	DefaultCleanupInterval = 5 * time.Minute
)

// Options configures the in-memory cache.
type Options struct {
	// DefaultTTL applies to Set calls that pass a non-positive TTL.
	DefaultTTL time.Duration

	// MaxSize bounds the entry count; the least-recently-used entry is
	// evicted when inserting a new key would exceed it.
	MaxSize int

	// CleanupInterval is the period of the background expiry sweep.
	// Zero or negative disables the sweep; lazy expiry on Get still applies.
	CleanupInterval time.Duration

	// Logger for cache events. Defaults to a disabled logger.
	Logger zerolog.Logger
}

// Cache is an in-memory Store with TTL expiry and LRU eviction.
//
// The recency list and entry map are guarded by one mutex, so the bounded
// size invariant and the recency order cannot diverge under concurrency.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front = most recently used
	hits    uint64
	misses  uint64

	defaultTTL time.Duration
	maxSize    int
	logger     zerolog.Logger

	stop     chan struct{}
	stopOnce sync.Once
}

type lruItem struct {
	key   string
	entry Entry
}

// Compile-time interface check.
var _ Store = (*Cache)(nil)

// New creates an in-memory cache and, when a cleanup interval is set,
// starts its background expiry sweep. Call Close to stop the sweep.
func New(opts Options) *Cache {
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = DefaultTTL
	}
	if opts.MaxSize <= 0 {
		opts.MaxSize = DefaultMaxSize
	}

	c := &Cache{
		entries:    make(map[string]*list.Element),
		order:      list.New(),
		defaultTTL: opts.DefaultTTL,
		maxSize:    opts.MaxSize,
		logger:     opts.Logger,
		stop:       make(chan struct{}),
	}

	if opts.CleanupInterval > 0 {
		go c.sweepLoop(opts.CleanupInterval)
	}

	c.logger.Info().
		Dur("default_ttl", opts.DefaultTTL).
		Int("max_size", opts.MaxSize).
		Dur("cleanup_interval", opts.CleanupInterval).
		Msg("Cache initialized")

	return c
}

// sweepLoop periodically removes expired entries until Close is called.
// Correctness never depends on it; lazy expiry on Get is authoritative.
func (c *Cache) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			if removed := c.CleanupExpired(); removed > 0 {
				c.logger.Debug().Int("removed", removed).Msg("Cache sweep completed")
			}
		}
	}
}

// Get returns the value stored under key. An expired entry is removed and
// reported as a miss. A hit marks the entry most recently used; (nil, true)
// means a cached null payload.
func (c *Cache) Get(_ context.Context, key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		c.misses++
		CacheMisses.WithLabelValues("memory").Inc()
		return nil, false
	}

	item := elem.Value.(*lruItem)
	if item.entry.IsExpired() {
		c.removeLocked(elem)
		c.misses++
		CacheMisses.WithLabelValues("memory").Inc()
		CacheExpired.Inc()
		c.logger.Debug().Str("key", key).Msg("Cache entry expired")
		return nil, false
	}

	c.order.MoveToFront(elem)
	c.hits++
	CacheHits.WithLabelValues("memory").Inc()

	return item.entry.Value, true
}

// Set stores value under key, replacing any existing entry. If the key is
// new and the cache is full, the least-recently-used entry is evicted before
// the insert so the size bound always holds.
func (c *Cache) Set(_ context.Context, key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	entry := Entry{Value: value, ExpiresAt: time.Now().Add(ttl)}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		elem.Value.(*lruItem).entry = entry
		c.order.MoveToFront(elem)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictLRULocked()
	}

	c.entries[key] = c.order.PushFront(&lruItem{key: key, entry: entry})
	CacheEntries.WithLabelValues("memory").Set(float64(len(c.entries)))
}

// evictLRULocked removes the least-recently-used entry. Callers hold c.mu.
func (c *Cache) evictLRULocked() {
	oldest := c.order.Back()
	if oldest == nil {
		return
	}
	key := oldest.Value.(*lruItem).key
	c.removeLocked(oldest)
	CacheEvictions.Inc()
	c.logger.Debug().Str("key", key).Msg("Cache evicted LRU entry")
}

// removeLocked drops an element from both the map and the recency list.
// Callers hold c.mu.
func (c *Cache) removeLocked(elem *list.Element) {
	delete(c.entries, elem.Value.(*lruItem).key)
	c.order.Remove(elem)
	CacheEntries.WithLabelValues("memory").Set(float64(len(c.entries)))
}

// Delete removes key, reporting whether it was present.
func (c *Cache) Delete(_ context.Context, key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return false
	}
	c.removeLocked(elem)
	return true
}

// Clear drops all entries and resets the hit/miss counters.
func (c *Cache) Clear(_ context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	size := len(c.entries)
	c.entries = make(map[string]*list.Element)
	c.order.Init()
	c.hits = 0
	c.misses = 0
	CacheEntries.WithLabelValues("memory").Set(0)

	c.logger.Info().Int("entries_removed", size).Msg("Cache cleared")
}

// CleanupExpired removes every entry whose TTL has elapsed and returns the
// number removed.
func (c *Cache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expired []*list.Element
	for elem := c.order.Back(); elem != nil; elem = elem.Prev() {
		if elem.Value.(*lruItem).entry.IsExpired() {
			expired = append(expired, elem)
		}
	}
	for _, elem := range expired {
		c.removeLocked(elem)
	}

	if len(expired) > 0 {
		CacheExpired.Add(float64(len(expired)))
	}
	return len(expired)
}

// Stats returns a snapshot of cache telemetry.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}

	return Stats{
		Hits:          c.hits,
		Misses:        c.misses,
		Size:          len(c.entries),
		MaxSize:       c.maxSize,
		HitRate:       hitRate,
		TotalRequests: total,
	}
}

// Close stops the background sweep. Idempotent.
func (c *Cache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}
