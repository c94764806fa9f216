package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func newTestCache(t *testing.T, opts Options) *Cache {
	t.Helper()
	c := New(opts)
	t.Cleanup(c.Close)
	return c
}

func TestCache_SetAndGet(t *testing.T) {
	c := newTestCache(t, Options{})
	ctx := context.Background()

	c.Set(ctx, "k1", map[string]any{"data": "value"}, 0)

	value, ok := c.Get(ctx, "k1")
	if !ok {
		t.Fatal("Get returned miss for stored key")
	}
	m, ok := value.(map[string]any)
	if !ok || m["data"] != "value" {
		t.Errorf("Get returned %v, want stored map", value)
	}
}

func TestCache_Get_Miss(t *testing.T) {
	c := newTestCache(t, Options{})

	if _, ok := c.Get(context.Background(), "absent"); ok {
		t.Error("Get returned hit for absent key")
	}

	stats := c.Stats()
	if stats.Misses != 1 {
		t.Errorf("Misses = %d, want 1", stats.Misses)
	}
}

func TestCache_NilValueIsHit(t *testing.T) {
	c := newTestCache(t, Options{})
	ctx := context.Background()

	c.Set(ctx, "null-payload", nil, 0)

	value, ok := c.Get(ctx, "null-payload")
	if !ok {
		t.Fatal("Cached nil must be a hit, not a miss")
	}
	if value != nil {
		t.Errorf("Value = %v, want nil", value)
	}

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 0 {
		t.Errorf("Stats = %d hits / %d misses, want 1/0", stats.Hits, stats.Misses)
	}
}

func TestCache_TTLExpiry_LazyOnGet(t *testing.T) {
	// No background sweep: lazy expiry on Get must be authoritative.
	c := newTestCache(t, Options{CleanupInterval: 0})
	ctx := context.Background()

	c.Set(ctx, "short", "v", 30*time.Millisecond)

	if _, ok := c.Get(ctx, "short"); !ok {
		t.Fatal("Entry missing before TTL elapsed")
	}

	time.Sleep(50 * time.Millisecond)

	if _, ok := c.Get(ctx, "short"); ok {
		t.Error("Entry still served after TTL elapsed")
	}
	if stats := c.Stats(); stats.Size != 0 {
		t.Errorf("Size = %d after lazy expiry, want 0", stats.Size)
	}
}

func TestCache_TTLOverride(t *testing.T) {
	c := newTestCache(t, Options{DefaultTTL: time.Hour})
	ctx := context.Background()

	c.Set(ctx, "override", "v", 30*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	if _, ok := c.Get(ctx, "override"); ok {
		t.Error("Per-entry TTL override not honored")
	}
}

func TestCache_LRUEviction_InsertionOrder(t *testing.T) {
	c := newTestCache(t, Options{MaxSize: 3})
	ctx := context.Background()

	// Insert N+1 distinct keys without intervening Gets: the first-inserted
	// key is evicted.
	for i := 1; i <= 4; i++ {
		c.Set(ctx, fmt.Sprintf("k%d", i), i, 0)
	}

	if _, ok := c.Get(ctx, "k1"); ok {
		t.Error("k1 should have been evicted as least recently used")
	}
	for _, key := range []string{"k2", "k3", "k4"} {
		if _, ok := c.Get(ctx, key); !ok {
			t.Errorf("%s should still be cached", key)
		}
	}
	if stats := c.Stats(); stats.Size != 3 {
		t.Errorf("Size = %d, want 3", stats.Size)
	}
}

func TestCache_LRUEviction_GetRefreshesRecency(t *testing.T) {
	c := newTestCache(t, Options{MaxSize: 3})
	ctx := context.Background()

	c.Set(ctx, "k1", 1, 0)
	c.Set(ctx, "k2", 2, 0)
	c.Set(ctx, "k3", 3, 0)

	// Touch k1: k2 becomes least recently used.
	if _, ok := c.Get(ctx, "k1"); !ok {
		t.Fatal("k1 missing")
	}

	c.Set(ctx, "k4", 4, 0)

	if _, ok := c.Get(ctx, "k2"); ok {
		t.Error("k2 should have been evicted, not k1")
	}
	if _, ok := c.Get(ctx, "k1"); !ok {
		t.Error("k1 was touched and must survive the eviction")
	}
}

func TestCache_SetExistingKey_NoEviction(t *testing.T) {
	c := newTestCache(t, Options{MaxSize: 2})
	ctx := context.Background()

	c.Set(ctx, "k1", 1, 0)
	c.Set(ctx, "k2", 2, 0)
	c.Set(ctx, "k1", 10, 0) // update, not insert

	if stats := c.Stats(); stats.Size != 2 {
		t.Errorf("Size = %d after updating existing key, want 2", stats.Size)
	}
	if value, _ := c.Get(ctx, "k1"); value != 10 {
		t.Errorf("k1 = %v, want 10", value)
	}
	if _, ok := c.Get(ctx, "k2"); !ok {
		t.Error("k2 evicted by an update of an existing key")
	}
}

func TestCache_Delete(t *testing.T) {
	c := newTestCache(t, Options{})
	ctx := context.Background()

	c.Set(ctx, "k1", 1, 0)

	if !c.Delete(ctx, "k1") {
		t.Error("Delete of present key = false, want true")
	}
	if c.Delete(ctx, "k1") {
		t.Error("Delete of absent key = true, want false")
	}
	if _, ok := c.Get(ctx, "k1"); ok {
		t.Error("Key still present after Delete")
	}
}

func TestCache_Clear(t *testing.T) {
	c := newTestCache(t, Options{})
	ctx := context.Background()

	c.Set(ctx, "k1", 1, 0)
	c.Get(ctx, "k1")
	c.Get(ctx, "absent")

	c.Clear(ctx)

	stats := c.Stats()
	if stats.Size != 0 || stats.Hits != 0 || stats.Misses != 0 {
		t.Errorf("Stats after Clear = %+v, want zeroed", stats)
	}
}

func TestCache_CleanupExpired(t *testing.T) {
	c := newTestCache(t, Options{CleanupInterval: 0})
	ctx := context.Background()

	c.Set(ctx, "stale1", 1, 20*time.Millisecond)
	c.Set(ctx, "stale2", 2, 20*time.Millisecond)
	c.Set(ctx, "fresh", 3, time.Hour)

	time.Sleep(40 * time.Millisecond)

	if removed := c.CleanupExpired(); removed != 2 {
		t.Errorf("CleanupExpired removed %d, want 2", removed)
	}
	if stats := c.Stats(); stats.Size != 1 {
		t.Errorf("Size = %d after sweep, want 1", stats.Size)
	}
	if _, ok := c.Get(ctx, "fresh"); !ok {
		t.Error("Fresh entry removed by sweep")
	}
}

func TestCache_BackgroundSweep(t *testing.T) {
	c := newTestCache(t, Options{CleanupInterval: 25 * time.Millisecond})
	ctx := context.Background()

	c.Set(ctx, "stale", 1, 10*time.Millisecond)

	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		if c.Stats().Size == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("Background sweep never removed the expired entry")
}

func TestCache_Stats(t *testing.T) {
	c := newTestCache(t, Options{MaxSize: 10})
	ctx := context.Background()

	c.Set(ctx, "k1", 1, 0)
	c.Get(ctx, "k1")     // hit
	c.Get(ctx, "k1")     // hit
	c.Get(ctx, "absent") // miss

	stats := c.Stats()
	if stats.Hits != 2 || stats.Misses != 1 {
		t.Errorf("Stats = %d hits / %d misses, want 2/1", stats.Hits, stats.Misses)
	}
	if stats.TotalRequests != 3 {
		t.Errorf("TotalRequests = %d, want 3", stats.TotalRequests)
	}
	if want := 2.0 / 3.0; stats.HitRate < want-0.001 || stats.HitRate > want+0.001 {
		t.Errorf("HitRate = %v, want %v", stats.HitRate, want)
	}
	if stats.MaxSize != 10 {
		t.Errorf("MaxSize = %d, want 10", stats.MaxSize)
	}
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := newTestCache(t, Options{MaxSize: 50})
	ctx := context.Background()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", i%100)
				c.Set(ctx, key, i, 0)
				c.Get(ctx, key)
				if i%10 == 0 {
					c.Delete(ctx, key)
				}
			}
		}(g)
	}
	wg.Wait()

	// The bounded size invariant must hold after arbitrary interleavings.
	if stats := c.Stats(); stats.Size > 50 {
		t.Errorf("Size = %d exceeds MaxSize 50", stats.Size)
	}
}
