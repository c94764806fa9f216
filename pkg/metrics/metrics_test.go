package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lifeodyssey/junrei-api-client/pkg/cache"
	"github.com/lifeodyssey/junrei-api-client/pkg/ratelimit"
)

func TestRegistry(t *testing.T) {
	if Registry == nil {
		t.Fatal("Registry must not be nil")
	}
	if Registry != prometheus.DefaultRegisterer {
		t.Error("Registry must be the default Prometheus registerer")
	}
}

// TestDocumentedMetricsRegistered drives the cache and the rate limiter once
// and verifies the metric families this package documents show up in the
// default registry under the apiclient_ prefix.
func TestDocumentedMetricsRegistered(t *testing.T) {
	ctx := context.Background()

	c := cache.New(cache.Options{DefaultTTL: time.Minute})
	defer c.Close()
	c.Get(ctx, "absent")
	c.Set(ctx, "k1", 1, 0)
	c.Get(ctx, "k1")

	limiter, err := ratelimit.New(10, time.Second)
	if err != nil {
		t.Fatalf("ratelimit.New failed: %v", err)
	}
	if err := limiter.Acquire(ctx); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}

	registered := make(map[string]bool, len(families))
	for _, family := range families {
		registered[family.GetName()] = true
	}

	for _, name := range []string{
		"apiclient_cache_hits_total",
		"apiclient_cache_misses_total",
		"apiclient_cache_entries",
		"apiclient_ratelimit_acquires_total",
		"apiclient_ratelimit_wait_seconds",
	} {
		if !registered[name] {
			t.Errorf("Documented metric %s is not registered", name)
		}
	}
}
