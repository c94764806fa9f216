package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by store layer ("memory", "redis").
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apiclient_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"layer"},
	)

	// CacheMisses tracks cache misses by store layer.
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apiclient_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"layer"},
	)

	// CacheEvictions tracks LRU evictions in the memory layer.
	CacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "apiclient_cache_evictions_total",
			Help: "Total number of entries evicted by the LRU policy",
		},
	)

	// CacheExpired tracks entries removed by TTL expiry (lazy or swept).
	CacheExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "apiclient_cache_expired_total",
			Help: "Total number of entries removed after TTL expiry",
		},
	)

	// CacheEntries tracks the current entry count by layer.
	CacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "apiclient_cache_entries",
			Help: "Current number of cache entries",
		},
		[]string{"layer"},
	)

	// CacheErrors tracks backend operation errors (redis layer).
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apiclient_cache_errors_total",
			Help: "Total number of cache backend errors",
		},
		[]string{"operation"}, // "get", "set", "delete", "clear"
	)
)
