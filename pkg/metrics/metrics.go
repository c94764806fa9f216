// Package metrics provides the centralized Prometheus metrics registry for
// the API client. All metrics are defined in their respective packages
// (client, cache, ratelimit) to maintain modularity and avoid circular
// dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the API client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Rate Limit Metrics (pkg/ratelimit):
//   - apiclient_ratelimit_acquires_total (Counter): Tokens acquired
//   - apiclient_ratelimit_throttles_total (Counter): Acquisitions that had to wait for refill
//   - apiclient_ratelimit_wait_seconds (Histogram): Time spent waiting for admission
//
// Cache Metrics (pkg/cache):
//   - apiclient_cache_hits_total{layer} (Counter): Cache hits by layer (memory, redis)
//   - apiclient_cache_misses_total{layer} (Counter): Cache misses by layer
//   - apiclient_cache_evictions_total (Counter): LRU evictions at capacity
//   - apiclient_cache_expired_total (Counter): Entries removed after TTL expiry
//   - apiclient_cache_entries{layer} (Gauge): Current number of cached entries
//   - apiclient_cache_errors_total{operation} (Counter): Cache backend operation errors
//
// Request Metrics (pkg/client):
//   - apiclient_requests_total{endpoint, status} (Counter): Requests by endpoint and outcome
//   - apiclient_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - apiclient_errors_total{class} (Counter): Errors by class (client, server, rate_limit, timeout, transport)
//
// Retry Metrics (pkg/client):
//   - apiclient_retries_total{error_class} (Counter): Retry attempts by error class
//   - apiclient_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - apiclient_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(apiclient_cache_hits_total[5m])) /
//   (sum(rate(apiclient_cache_hits_total[5m])) + sum(rate(apiclient_cache_misses_total[5m])))
//
//   # Request Error Rate
//   rate(apiclient_errors_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(apiclient_request_duration_seconds_bucket[5m]))
//
//   # Retry Pressure
//   rate(apiclient_retries_total[5m]) / rate(apiclient_requests_total[5m])
