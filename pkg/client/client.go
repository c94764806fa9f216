// Package client provides a resilient HTTP client with token-bucket rate
// limiting, GET response caching, and retrying request execution.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/lifeodyssey/junrei-api-client/pkg/cache"
	"github.com/lifeodyssey/junrei-api-client/pkg/ratelimit"
)

// Prometheus metrics for request execution.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apiclient_requests_total",
		Help: "Total requests by endpoint and outcome",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "apiclient_request_duration_seconds",
		Help:    "Request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apiclient_errors_total",
		Help: "Total request errors by class",
	}, []string{"class"})
)

// Allowed base URL schemes. Anything else is rejected at construction time
// to prevent request redirection to unintended protocols.
var allowedSchemes = map[string]bool{"http": true, "https": true}

// maxResponseSize bounds how much of a response body is read.
const maxResponseSize = 10 * 1024 * 1024

// bodyExcerptLen bounds how much of an error response body is kept in the
// returned APIError.
const bodyExcerptLen = 512

// Config holds the client configuration.
type Config struct {
	// BaseURL is the destination root, e.g. "https://api.example.com".
	// Must use http or https and carry a non-empty host.
	BaseURL string

	// APIKey, when set, is sent as a bearer token on every request.
	APIKey string

	// UserAgent identifies this client to the remote API.
	UserAgent string

	// Timeout applies per network call.
	Timeout time.Duration

	// MaxRetries is the total number of attempts (3 means at most 3
	// network calls for one logical request).
	MaxRetries int

	// Rate limiting: RateLimitCalls admitted per RateLimitPeriod, with
	// optional burst headroom above the steady-state rate.
	RateLimitCalls  int
	RateLimitPeriod time.Duration
	BurstMultiplier float64

	// Caching of GET responses.
	CacheEnabled    bool
	CacheTTL        time.Duration
	CacheMaxSize    int
	CleanupInterval time.Duration

	// Retry is the backoff schedule for retryable failures.
	Retry RetryConfig

	// HTTPClient, when set, is used instead of a lazily created one. The
	// caller retains ownership; Close will not release it.
	HTTPClient *http.Client

	// CacheStore, when set, replaces the default in-memory cache (for
	// example a Redis-backed store shared across processes). The caller
	// retains ownership.
	CacheStore cache.Store
}

// DefaultConfig returns a safe default configuration for the given base URL.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:         baseURL,
		UserAgent:       "junrei-api-client/1.0",
		Timeout:         30 * time.Second,
		MaxRetries:      3,
		RateLimitCalls:  100,
		RateLimitPeriod: 60 * time.Second,
		BurstMultiplier: 1.0,
		CacheEnabled:    true,
		CacheTTL:        time.Hour,
		CacheMaxSize:    1000,
		CleanupInterval: 5 * time.Minute,
		Retry:           DefaultRetryConfig(),
	}
}

// RequestOptions carries the per-request inputs of Request.
type RequestOptions struct {
	// Params are appended to the URL as query parameters.
	Params url.Values

	// JSONBody, when non-nil, is marshalled and sent as application/json.
	JSONBody any

	// FormBody, when non-empty, is sent URL-encoded. Ignored if JSONBody
	// is set.
	FormBody url.Values

	// Headers are merged last, so they override the client defaults.
	Headers http.Header

	// SkipCache bypasses the response cache for this request.
	SkipCache bool
}

// Client executes HTTP requests with caching, rate-limit admission, and
// retries. The underlying connection pool is created lazily on first use and
// shared by all requests until Close.
type Client struct {
	baseURL    string
	apiKey     string
	userAgent  string
	timeout    time.Duration
	maxRetries int
	retry      RetryConfig

	limiter *ratelimit.Limiter

	cache      cache.Store
	ownedCache *cache.Cache // set when the client built its own store
	cacheTTL   time.Duration

	// Connection lifecycle: the fast path loads the pointer without
	// locking; only first-time initialization takes initMu and re-checks.
	httpClient atomic.Pointer[http.Client]
	initMu     sync.Mutex
	ownsClient bool
	closed     atomic.Bool

	logger zerolog.Logger
}

// New creates a resilient API client.
func New(cfg Config) (*Client, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, &APIError{Class: ClassValidation, Message: fmt.Sprintf("invalid base URL %q", cfg.BaseURL), Err: err}
	}
	if !allowedSchemes[parsed.Scheme] {
		return nil, &APIError{Class: ClassValidation, Message: fmt.Sprintf("invalid URL scheme %q, only http/https allowed", parsed.Scheme)}
	}
	if parsed.Host == "" {
		return nil, &APIError{Class: ClassValidation, Message: fmt.Sprintf("invalid base URL %q: missing host", cfg.BaseURL)}
	}

	if cfg.UserAgent == "" {
		cfg.UserAgent = "junrei-api-client/1.0"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RateLimitCalls <= 0 {
		cfg.RateLimitCalls = 100
	}
	if cfg.RateLimitPeriod <= 0 {
		cfg.RateLimitPeriod = 60 * time.Second
	}
	if cfg.BurstMultiplier == 0 {
		cfg.BurstMultiplier = 1.0
	}
	if cfg.Retry == (RetryConfig{}) {
		cfg.Retry = DefaultRetryConfig()
	}

	limiter, err := ratelimit.NewWithBurst(cfg.RateLimitCalls, cfg.RateLimitPeriod, cfg.BurstMultiplier)
	if err != nil {
		return nil, &APIError{Class: ClassValidation, Message: "invalid rate limit configuration", Err: err}
	}

	logger := log.With().Str("component", "api-client").Str("base_url", cfg.BaseURL).Logger()
	limiter.SetLogger(logger)

	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		userAgent:  cfg.UserAgent,
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		retry:      cfg.Retry,
		limiter:    limiter,
		cacheTTL:   cfg.CacheTTL,
		logger:     logger,
	}

	switch {
	case cfg.CacheStore != nil:
		c.cache = cfg.CacheStore
	case cfg.CacheEnabled:
		owned := cache.New(cache.Options{
			DefaultTTL:      cfg.CacheTTL,
			MaxSize:         cfg.CacheMaxSize,
			CleanupInterval: cfg.CleanupInterval,
			Logger:          logger,
		})
		c.cache = owned
		c.ownedCache = owned
	}

	if cfg.HTTPClient != nil {
		c.httpClient.Store(cfg.HTTPClient)
		c.ownsClient = false
	} else {
		c.ownsClient = true
	}

	logger.Info().
		Dur("timeout", cfg.Timeout).
		Int("max_retries", cfg.MaxRetries).
		Str("rate_limit", fmt.Sprintf("%d/%v", cfg.RateLimitCalls, cfg.RateLimitPeriod)).
		Bool("cache_enabled", c.cache != nil).
		Msg("API client initialized")

	return c, nil
}

// transport returns the HTTP client, creating it on first use. The fast path
// is a lock-free pointer load; initialization is single-flight behind initMu
// with a re-check, so concurrent first callers share one connection pool.
func (c *Client) transport() (*http.Client, error) {
	if hc := c.httpClient.Load(); hc != nil {
		return hc, nil
	}

	c.initMu.Lock()
	defer c.initMu.Unlock()

	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	// Re-check: another caller may have won the initialization race.
	if hc := c.httpClient.Load(); hc != nil {
		return hc, nil
	}

	hc := &http.Client{Timeout: c.timeout}
	c.httpClient.Store(hc)
	c.logger.Debug().Msg("HTTP connection pool created")
	return hc, nil
}

// buildURL joins the base URL and endpoint path.
func (c *Client) buildURL(endpoint string) string {
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return c.baseURL + endpoint
}

// buildHeaders merges the default headers, bearer auth, and caller-supplied
// headers, in that order, so callers can override anything.
func (c *Client) buildHeaders(custom http.Header) http.Header {
	headers := http.Header{}
	headers.Set("User-Agent", c.userAgent)
	headers.Set("Accept", "application/json")

	if c.apiKey != "" {
		headers.Set("Authorization", "Bearer "+c.apiKey)
	}

	for name, values := range custom {
		headers.Del(name)
		for _, v := range values {
			headers.Add(name, v)
		}
	}
	return headers
}

// Request executes one logical HTTP request with caching, rate-limit
// admission, and retries. The returned payload is the decoded JSON value
// union (string/float64/bool/nil/[]any/map[string]any); non-JSON success
// bodies are wrapped as {"raw_response": <text>}.
func (c *Client) Request(ctx context.Context, method, endpoint string, opts RequestOptions) (any, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}

	fullURL := c.buildURL(endpoint)
	headers := c.buildHeaders(opts.Headers)

	useCache := method == http.MethodGet && c.cache != nil && !opts.SkipCache
	var cacheKey string
	if method == http.MethodGet && c.cache != nil {
		cacheKey = cache.GenerateKey(fullURL, opts.Params)
	}

	if useCache {
		if value, ok := c.cache.Get(ctx, cacheKey); ok {
			c.logger.Debug().Str("endpoint", endpoint).Msg("Cache hit")
			requestsTotal.WithLabelValues(endpoint, "cache_hit").Inc()
			return value, nil
		}
	}

	start := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	var lastErr *APIError
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if err := c.limiter.Acquire(ctx); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrContextCancelled, err)
		}

		c.logger.Debug().
			Str("method", method).
			Str("endpoint", endpoint).
			Int("attempt", attempt+1).
			Msg("Executing request")

		value, apiErr := c.doOnce(ctx, method, fullURL, endpoint, headers, opts)
		if apiErr == nil {
			if method == http.MethodGet && c.cache != nil {
				c.cache.Set(ctx, cacheKey, value, c.cacheTTL)
			}
			requestsTotal.WithLabelValues(endpoint, "success").Inc()
			if attempt > 0 {
				c.logger.Info().
					Str("endpoint", endpoint).
					Int("attempt", attempt+1).
					Msg("Request succeeded after retry")
			}
			return value, nil
		}

		lastErr = apiErr

		// Cancellation observed mid-flight comes from the caller, not the
		// upstream. Surface it as a cancellation, not a request failure.
		if errors.Is(apiErr.Err, context.Canceled) || ctx.Err() != nil {
			cause := apiErr.Err
			if cause == nil {
				cause = ctx.Err()
			}
			return nil, fmt.Errorf("%w: %w", ErrContextCancelled, cause)
		}

		errorsTotal.WithLabelValues(string(apiErr.Class)).Inc()

		if !shouldRetry(apiErr.Class) {
			c.logger.Error().
				Str("endpoint", endpoint).
				Str("class", string(apiErr.Class)).
				Int("status", apiErr.StatusCode).
				Msg("Non-retryable request error")
			return nil, finalize(apiErr, attempt+1, time.Since(start))
		}

		if attempt == c.maxRetries-1 {
			break
		}

		delay := backoffDelay(c.retry, attempt)
		retriesTotal.WithLabelValues(string(apiErr.Class)).Inc()
		retryBackoffSeconds.WithLabelValues(string(apiErr.Class)).Observe(delay.Seconds())

		c.logger.Warn().
			Str("endpoint", endpoint).
			Str("class", string(apiErr.Class)).
			Int("attempt", attempt+1).
			Dur("backoff", delay).
			Msg("Request failed, will retry")

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrContextCancelled, ctx.Err())
		case <-time.After(delay):
		}
	}

	retryExhaustedTotal.WithLabelValues(string(lastErr.Class)).Inc()
	c.logger.Error().
		Str("endpoint", endpoint).
		Str("class", string(lastErr.Class)).
		Int("attempts", c.maxRetries).
		Msg("Retry attempts exhausted")

	lastErr.Err = joinRetryExhausted(lastErr.Err)
	return nil, finalize(lastErr, c.maxRetries, time.Since(start))
}

// joinRetryExhausted chains ErrRetryExhausted in front of the cause so
// errors.Is matches both the sentinel and the underlying error.
func joinRetryExhausted(cause error) error {
	if cause == nil {
		return ErrRetryExhausted
	}
	return fmt.Errorf("%w: %w", ErrRetryExhausted, cause)
}

// finalize stamps attempt count and elapsed time on an APIError.
func finalize(e *APIError, attempts int, elapsed time.Duration) *APIError {
	e.Attempts = attempts
	e.Elapsed = elapsed
	return e
}

// doOnce performs a single network call and classifies the outcome.
func (c *Client) doOnce(ctx context.Context, method, fullURL, endpoint string, headers http.Header, opts RequestOptions) (any, *APIError) {
	var body io.Reader
	contentType := ""
	switch {
	case opts.JSONBody != nil:
		data, err := json.Marshal(opts.JSONBody)
		if err != nil {
			return nil, &APIError{Class: ClassUnexpected, Message: "marshal request body", Err: err}
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	case len(opts.FormBody) > 0:
		body = strings.NewReader(opts.FormBody.Encode())
		contentType = "application/x-www-form-urlencoded"
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, &APIError{Class: ClassUnexpected, Message: "create request", Err: err}
	}

	req.Header = headers.Clone()
	if contentType != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", contentType)
	}
	if len(opts.Params) > 0 {
		req.URL.RawQuery = opts.Params.Encode()
	}

	hc, err := c.transport()
	if err != nil {
		return nil, &APIError{Class: ClassUnexpected, Message: "acquire connection", Err: err}
	}

	resp, err := hc.Do(req)
	if err != nil {
		class := classifyTransport(err)
		msg := "request failed"
		if class == ClassTimeout {
			msg = fmt.Sprintf("request timeout after %v", c.timeout)
		}
		return nil, &APIError{Class: class, Message: msg, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &APIError{Class: ClassTransport, Message: "read response body", Err: err}
	}

	requestsTotal.WithLabelValues(endpoint, fmt.Sprintf("%d", resp.StatusCode)).Inc()

	if resp.StatusCode >= 400 {
		return nil, &APIError{
			Class:      classifyStatus(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Message:    resp.Status,
			Body:       excerpt(data),
		}
	}

	return decodePayload(data), nil
}

// decodePayload parses a response body as JSON, falling back to wrapping the
// raw text when parsing fails.
func decodePayload(data []byte) any {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return map[string]any{"raw_response": string(data)}
	}
	return value
}

// excerpt truncates an error body for inclusion in APIError.
func excerpt(data []byte) string {
	if len(data) > bodyExcerptLen {
		return string(data[:bodyExcerptLen])
	}
	return string(data)
}

// Get performs a GET request. Responses are served from and stored into the
// cache when caching is enabled.
func (c *Client) Get(ctx context.Context, endpoint string, params url.Values) (any, error) {
	return c.Request(ctx, http.MethodGet, endpoint, RequestOptions{Params: params})
}

// Post performs a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, endpoint string, jsonBody any) (any, error) {
	return c.Request(ctx, http.MethodPost, endpoint, RequestOptions{JSONBody: jsonBody})
}

// Put performs a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, endpoint string, jsonBody any) (any, error) {
	return c.Request(ctx, http.MethodPut, endpoint, RequestOptions{JSONBody: jsonBody})
}

// Patch performs a PATCH request with a JSON body.
func (c *Client) Patch(ctx context.Context, endpoint string, jsonBody any) (any, error) {
	return c.Request(ctx, http.MethodPatch, endpoint, RequestOptions{JSONBody: jsonBody})
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, endpoint string) (any, error) {
	return c.Request(ctx, http.MethodDelete, endpoint, RequestOptions{})
}

// CacheStats returns cache telemetry. The bool is false when caching is
// disabled.
func (c *Client) CacheStats() (cache.Stats, bool) {
	if c.cache == nil {
		return cache.Stats{}, false
	}
	return c.cache.Stats(), true
}

// RateLimitWaitTime reports how long a new request would currently wait for
// rate-limit admission.
func (c *Client) RateLimitWaitTime() time.Duration {
	return c.limiter.GetWaitTime()
}

// Close releases client-owned resources: the lazily created connection pool
// (never an injected one) and the internally built cache. Idempotent;
// requests after Close fail with ErrClientClosed.
func (c *Client) Close() {
	if c.closed.Swap(true) {
		return
	}

	c.initMu.Lock()
	defer c.initMu.Unlock()

	if c.ownsClient {
		if hc := c.httpClient.Load(); hc != nil {
			hc.CloseIdleConnections()
		}
	}
	if c.ownedCache != nil {
		c.ownedCache.Close()
	}
	c.logger.Debug().Msg("API client closed")
}

// SetHTTPClient replaces the underlying HTTP client (for testing).
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.httpClient.Store(hc)
	c.ownsClient = false
}
