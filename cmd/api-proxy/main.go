// Command api-proxy exposes a resilient pass-through proxy in front of an
// upstream JSON API. Requests under /api/ are forwarded through the client,
// so callers get caching, rate limiting, and retries without embedding the
// library.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/lifeodyssey/junrei-api-client/pkg/cache"
	"github.com/lifeodyssey/junrei-api-client/pkg/client"
	"github.com/lifeodyssey/junrei-api-client/pkg/logging"
)

func main() {
	upstreamURL := os.Getenv("UPSTREAM_URL")
	port := getEnv("PORT", "8080")
	apiKey := os.Getenv("API_KEY")
	userAgent := getEnv("USER_AGENT", "junrei-api-proxy/1.0")
	redisURL := os.Getenv("REDIS_URL")
	logLevel := getEnv("LOG_LEVEL", "info")

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(logLevel),
		Pretty: os.Getenv("LOG_PRETTY") == "true",
		Output: os.Stderr,
	})

	if upstreamURL == "" {
		logger.Fatal().Msg("UPSTREAM_URL is required")
	}

	cfg := client.DefaultConfig(upstreamURL)
	cfg.APIKey = apiKey
	cfg.UserAgent = userAgent

	if redisURL != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: redisURL})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Fatal().Err(err).Str("redis_url", redisURL).Msg("Failed to connect to Redis")
		}
		defer redisClient.Close()
		cfg.CacheStore = cache.NewRedisStore(redisClient, "api-proxy", cfg.CacheTTL, logger)
		logger.Info().Str("redis_url", redisURL).Msg("Using Redis-backed response cache")
	}

	apiClient, err := client.New(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create API client")
	}
	defer apiClient.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/stats", statsHandler(apiClient))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/", proxyHandler(apiClient, logger))

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info().Str("addr", server.Addr).Str("upstream", upstreamURL).Msg("Starting API proxy")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Shutdown error")
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// statsHandler reports client telemetry as JSON.
func statsHandler(c *client.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]any{
			"rate_limit_wait_ms": c.RateLimitWaitTime().Milliseconds(),
		}
		if stats, ok := c.CacheStats(); ok {
			payload["cache"] = stats
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			http.Error(w, "failed to encode stats", http.StatusInternalServerError)
		}
	}
}

// proxyHandler forwards /api/* requests through the resilient client and
// re-encodes the decoded payload as JSON.
func proxyHandler(c *client.Client, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		endpoint := strings.TrimPrefix(r.URL.Path, "/api")
		if endpoint == "" {
			endpoint = "/"
		}

		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()

		var body any
		if r.Body != nil && (r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch) {
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				http.Error(w, "invalid JSON body", http.StatusBadRequest)
				return
			}
		}

		value, err := c.Request(ctx, r.Method, endpoint, client.RequestOptions{
			Params:   r.URL.Query(),
			JSONBody: body,
		})
		if err != nil {
			writeUpstreamError(w, logger, endpoint, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(value); err != nil {
			logger.Error().Err(err).Str("endpoint", endpoint).Msg("Failed to write proxy response")
		}
	}
}

// writeUpstreamError maps client failures onto proxy status codes: upstream
// HTTP errors keep their status, everything else is a 502.
func writeUpstreamError(w http.ResponseWriter, logger zerolog.Logger, endpoint string, err error) {
	status := http.StatusBadGateway
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode > 0 {
		status = apiErr.StatusCode
	}

	logger.Warn().Err(err).Str("endpoint", endpoint).Int("status", status).Msg("Upstream request failed")
	http.Error(w, fmt.Sprintf("upstream request failed: %v", err), status)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
