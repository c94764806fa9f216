package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Cached wraps fn so repeated calls with equal arguments are served from the
// cache. The cache key derives from the caller-supplied namespace plus the
// JSON serialization of the argument; there is no reflective argument
// capture, so A must be JSON-serializable (maps, slices, structs, scalars).
//
// A ttl <= 0 selects the cache's default TTL. Errors from fn are never
// cached. Use this with the in-memory Cache: values round-trip through the
// store untouched, so the concrete type R is preserved on hits.
func Cached[A, R any](c *Cache, namespace string, ttl time.Duration, fn func(context.Context, A) (R, error)) func(context.Context, A) (R, error) {
	return func(ctx context.Context, arg A) (R, error) {
		var zero R

		key, err := argKey(namespace, arg)
		if err != nil {
			return zero, err
		}

		if value, ok := c.Get(ctx, key); ok {
			result, ok := value.(R)
			if !ok && value != nil {
				return zero, fmt.Errorf("memoized value for %q has type %T, want %T", namespace, value, zero)
			}
			return result, nil
		}

		result, err := fn(ctx, arg)
		if err != nil {
			return zero, err
		}

		c.Set(ctx, key, result, ttl)
		return result, nil
	}
}

// argKey serializes arg and hashes it under namespace. encoding/json emits
// map keys in sorted order, so map-typed arguments hash order-independently.
func argKey(namespace string, arg any) (string, error) {
	payload, err := json.Marshal(arg)
	if err != nil {
		return "", fmt.Errorf("serialize memoization argument: %w", err)
	}
	return keyForPayload(namespace, payload), nil
}
