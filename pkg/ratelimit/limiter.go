// Package ratelimit implements token-bucket admission control for outbound
// API requests. Tokens refill continuously at a fixed rate; each admitted
// request consumes one token, and callers suspend until capacity is available.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for rate limit admission.
var (
	rateLimitAcquiresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "apiclient_ratelimit_acquires_total",
		Help: "Total number of tokens acquired from the rate limiter",
	})

	rateLimitThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "apiclient_ratelimit_throttles_total",
		Help: "Total number of acquire calls that had to wait for refill",
	})

	rateLimitWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "apiclient_ratelimit_wait_seconds",
		Help:    "Time spent waiting for rate limit tokens",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	})
)

// Limiter is a token-bucket rate limiter.
//
// The bucket holds up to maxTokens fractional tokens and refills at
// refillRate tokens per second. All refill-and-deduct sequences run under a
// single mutex so concurrent acquirers can never overdraw the bucket.
type Limiter struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	logger     zerolog.Logger
}

// New creates a limiter admitting callsPerPeriod requests per period with no
// burst headroom.
func New(callsPerPeriod int, period time.Duration) (*Limiter, error) {
	return NewWithBurst(callsPerPeriod, period, 1.0)
}

// NewWithBurst creates a limiter admitting callsPerPeriod requests per
// period. A burstMultiplier > 1.0 raises bucket capacity above the
// steady-state rate, allowing short bursts.
func NewWithBurst(callsPerPeriod int, period time.Duration, burstMultiplier float64) (*Limiter, error) {
	if callsPerPeriod <= 0 {
		return nil, fmt.Errorf("calls per period must be positive (got %d)", callsPerPeriod)
	}
	if period <= 0 {
		return nil, fmt.Errorf("period must be positive (got %v)", period)
	}
	if burstMultiplier < 1.0 {
		return nil, fmt.Errorf("burst multiplier must be >= 1.0 (got %v)", burstMultiplier)
	}

	maxTokens := float64(callsPerPeriod) * burstMultiplier

	return &Limiter{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		refillRate: float64(callsPerPeriod) / period.Seconds(),
		lastRefill: time.Now(),
	}, nil
}

// SetLogger attaches a logger for debug-level admission events.
func (l *Limiter) SetLogger(logger zerolog.Logger) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger = logger
}

// refill adds tokens for the elapsed wall-clock time, capped at maxTokens.
// Callers must hold l.mu.
func (l *Limiter) refill() {
	now := time.Now()
	elapsed := now.Sub(l.lastRefill).Seconds()

	l.tokens = min(l.maxTokens, l.tokens+elapsed*l.refillRate)
	l.lastRefill = now
}

// Acquire blocks until one token is available or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	return l.AcquireN(ctx, 1)
}

// AcquireN blocks until n tokens are available or ctx is done.
//
// The wait loop is unbounded: if other callers drain tokens faster than they
// refill, AcquireN keeps waiting. Callers bound the total wait through ctx.
// A cancelled acquire never consumes tokens; deduction happens only under
// the lock once sufficient tokens exist.
func (l *Limiter) AcquireN(ctx context.Context, n float64) error {
	if n <= 0 || n > l.maxTokens {
		return fmt.Errorf("cannot acquire %v tokens from a bucket of %v", n, l.maxTokens)
	}

	start := time.Now()
	waited := false

	for {
		l.mu.Lock()
		l.refill()

		if l.tokens >= n {
			l.tokens -= n
			remaining := l.tokens
			l.mu.Unlock()

			rateLimitAcquiresTotal.Inc()
			if waited {
				rateLimitWaitSeconds.Observe(time.Since(start).Seconds())
			}

			l.logger.Debug().
				Float64("tokens_acquired", n).
				Float64("tokens_remaining", remaining).
				Msg("Rate limit tokens acquired")
			return nil
		}

		// Estimate the refill wait; concurrent acquirers may consume tokens
		// in the meantime, so re-check after sleeping.
		wait := time.Duration((n - l.tokens) / l.refillRate * float64(time.Second))
		l.mu.Unlock()

		if !waited {
			waited = true
			rateLimitThrottlesTotal.Inc()
		}

		l.logger.Debug().
			Dur("wait", wait).
			Float64("tokens_needed", n).
			Msg("Rate limit waiting for refill")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// GetWaitTime reports how long a caller would wait for one token right now.
// It refills but never consumes tokens; returns 0 if a token is available.
func (l *Limiter) GetWaitTime() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()

	if l.tokens >= 1 {
		return 0
	}
	return time.Duration((1 - l.tokens) / l.refillRate * float64(time.Second))
}

// Tokens returns the current token count after refill.
func (l *Limiter) Tokens() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()
	return l.tokens
}

// Reset restores the bucket to full capacity. Administrative use only, not
// part of the request hot path.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.tokens = l.maxTokens
	l.lastRefill = time.Now()
	l.logger.Debug().Float64("tokens", l.tokens).Msg("Rate limiter reset")
}
