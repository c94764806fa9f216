package batch

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Config holds batch fetcher configuration.
type Config struct {
	// MaxConcurrency is the maximum number of parallel requests.
	MaxConcurrency int

	// Timeout applies per individual fetch.
	Timeout time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 10,
		Timeout:        15 * time.Second,
	}
}

// Getter is the single-request operation a fetcher fans out over. The
// client.Client satisfies it.
type Getter interface {
	Get(ctx context.Context, endpoint string, params url.Values) (any, error)
}

// Request identifies one GET to perform.
type Request struct {
	Endpoint string
	Params   url.Values
}

// Result is the outcome of one Request.
type Result struct {
	Request Request
	Value   any
	Err     error
}

// Fetcher fans independent GET requests out over a bounded worker pool.
type Fetcher struct {
	getter Getter
	config Config
}

// NewFetcher creates a batch fetcher over the given Getter.
func NewFetcher(getter Getter, config Config) *Fetcher {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 10
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}

	return &Fetcher{
		getter: getter,
		config: config,
	}
}

// FetchAll executes every request, at most MaxConcurrency at a time, and
// returns one Result per request in input order. Individual failures are
// reported in their Result; other requests proceed. Context cancellation
// stops scheduling and marks unstarted requests with the context error.
func (f *Fetcher) FetchAll(ctx context.Context, requests []Request) []Result {
	start := time.Now()

	results := make([]Result, len(requests))
	for i := range requests {
		results[i].Request = requests[i]
	}

	if len(requests) == 0 {
		return results
	}

	log.Info().
		Int("requests", len(requests)).
		Int("workers", f.config.MaxConcurrency).
		Msg("Starting batch fetch")

	queue := make(chan int, len(requests))
	for i := range requests {
		queue <- i
	}
	close(queue)

	var wg sync.WaitGroup
	workers := f.config.MaxConcurrency
	if workers > len(requests) {
		workers = len(requests)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go f.worker(ctx, queue, results, &wg, w)
	}
	wg.Wait()

	succeeded := 0
	for i := range results {
		if results[i].Err == nil {
			succeeded++
		}
	}

	log.Info().
		Int("succeeded", succeeded).
		Int("total", len(requests)).
		Dur("duration", time.Since(start)).
		Msg("Batch fetch complete")

	return results
}

// worker drains the index queue, writing each outcome into its result slot.
// Slots are disjoint per index, so no locking is needed.
func (f *Fetcher) worker(ctx context.Context, queue <-chan int, results []Result, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()
	processed := 0

	for idx := range queue {
		if err := ctx.Err(); err != nil {
			results[idx].Err = err
			continue
		}

		req := results[idx].Request
		reqCtx, cancel := context.WithTimeout(ctx, f.config.Timeout)
		value, err := f.getter.Get(reqCtx, req.Endpoint, req.Params)
		cancel()

		if err != nil {
			log.Warn().
				Err(err).
				Int("worker_id", workerID).
				Str("endpoint", req.Endpoint).
				Msg("Batch request failed")
			results[idx].Err = err
			continue
		}

		results[idx].Value = value
		processed++
	}

	if processed > 0 {
		log.Debug().
			Int("worker_id", workerID).
			Int("processed", processed).
			Msg("Worker completed")
	}
}
