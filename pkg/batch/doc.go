// Package batch provides parallel fan-out of independent GET requests.
//
// Many API workloads need the same endpoint fetched for a set of resources,
// or a set of endpoints fetched together. This package implements a worker
// pool over the client's Get operation, so concurrency stays bounded and the
// client's rate limiter still governs total throughput.
//
// Example usage:
//
//	fetcher := batch.NewFetcher(apiClient, batch.DefaultConfig())
//	results := fetcher.FetchAll(ctx, []batch.Request{
//		{Endpoint: "/v1/items/1"},
//		{Endpoint: "/v1/items/2"},
//		{Endpoint: "/v1/search", Params: url.Values{"q": {"widget"}}},
//	})
//
// The fetcher:
//   - Spawns a worker pool (default 10 workers)
//   - Distributes requests across workers
//   - Collects per-request results in input order
//   - Handles errors per request (partial results, no fail-fast)
package batch
