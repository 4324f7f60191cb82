// Package ingestpool is bulk ingestion's bounded worker pool (spec.md
// §5: "parallel worker pool acceptable for bulk offline indexing"). It
// parallelizes the CPU-bound parse+normalize stage of cmd/bibliofind's
// ingest command while leaving the Indexer's writes serialized through
// a single store handle. Grounded on the bounded-parallelism shape in
// fyrsmithlabs-contextd/pkg/prefetch.Executor (a semaphore channel plus
// sync.WaitGroup gating a fixed number of concurrent goroutines),
// generalized from fire-and-forget rule execution to a pipeline that
// returns each input's result, tagged with its index, over an unordered
// output channel; reuses
// the teacher's pkg/pool spirit of bounding concurrent work to a fixed
// budget, applied here to goroutines rather than pooled allocations.
package ingestpool

import (
	"context"
	"sync"
)

// Result pairs one worker's output with the index it was read from, so
// callers can correlate failures back to their input without needing
// order-preserving delivery.
type Result[T any] struct {
	Index int
	Value T
	Err   error
}

// Pool bounds how many worker goroutines run process concurrently.
type Pool struct {
	workers int
}

// New builds a Pool with the given worker budget. A non-positive value
// is treated as 1 (no parallelism, but still correct).
func New(workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{workers: workers}
}

// Run fans in items over the Pool's worker budget, calling process for
// each, and returns a channel delivering one Result per item. The
// channel is closed once every item has been processed or ctx is
// cancelled. Results may arrive out of input order; callers that need
// to correlate a result with its source item use Result.Index.
func Run[T, R any](ctx context.Context, p *Pool, items []T, process func(context.Context, T) (R, error)) <-chan Result[R] {
	out := make(chan Result[R], len(items))
	sem := make(chan struct{}, p.workers)
	var wg sync.WaitGroup

	for i, item := range items {
		wg.Add(1)
		go func(idx int, it T) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				out <- Result[R]{Index: idx, Err: ctx.Err()}
				return
			}

			value, err := process(ctx, it)
			out <- Result[R]{Index: idx, Value: value, Err: err}
		}(i, item)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out
}
