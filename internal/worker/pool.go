package worker

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Pool bounds parallel execution of batch stages. Canonicalization,
// fingerprinting, and pair confirmation are embarrassingly parallel; the
// pipeline runs everything else sequentially.
type Pool struct {
	workers int
}

// NewPool creates a pool with the given concurrency. Zero or negative
// means NumCPU.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Pool{workers: workers}
}

// Workers returns the concurrency bound.
func (p *Pool) Workers() int {
	return p.workers
}

// ForEach runs fn for every index in [0, n) with bounded parallelism and
// waits for all of them. The first error cancels the shared context and
// is returned; per-record recoverable failures belong in the results the
// callback writes, not in its error.
func (p *Pool) ForEach(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			return fn(gctx, i)
		})
	}
	return g.Wait()
}
