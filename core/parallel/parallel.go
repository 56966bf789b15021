// Package parallel provides bounded fan-out helpers.
package parallel

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Workers resolves an n_jobs style setting: values < 1 mean all CPUs, and
// the result never exceeds items.
func Workers(nJobs, items int) int {
	w := nJobs
	if w < 1 {
		w = runtime.NumCPU()
	}
	if items > 0 && w > items {
		w = items
	}
	if w < 1 {
		w = 1
	}
	return w
}

// ForEach calls fn for every index in [0, n) with at most workers calls in
// flight. The first error cancels the context passed to the remaining calls,
// stops scheduling new ones, and is returned once in-flight calls finish.
// With workers == 1 the calls run sequentially in index order.
func ForEach(ctx context.Context, n, workers int, fn func(ctx context.Context, i int) error) error {
	if n == 0 {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(Workers(workers, n))
	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, i)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// ParallelizeWithThreshold splits [0, items) into per-CPU ranges and runs fn
// on each concurrently, or runs fn(0, items) inline when items <= threshold.
func ParallelizeWithThreshold(items int, threshold int, fn func(start, end int)) {
	if items == 0 {
		return
	}
	if items <= threshold {
		fn(0, items)
		return
	}

	numWorkers := Workers(-1, items)
	chunkSize := (items + numWorkers - 1) / numWorkers

	var g errgroup.Group
	for start := 0; start < items; start += chunkSize {
		s, e := start, start+chunkSize
		if e > items {
			e = items
		}
		g.Go(func() error {
			fn(s, e)
			return nil
		})
	}
	_ = g.Wait()
}
