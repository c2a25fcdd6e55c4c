// Package bulk runs one function over many items with a bounded worker pool.
package bulk

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
)

// Operation represents a bulk operation configuration
type Operation struct {
	// Jobs is the number of workers; 0 means one per CPU.
	Jobs int
	// ContinueOnError keeps going after an item fails. Otherwise items not
	// yet started are skipped.
	ContinueOnError bool
}

// Result holds per-item outcomes in input order.
type Result[R any] struct {
	Values    []R
	Errors    []error
	Succeeded int
	Failed    int
	Skipped   int
}

// Err returns the first item error in input order, or nil.
func (r *Result[R]) Err() error {
	for _, err := range r.Errors {
		if err != nil {
			return err
		}
	}
	return nil
}

// Execute runs fn over items. Results land at the index of their item, so
// output order never depends on scheduling. Cancelling ctx skips items not
// yet started.
func Execute[T, R any](ctx context.Context, op Operation, items []T, fn func(ctx context.Context, item T) (R, error)) *Result[R] {
	result := &Result[R]{
		Values: make([]R, len(items)),
		Errors: make([]error, len(items)),
	}
	if len(items) == 0 {
		return result
	}

	// Auto-detect CPU count if jobs == 0
	workers := op.Jobs
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, len(items))

	// Create work queue
	workQueue := make(chan int, len(items))
	for i := range items {
		workQueue <- i
	}
	close(workQueue)

	var (
		succeeded  int32
		failed     int32
		skipped    int32
		stopSignal atomic.Bool
	)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for i := range workQueue {
				if ctx.Err() != nil || (!op.ContinueOnError && stopSignal.Load()) {
					atomic.AddInt32(&skipped, 1)
					continue
				}

				v, err := fn(ctx, items[i])
				if err != nil {
					atomic.AddInt32(&failed, 1)
					result.Errors[i] = err
					if !op.ContinueOnError {
						stopSignal.Store(true)
					}
					continue
				}
				atomic.AddInt32(&succeeded, 1)
				result.Values[i] = v
			}
		}()
	}

	wg.Wait()

	result.Succeeded = int(succeeded)
	result.Failed = int(failed)
	result.Skipped = int(skipped)

	return result
}
