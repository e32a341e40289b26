package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Run executes worker over every item with at most parallelism concurrent
// workers. A worker failure (error or panic) is recorded and never aborts
// sibling workers; successes are appended to the shared result list in
// completion order. Returns the successful results and the per-item errors.
func Run[T, R any](ctx context.Context, items []T, parallelism int, worker func(ctx context.Context, item T) (R, error)) ([]R, []error) {
	if parallelism < 1 {
		parallelism = 1
	}

	var (
		mu      sync.Mutex
		results []R
		errs    []error
	)

	g := new(errgroup.Group)
	g.SetLimit(parallelism)

	for _, item := range items {
		item := item
		g.Go(func() error {
			result, err := runIsolated(ctx, item, worker)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return nil
			}
			results = append(results, result)
			return nil
		})
	}

	_ = g.Wait()
	return results, errs
}

// runIsolated converts a worker panic into an error so one bad item cannot
// take down the batch.
func runIsolated[T, R any](ctx context.Context, item T, worker func(ctx context.Context, item T) (R, error)) (result R, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("worker panic: %v", recovered)
		}
	}()
	return worker(ctx, item)
}
