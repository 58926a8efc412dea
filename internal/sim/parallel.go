package sim

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// StepAll runs fn for every index in [0, n) on at most workers goroutines
// and returns once all of them have finished. fn must only touch state
// owned by its index. The first error cancels the context handed to the
// remaining calls.
func StepAll(ctx context.Context, workers, n int, fn func(ctx context.Context, i int) error) error {
	if n == 0 {
		return nil
	}
	if workers <= 1 {
		for i := 0; i < n; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(ctx, i); err != nil {
				return err
			}
		}
		return nil
	}

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(workers)
	for i := 0; i < n; i++ {
		group.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, i)
		})
	}
	return group.Wait()
}
