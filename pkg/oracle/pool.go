package oracle

import (
	"context"
	"sync"
)

// ForEach runs fn for every index in [0, n) on at most width concurrent
// workers. Each index's error lands at its own position in the returned
// slice, so results are keyed by identity rather than completion order.
// A per-item failure never stops sibling work; a Fatal oracle error or
// ctx cancellation stops dispatch and cancels what is in flight.
func ForEach(ctx context.Context, width, n int, fn func(ctx context.Context, i int) error) []error {
	if width < 1 {
		width = 1
	}
	errs := make([]error, n)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	sem := make(chan struct{}, width)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			errs[i] = err
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return
			}
			err := fn(ctx, i)
			errs[i] = err
			if IsFatal(err) {
				cancel()
			}
		}(i)
	}
	wg.Wait()
	return errs
}
