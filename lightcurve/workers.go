package lightcurve

import (
	"context"
	"sync"
	"sync/atomic"
)

type indexed[T any] struct {
	index int
	value T
}

// runWorkerPool applies fn to every item on at most slots goroutines and
// returns the results in item order. The bool reports whether the context
// stopped the pool before every item was dispatched.
func runWorkerPool[T, R any](ctx context.Context, slots int, items []T, fn func(context.Context, T) R) ([]R, bool) {
	if ctx == nil {
		ctx = context.Background()
	}
	out := make([]R, len(items))
	if slots <= 1 || len(items) <= 1 {
		for i, item := range items {
			if err := ctx.Err(); err != nil {
				return out, true
			}
			out[i] = fn(ctx, item)
		}
		return out, false
	}

	tasks := make(chan indexed[T])
	results := make(chan indexed[R])
	var wg sync.WaitGroup

	worker := func() {
		defer wg.Done()
		for task := range tasks {
			if ctx.Err() != nil {
				continue
			}
			results <- indexed[R]{index: task.index, value: fn(ctx, task.value)}
		}
	}

	for i := 0; i < slots; i++ {
		wg.Add(1)
		go worker()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var aborted atomic.Bool
	go func() {
		for i, item := range items {
			if ctx.Err() != nil {
				aborted.Store(true)
				break
			}
			tasks <- indexed[T]{index: i, value: item}
		}
		close(tasks)
	}()

	for result := range results {
		out[result.index] = result.value
	}
	return out, aborted.Load()
}
