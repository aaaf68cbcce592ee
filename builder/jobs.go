package builder

import (
	"context"
	"errors"
)

// future is the pending result of a build step running in its own
// goroutine. Result may be called any number of times.
type future struct {
	err chan error
}

func newFuture() future {
	return future{err: make(chan error, 1)}
}

func (f future) Result() error {
	result := <-f.err
	f.err <- result
	return result
}

// runAll runs fn for n steps with at most jobs of them executing at once.
// The first failure cancels the steps that have not started yet and is the
// error returned.
func runAll(ctx context.Context, jobs, n int, fn func(ctx context.Context, i int) error) error {
	if jobs < 1 {
		jobs = 1
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	slots := make(chan struct{}, jobs)
	futures := make([]future, n)
	for i := range futures {
		futures[i] = newFuture()
		go func(i int) {
			select {
			case slots <- struct{}{}:
			case <-ctx.Done():
				futures[i].err <- ctx.Err()
				return
			}
			defer func() { <-slots }()

			if err := ctx.Err(); err != nil {
				futures[i].err <- err
				return
			}
			err := fn(ctx, i)
			if err != nil {
				cancel()
			}
			futures[i].err <- err
		}(i)
	}

	var first, canceled error
	for _, f := range futures {
		err := f.Result()
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			if canceled == nil {
				canceled = err
			}
		case first == nil:
			first = err
		}
	}
	if first != nil {
		return first
	}
	return canceled
}
