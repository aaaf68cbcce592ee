package builder

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

func TestRunAll(t *testing.T) {
	var running, peak, done atomic.Int32
	err := runAll(context.Background(), 2, 16, func(ctx context.Context, i int) error {
		n := running.Add(1)
		defer running.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		done.Add(1)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if done.Load() != 16 {
		t.Errorf("%d steps ran, want 16", done.Load())
	}
	if peak.Load() > 2 {
		t.Errorf("%d steps ran at once, want at most 2", peak.Load())
	}
}

func TestRunAllError(t *testing.T) {
	failure := errors.New("sdcc failed")
	err := runAll(context.Background(), 1, 8, func(ctx context.Context, i int) error {
		if i == 3 {
			return failure
		}
		return nil
	})
	if !errors.Is(err, failure) {
		t.Errorf("expected the step error, got %v", err)
	}
}

func TestRunAllCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var ran atomic.Int32
	err := runAll(ctx, 4, 4, func(ctx context.Context, i int) error {
		ran.Add(1)
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if ran.Load() != 0 {
		t.Errorf("%d steps ran after cancellation", ran.Load())
	}
}

func TestFutureResult(t *testing.T) {
	f := newFuture()
	want := errors.New("once")
	f.err <- want
	for i := 0; i < 3; i++ {
		if err := f.Result(); err != want {
			t.Fatalf("Result() #%d = %v", i, err)
		}
	}
}
