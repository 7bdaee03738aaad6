package affinity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestRunReturnsResult(t *testing.T) {
	e := NewExecutor()
	got, err := Run(context.Background(), e, func(ctx context.Context, turn *Turn) (int, error) {
		return 42, nil
	})
	if err != nil || got != 42 {
		t.Fatalf("Run = %d, %v", got, err)
	}
}

func TestJobsRunOneAtATimeInOrder(t *testing.T) {
	e := NewExecutor()
	var (
		mu      sync.Mutex
		order   []int
		running int
		overlap bool
	)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			Do(context.Background(), e, func(ctx context.Context, turn *Turn) error {
				mu.Lock()
				running++
				if running > 1 {
					overlap = true
				}
				order = append(order, i)
				mu.Unlock()
				time.Sleep(time.Millisecond)
				mu.Lock()
				running--
				mu.Unlock()
				return nil
			})
		}(i)
	}
	wg.Wait()
	if overlap {
		t.Error("two jobs ran at the same time")
	}
	if len(order) != 50 {
		t.Errorf("ran %d jobs, want 50", len(order))
	}
}

func TestLocalGetInsideOwnerTurn(t *testing.T) {
	e := NewExecutor()
	l := Bind(e, "handle")
	got, err := Run(context.Background(), e, func(ctx context.Context, turn *Turn) (string, error) {
		return l.Get(turn), nil
	})
	if err != nil || got != "handle" {
		t.Fatalf("Get = %q, %v", got, err)
	}
	if l.Owner() != e {
		t.Error("Owner() is not the binding executor")
	}
}

func expectPanic(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Error("expected a panic")
		}
	}()
	fn()
}

func TestLocalGetPanicsOutsideOwner(t *testing.T) {
	owner := NewExecutor()
	other := NewExecutor()
	l := Bind(owner, 1)

	expectPanic(t, func() { l.Get(nil) })

	var leaked *Turn
	Do(context.Background(), other, func(ctx context.Context, turn *Turn) error {
		expectPanic(t, func() { l.Get(turn) })
		return nil
	})
	Do(context.Background(), owner, func(ctx context.Context, turn *Turn) error {
		leaked = turn
		return nil
	})
	expectPanic(t, func() { l.Get(leaked) })
}

func TestRunSkipsCanceledJob(t *testing.T) {
	e := NewExecutor()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ran := false
	err := Do(ctx, e, func(ctx context.Context, turn *Turn) error {
		ran = true
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Do = %v", err)
	}
	// Drain the executor so the skipped job has been dequeued.
	Do(context.Background(), e, func(ctx context.Context, turn *Turn) error { return nil })
	if ran {
		t.Error("a job whose context was already canceled ran")
	}
}
