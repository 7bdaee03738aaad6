// Package affinity gives host handles a single executor.
//
// The host behind a D1 binding is single-threaded: one logical thread of
// control per request. Go callers, database/sql pools and sqlx are free to
// use a connection from any goroutine, so every host-originated handle is
// wrapped in a Local that can only be dereferenced from inside a job running
// on its owning Executor. Jobs run strictly one at a time in submission
// order. Touching a Local from anywhere else panics.
package affinity

import (
	"context"
	"sync"
	"sync/atomic"
)

// Executor serializes jobs. The worker goroutine is started on demand and
// exits once the queue is empty, so an idle Executor holds no goroutine.
type Executor struct {
	mu      sync.Mutex
	queue   []func()
	running bool
}

// NewExecutor returns an idle executor.
func NewExecutor() *Executor {
	return &Executor{}
}

// Turn is the capability handed to a job while it runs. It is invalid once
// the job returns.
type Turn struct {
	exec *Executor
	live atomic.Bool
}

func (e *Executor) submit(job func()) {
	e.mu.Lock()
	e.queue = append(e.queue, job)
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.mu.Unlock()
	go e.drain()
}

func (e *Executor) drain() {
	for {
		e.mu.Lock()
		if len(e.queue) == 0 {
			e.running = false
			e.mu.Unlock()
			return
		}
		job := e.queue[0]
		e.queue[0] = nil
		e.queue = e.queue[1:]
		e.mu.Unlock()
		job()
	}
}

type outcome[R any] struct {
	val R
	err error
}

// Run submits fn and waits for its result. If ctx ends first, Run returns
// ctx.Err() immediately; a job that already started keeps running with no
// observer, and a job that has not started yet is skipped.
func Run[R any](ctx context.Context, e *Executor, fn func(ctx context.Context, t *Turn) (R, error)) (R, error) {
	done := make(chan outcome[R], 1)
	e.submit(func() {
		if err := ctx.Err(); err != nil {
			var zero R
			done <- outcome[R]{zero, err}
			return
		}
		t := &Turn{exec: e}
		t.live.Store(true)
		defer t.live.Store(false)
		v, err := fn(ctx, t)
		done <- outcome[R]{v, err}
	})
	select {
	case o := <-done:
		return o.val, o.err
	case <-ctx.Done():
		var zero R
		return zero, ctx.Err()
	}
}

// Do is Run for jobs without a result.
func Do(ctx context.Context, e *Executor, fn func(ctx context.Context, t *Turn) error) error {
	_, err := Run(ctx, e, func(ctx context.Context, t *Turn) (struct{}, error) {
		return struct{}{}, fn(ctx, t)
	})
	return err
}

// Local holds a value that may only be used from its owner's jobs.
type Local[T any] struct {
	owner *Executor
	v     T
}

// Bind ties v to e.
func Bind[T any](e *Executor, v T) *Local[T] {
	return &Local[T]{owner: e, v: v}
}

// Owner returns the executor v is bound to.
func (l *Local[T]) Owner() *Executor {
	return l.owner
}

// Get returns the wrapped value. It panics unless t is the live turn of a
// job running on the owning executor.
func (l *Local[T]) Get(t *Turn) T {
	if t == nil || t.exec != l.owner {
		panic("affinity: value used outside its owning executor")
	}
	if !t.live.Load() {
		panic("affinity: value used after its turn ended")
	}
	return l.v
}
