package bridge

import (
	"context"
	"sync"
)

// Task is the pending result of an asynchronous operation.
type Task[T any] struct {
	mu        sync.Mutex
	done      chan struct{}
	completed bool
	value     T
	err       error
	conts     []func()
	ctxs      []context.Context
}

func newTask[T any]() *Task[T] {
	return &Task[T]{done: make(chan struct{})}
}

// Completed returns a task that has already finished with v and err.
func Completed[T any](v T, err error) *Task[T] {
	t := newTask[T]()
	t.complete(v, err)
	return t
}

// Start schedules fn on the ambient executor of ctx, or on a new goroutine
// when ctx carries none.
func Start[T any](ctx context.Context, fn func(context.Context) (T, error)) *Task[T] {
	t := newTask[T]()
	dispatch(ctx, func() {
		t.complete(call(func() (T, error) { return fn(ctx) }))
	})
	return t
}

// Go runs fn on a new goroutine regardless of the ambient executor. Use it
// for blocking work; continuations attached with Then still run on the
// executor.
func Go[T any](fn func() (T, error)) *Task[T] {
	t := newTask[T]()
	go func() {
		t.complete(call(fn))
	}()
	return t
}

// Then schedules fn to run after t completes, on the ambient executor of
// ctx. fn always runs and receives t's value and error.
func Then[T, U any](ctx context.Context, t *Task[T], fn func(context.Context, T, error) (U, error)) *Task[U] {
	next := newTask[U]()
	t.whenDone(ctx, func() {
		v, err := t.value, t.err
		next.complete(call(func() (U, error) { return fn(ctx, v, err) }))
	})
	return next
}

// Done is closed when the task completes.
func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

// Result returns the task's outcome and whether it has completed.
func (t *Task[T]) Result() (T, error, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.value, t.err, t.completed
}

// Wait blocks until the task completes or ctx is done. Waiting on the
// goroutine that drains the task's executor deadlocks; use Run there.
func (t *Task[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-t.done:
		return t.value, t.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (t *Task[T]) complete(v T, err error) {
	t.mu.Lock()
	if t.completed {
		t.mu.Unlock()
		return
	}
	t.value, t.err, t.completed = v, err, true
	conts, ctxs := t.conts, t.ctxs
	t.conts, t.ctxs = nil, nil
	close(t.done)
	t.mu.Unlock()

	for i, fn := range conts {
		dispatch(ctxs[i], fn)
	}
}

func (t *Task[T]) whenDone(ctx context.Context, fn func()) {
	t.mu.Lock()
	if !t.completed {
		t.conts = append(t.conts, fn)
		t.ctxs = append(t.ctxs, ctx)
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()
	dispatch(ctx, fn)
}

// call runs fn, turning a panic into a *PanicError result.
func call[T any](fn func() (T, error)) (v T, err error) {
	perr := protect(func() { v, err = fn() })
	if perr != nil {
		var zero T
		return zero, perr
	}
	return v, err
}
