package bridge

import "context"

// Run starts op on a fresh executor and drains that executor on the calling
// goroutine until op's task completes. Every continuation scheduled through
// the context passed to op runs on the caller's goroutine, in posting
// order. Run cannot be cancelled once started.
//
// The task's error is returned as is. A panic escaping a queued item stops
// the drain and is returned as a *PanicError.
func Run[T any](op func(context.Context) *Task[T]) (T, error) {
	ex := NewExecutor()
	ctx := WithExecutor(context.Background(), ex)

	var (
		value T
		err   error
	)
	ex.Post(func() {
		t := op(ctx)
		t.whenDone(ctx, func() {
			value, err = t.value, t.err
			ex.Stop()
		})
	})

	if derr := ex.Drain(); derr != nil {
		var zero T
		return zero, derr
	}
	return value, err
}
