package bridge

import "context"

type executorKey struct{}

// WithExecutor returns a context whose continuations are posted to ex.
func WithExecutor(ctx context.Context, ex *Executor) context.Context {
	return context.WithValue(ctx, executorKey{}, ex)
}

// FromContext returns the ambient executor, or nil if none is installed.
func FromContext(ctx context.Context) *Executor {
	ex, _ := ctx.Value(executorKey{}).(*Executor)
	return ex
}

// dispatch runs fn on the ambient executor, or on a fresh goroutine when
// there is none or it has already stopped.
func dispatch(ctx context.Context, fn func()) {
	if ex := FromContext(ctx); ex != nil {
		if err := ex.Post(fn); err == nil {
			return
		}
		log.Warningf("executor stopped, running continuation on a new goroutine")
	}
	go fn()
}
