// Package bridge turns continuation-based asynchronous work into blocking
// calls. An Executor drains an unbounded FIFO queue on whichever goroutine
// calls Drain; Run uses one to complete a Task on the caller's goroutine.
package bridge

import (
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/petermattis/goid"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("replkit.bridge")

// item is one unit of queued work. A stop item ends the drain loop.
type item struct {
	fn   func()
	stop bool
}

// Executor is a single-goroutine cooperative scheduler. Work is posted from
// any goroutine and executed strictly in posting order by Drain.
type Executor struct {
	mu      sync.Mutex
	queue   []item
	stopped bool

	wake  chan struct{}
	done  chan struct{}
	owner atomic.Int64 // goid of the draining goroutine, 0 when idle
}

// NewExecutor creates an executor with an empty queue.
func NewExecutor() *Executor {
	return &Executor{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Post enqueues fn without waiting for it. It returns ErrStopped if the
// executor has been torn down.
func (e *Executor) Post(fn func()) error {
	return e.enqueue(item{fn: fn})
}

// Stop enqueues the stop signal. Items posted before it still run.
func (e *Executor) Stop() error {
	return e.enqueue(item{stop: true})
}

func (e *Executor) enqueue(it item) error {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return ErrStopped
	}
	e.queue = append(e.queue, it)
	e.mu.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}
	return nil
}

// Send posts fn and blocks until it has run. Calling Send from the
// draining goroutine returns ErrSendToSelf. A panic in fn is returned to
// the sender as a *PanicError and does not stop the drain.
func (e *Executor) Send(fn func()) error {
	if e.owner.Load() == goid.Get() {
		return ErrSendToSelf
	}

	result := make(chan error, 1)
	err := e.Post(func() {
		result <- protect(fn)
	})
	if err != nil {
		return err
	}

	select {
	case err := <-result:
		return err
	case <-e.done:
		// The item may have run just before teardown.
		select {
		case err := <-result:
			return err
		default:
			return ErrStopped
		}
	}
}

// Done is closed once the executor has been torn down.
func (e *Executor) Done() <-chan struct{} {
	return e.done
}

// Drain executes queued items on the calling goroutine until a stop item
// is reached or an item panics. The queue is torn down in both cases;
// the panic is returned as a *PanicError. Drain may only run once.
func (e *Executor) Drain() error {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return ErrStopped
	}
	e.mu.Unlock()

	if !e.owner.CompareAndSwap(0, goid.Get()) {
		return ErrDraining
	}
	defer e.teardown()

	for {
		it := e.next()
		if it.stop {
			return nil
		}
		if err := protect(it.fn); err != nil {
			log.Errorf("work item panicked, stopping drain: %v", err)
			return err
		}
	}
}

// next blocks until an item is available and pops it.
func (e *Executor) next() item {
	for {
		e.mu.Lock()
		if len(e.queue) > 0 {
			it := e.queue[0]
			e.queue[0] = item{}
			e.queue = e.queue[1:]
			e.mu.Unlock()
			return it
		}
		e.mu.Unlock()
		<-e.wake
	}
}

func (e *Executor) teardown() {
	e.mu.Lock()
	e.stopped = true
	if n := len(e.queue); n > 0 {
		log.Debugf("dropping %d queued items", n)
	}
	e.queue = nil
	e.mu.Unlock()

	e.owner.Store(0)
	close(e.done)
}

// protect runs fn, converting a panic into a *PanicError.
func protect(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	fn()
	return nil
}
