// Package evaluator composes the script chain, the program model and the
// execution bridge into REPL evaluators. Basic only evaluates; Full also
// keeps a program model for completions.
package evaluator

import (
	"context"
	"errors"
	"io"
	"sync/atomic"

	"github.com/tliron/commonlog"
	"golang.org/x/sync/semaphore"

	"github.com/chazu/replkit/bridge"
	"github.com/chazu/replkit/goscript"
	"github.com/chazu/replkit/reference"
	"github.com/chazu/replkit/script"
)

var log = commonlog.GetLogger("replkit.evaluator")

// ErrClosed is returned by every operation on a closed evaluator.
var ErrClosed = errors.New("evaluator: closed")

// Options configures an evaluator.
type Options struct {
	// Imports are available to the first fragment.
	Imports []string

	// Modules are host packages fragments may import.
	Modules []*reference.Module

	// Stdlib exposes the standard library to fragments.
	Stdlib bool

	// ImageDir holds reference images written by reference.WriteImage.
	// Full evaluators prefer an image there over in-memory metadata.
	ImageDir string

	Stdout io.Writer
	Stderr io.Writer
}

func (o Options) session() (*goscript.Session, error) {
	return goscript.NewSession(goscript.Options{
		Stdlib:  o.Stdlib,
		Modules: o.Modules,
		Imports: o.Imports,
		Stdout:  o.Stdout,
		Stderr:  o.Stderr,
	})
}

// engine owns the chain and serializes the compile and run steps of every
// evaluation with a weighted semaphore of size one.
type engine struct {
	sem    *semaphore.Weighted
	chain  *script.Chain
	closed atomic.Bool

	// beforeCompile runs under the semaphore before each fragment compiles.
	beforeCompile func(source string) error
}

func newEngine(chain *script.Chain) *engine {
	return &engine{
		sem:   semaphore.NewWeighted(1),
		chain: chain,
	}
}

// EvaluateAsync compiles and runs source. Cancelling ctx abandons waiting
// for the evaluator and interrupts execution. An interrupted run completes
// the task with ctx's error and leaves the chain where it was; the next
// evaluation waits until the interrupted code has stopped.
func (e *engine) EvaluateAsync(ctx context.Context, source string) *bridge.Task[*script.Result] {
	if e.closed.Load() {
		return bridge.Completed[*script.Result](nil, ErrClosed)
	}

	compiled := bridge.Start(ctx, func(ctx context.Context) (p *script.Pending, err error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := e.sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer func() {
			if p == nil {
				e.sem.Release(1)
			}
		}()

		if e.closed.Load() {
			return nil, ErrClosed
		}
		if e.beforeCompile != nil {
			if err := e.beforeCompile(source); err != nil {
				return nil, err
			}
		}
		return e.chain.Prepare(ctx, source), nil
	})

	return bridge.Then(ctx, compiled, func(ctx context.Context, p *script.Pending, err error) (*script.Result, error) {
		if err != nil {
			return nil, err
		}
		defer e.sem.Release(1)
		return e.chain.Commit(ctx, p)
	})
}

// Evaluate compiles and runs source on the calling goroutine and blocks
// until it is done. It cannot be cancelled. Compile errors and runtime
// faults are reported in the result; the error is only set for a closed
// evaluator or a broken program model.
func (e *engine) Evaluate(source string) (*script.Result, error) {
	r, err := bridge.Run(func(ctx context.Context) *bridge.Task[*script.Result] {
		return e.EvaluateAsync(ctx, source)
	})

	var perr *bridge.PanicError
	if errors.As(err, &perr) {
		log.Warningf("evaluation panicked: %v", perr)
		return script.FaultResult(perr), nil
	}
	return r, err
}

// Imports returns the imports every later fragment can use.
func (e *engine) Imports() []string {
	if err := e.lock(); err != nil {
		return nil
	}
	defer e.sem.Release(1)
	return e.chain.Imports()
}

// History returns the evaluated generations, newest first.
func (e *engine) History() []*script.Generation {
	if err := e.lock(); err != nil {
		return nil
	}
	defer e.sem.Release(1)
	return e.chain.History()
}

func (e *engine) lock() error {
	if e.closed.Load() {
		return ErrClosed
	}
	return e.sem.Acquire(context.Background(), 1)
}

// close waits for a running evaluation, then releases the chain and
// whatever release frees. A second call returns ErrClosed.
func (e *engine) close(release func() error) error {
	if !e.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	if err := e.sem.Acquire(context.Background(), 1); err != nil {
		return err
	}
	defer e.sem.Release(1)

	errs := []error{e.chain.Close()}
	if release != nil {
		errs = append(errs, release())
	}
	return errors.Join(errs...)
}
