// Package script keeps the incremental chain of compiled fragments. Each
// evaluation compiles a fragment on top of the current generation and, if
// it compiles, runs it and makes the new generation current.
package script

import (
	"context"
	"errors"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("replkit.script")

// ErrStale is returned by Commit when the chain advanced after the pending
// fragment was prepared.
var ErrStale = errors.New("script: pending fragment was prepared against an older generation")

// Session is the toolkit that compiles and runs fragments.
type Session interface {
	// Compile extends prev with fragment. imports is the full import set
	// the fragment may use, in sorted order.
	Compile(ctx context.Context, prev Unit, fragment string, imports []string) (Unit, []Diagnostic)

	// Run executes a compiled unit. A non-nil error is a runtime fault,
	// except that a run stopped because ctx ended returns ctx.Err().
	Run(ctx context.Context, unit Unit) (any, error)

	Close() error
}

// ImportScanner returns the import paths declared by a fragment.
type ImportScanner func(fragment string) []string

// Pending is a compiled fragment that has not run yet.
type Pending struct {
	base     *Generation
	fragment string
	unit     Unit
	imports  ImportSet
	diags    []Diagnostic
}

func (p *Pending) Diagnostics() []Diagnostic { return p.diags }

// Failed reports whether compilation produced an error diagnostic.
func (p *Pending) Failed() bool { return HasErrors(p.diags) }

// Imports is the merged import set the fragment was compiled with.
func (p *Pending) Imports() ImportSet { return p.imports }

// Chain is an append-only list of generations owned by one evaluator.
// It is not safe for concurrent use.
type Chain struct {
	session Session
	scan    ImportScanner
	current *Generation
}

// NewChain creates a chain whose root generation carries the initial
// imports. scan may be nil when fragments never declare imports.
func NewChain(session Session, scan ImportScanner, imports ...string) *Chain {
	if scan == nil {
		scan = func(string) []string { return nil }
	}
	return &Chain{
		session: session,
		scan:    scan,
		current: &Generation{imports: NewImportSet(imports...)},
	}
}

// Current returns the newest generation.
func (c *Chain) Current() *Generation { return c.current }

// Imports returns the current import set in sorted order.
func (c *Chain) Imports() []string { return c.current.imports.Sorted() }

// Len returns the number of generations after the root.
func (c *Chain) Len() int { return c.current.seq }

// History returns every generation after the root, newest first.
func (c *Chain) History() []*Generation {
	out := make([]*Generation, 0, c.current.seq)
	for g := c.current; g.prev != nil; g = g.prev {
		out = append(out, g)
	}
	return out
}

// Prepare merges the fragment's imports into the current set and compiles
// the fragment against the current generation.
func (c *Chain) Prepare(ctx context.Context, fragment string) *Pending {
	imports, added := c.current.imports.Union(c.scan(fragment)...)
	if len(added) > 0 {
		log.Debugf("fragment adds imports %v", added)
	}

	unit, diags := c.session.Compile(ctx, c.current.unit, fragment, imports.Sorted())
	if diags == nil {
		diags = []Diagnostic{}
	}
	return &Pending{
		base:     c.current,
		fragment: fragment,
		unit:     unit,
		imports:  imports,
		diags:    diags,
	}
}

// Commit runs a prepared fragment. A failed compile yields a diagnostics
// result and leaves the chain where it was. Otherwise the fragment runs
// and its generation becomes current, faulted or not; whatever the toolkit
// kept from a partial run stays. A run cut short by ctx returns ctx's
// error and does not advance the chain.
func (c *Chain) Commit(ctx context.Context, p *Pending) (*Result, error) {
	if p.base != c.current {
		return nil, ErrStale
	}
	return c.commit(ctx, p)
}

func (c *Chain) commit(ctx context.Context, p *Pending) (*Result, error) {
	if p.Failed() {
		log.Debugf("compile failed at generation %d: %d diagnostics", c.current.seq, len(p.diags))
		return &Result{Diagnostics: p.diags}, nil
	}

	value, fault := c.session.Run(ctx, p.unit)
	if err := ctx.Err(); err != nil && errors.Is(fault, err) {
		log.Debugf("run at generation %d interrupted: %v", c.current.seq, err)
		return nil, fault
	}
	if fault != nil {
		value = nil
	}
	gen := &Generation{
		seq:      c.current.seq + 1,
		fragment: p.fragment,
		unit:     p.unit,
		diags:    p.diags,
		value:    value,
		fault:    fault,
		imports:  p.imports,
		prev:     c.current,
	}
	c.current = gen

	if fault != nil {
		log.Debugf("generation %d faulted: %v", gen.seq, fault)
	} else {
		log.Debugf("advanced to generation %d", gen.seq)
	}
	return &Result{
		Value:       value,
		Diagnostics: p.diags,
		Fault:       fault,
		Generation:  gen,
	}, nil
}

// Evaluate prepares and commits fragment in one step. The error is only
// set when ctx ended while the fragment ran.
func (c *Chain) Evaluate(ctx context.Context, fragment string) (*Result, error) {
	return c.commit(ctx, c.Prepare(ctx, fragment))
}

// Close releases the toolkit session.
func (c *Chain) Close() error {
	return c.session.Close()
}
