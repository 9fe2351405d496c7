// Package goscript runs Go fragments with the yaegi interpreter and serves
// completions for them. It is the toolkit behind the script chain and the
// program model.
package goscript

import (
	"context"
	"errors"
	"fmt"
	"go/scanner"
	"io"
	"reflect"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/tliron/commonlog"
	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/chazu/replkit/reference"
	"github.com/chazu/replkit/script"
)

var log = commonlog.GetLogger("replkit.goscript")

// ErrSessionClosed is reported when a closed session is asked to compile.
var ErrSessionClosed = errors.New("goscript: session closed")

// Options configures a Session.
type Options struct {
	// Stdlib exposes yaegi's standard library symbol table.
	Stdlib bool

	// Modules are host packages evaluated code may import.
	Modules []*reference.Module

	// Imports are imported before the first fragment.
	Imports []string

	Stdout io.Writer
	Stderr io.Writer
}

// Session is a script.Session backed by one yaegi interpreter. The
// interpreter keeps every declaration, so a compiled unit only needs the
// program for its own fragment.
//
// Fragments are compiled on a shadow interpreter first. The shadow holds
// the committed fragments, compiled but never run, so a fragment that does
// not compile leaves the live interpreter untouched.
type Session struct {
	mu     sync.Mutex
	opts   Options
	live   *space
	shadow *shadow
	closed bool

	// busy is closed once an interrupted program has stopped running.
	busy <-chan struct{}

	// committed holds the import-free sources of the units that ran and
	// the imports they needed, in order.
	committed        []string
	committedImports []importSpec
}

// space is an interpreter and the imports it has evaluated.
type space struct {
	interp   *interp.Interpreter
	imported map[string]bool
}

// shadow is the compile-only mirror of the committed units. pending is the
// unit compiled on it that has not run yet.
type shadow struct {
	*space
	pending *unit
}

// unit is the compiled form of one fragment. A nil program runs as a no-op.
type unit struct {
	prog     *interp.Program
	src      string
	imports  []importSpec
	declOnly bool
}

// NewSession creates an interpreter, registers the host modules and runs
// the initial imports.
func NewSession(opts Options) (*Session, error) {
	live, err := newSpace(opts, opts.Stdout, opts.Stderr)
	if err != nil {
		return nil, err
	}
	specs := make([]importSpec, len(opts.Imports))
	for i, p := range opts.Imports {
		specs[i] = importSpec{path: p}
	}
	if err := live.importSpecs(specs); err != nil {
		return nil, err
	}
	return &Session{
		opts:             opts,
		live:             live,
		committedImports: specs,
	}, nil
}

func newSpace(opts Options, stdout, stderr io.Writer) (*space, error) {
	i := interp.New(interp.Options{
		Stdout: stdout,
		Stderr: stderr,
	})
	if opts.Stdlib {
		if err := i.Use(stdlib.Symbols); err != nil {
			return nil, fmt.Errorf("loading stdlib symbols: %w", err)
		}
	}
	if len(opts.Modules) > 0 {
		exports := make(interp.Exports, len(opts.Modules))
		for _, m := range opts.Modules {
			exports[m.Key()] = m.Symbols
		}
		if err := i.Use(exports); err != nil {
			return nil, fmt.Errorf("registering host modules: %w", err)
		}
	}
	return &space{interp: i, imported: make(map[string]bool)}, nil
}

// importSpecs evaluates one import declaration for the specs the space has
// not imported yet.
func (sp *space) importSpecs(specs []importSpec) error {
	var missing []importSpec
	for _, s := range specs {
		if !sp.imported[s.key()] && !slices.Contains(missing, s) {
			missing = append(missing, s)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	if _, err := sp.interp.Eval(importDecl(missing)); err != nil {
		return fmt.Errorf("importing %v: %w", paths(missing), err)
	}
	for _, s := range missing {
		sp.imported[s.key()] = true
	}
	log.Debugf("imported %v", paths(missing))
	return nil
}

// compile imports specs and compiles src, which must hold no import
// declarations. A blank src compiles to a nil program.
func (sp *space) compile(src string, specs []importSpec) (*interp.Program, error) {
	if err := sp.importSpecs(specs); err != nil {
		return nil, err
	}
	if strings.TrimSpace(src) == "" {
		return nil, nil
	}
	return sp.interp.Compile(src)
}

func paths(specs []importSpec) []string {
	out := make([]string, len(specs))
	for i, s := range specs {
		out[i] = s.path
	}
	return out
}

// Compile compiles fragment. Its import declarations and every path in
// imports are imported before the rest of the fragment compiles, so a
// fragment can import a package and use it straight away. A fragment that
// fails to compile changes nothing.
func (s *Session) Compile(ctx context.Context, prev script.Unit, fragment string, imports []string) (script.Unit, []script.Diagnostic) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, []script.Diagnostic{script.Errorf("%v", ErrSessionClosed)}
	}
	if err := ctx.Err(); err != nil {
		return nil, []script.Diagnostic{script.Errorf("%v", err)}
	}
	if err := s.settle(ctx); err != nil {
		return nil, []script.Diagnostic{script.Errorf("%v", err)}
	}

	src, declared := stripImports(fragment)
	specs := make([]importSpec, 0, len(imports)+len(declared))
	for _, p := range imports {
		specs = append(specs, importSpec{path: p})
	}
	specs = append(specs, declared...)

	u := &unit{src: src, imports: specs, declOnly: declarationOnly(src)}

	sh := s.shadowSpace()
	if sh != nil {
		if _, err := sh.compile(src, specs); err != nil {
			s.shadow = nil
			return nil, diagnostics(err)
		}
		sh.pending = u
	}

	prog, err := s.live.compile(src, specs)
	if err != nil {
		if sh != nil {
			log.Warningf("fragment compiled on the shadow but not live: %v", err)
		}
		s.shadow = nil
		return nil, diagnostics(err)
	}
	u.prog = prog
	return u, nil
}

// shadowSpace returns a shadow holding exactly the committed units,
// rebuilding it when a compile left it out of step. It returns nil when
// the committed units no longer replay, in which case fragments compile
// unchecked.
func (s *Session) shadowSpace() *shadow {
	if s.shadow != nil && s.shadow.pending == nil {
		return s.shadow
	}
	s.shadow = nil

	sp, err := newSpace(s.opts, io.Discard, io.Discard)
	if err != nil {
		log.Warningf("building shadow interpreter: %v", err)
		return nil
	}
	if err := sp.importSpecs(s.committedImports); err != nil {
		log.Warningf("replaying imports on shadow interpreter: %v", err)
		return nil
	}
	for _, src := range s.committed {
		if _, err := sp.compile(src, nil); err != nil {
			log.Warningf("replaying committed fragment on shadow interpreter: %v", err)
			return nil
		}
	}
	log.Debugf("rebuilt shadow interpreter from %d fragments", len(s.committed))
	s.shadow = &shadow{space: sp}
	return s.shadow
}

// Run executes a compiled unit. With a context that can be cancelled the
// interpreter runs on its own goroutine; when ctx is done first the
// program is stopped and Run returns ctx.Err() without committing the
// unit. The session stays busy until the stopped program has returned.
// Without a cancellable context the unit runs on the caller's goroutine.
func (s *Session) Run(ctx context.Context, u script.Unit) (any, error) {
	cu, ok := u.(*unit)
	if !ok {
		return nil, fmt.Errorf("goscript: foreign unit %T", u)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.settle(ctx); err != nil {
		return nil, err
	}
	if cu.prog == nil {
		s.commit(cu)
		return nil, nil
	}

	var (
		res reflect.Value
		err error
	)
	if ctx.Done() == nil {
		res, err = s.live.interp.Execute(cu.prog)
	} else {
		done := make(chan struct{})
		go func() {
			defer close(done)
			res, err = s.live.interp.Execute(cu.prog)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			s.interrupt()
			s.busy = done
			log.Debugf("run interrupted: %v", ctx.Err())
			return nil, ctx.Err()
		}
	}

	s.commit(cu)
	if err != nil {
		return nil, fault(err)
	}
	if cu.declOnly {
		return nil, nil
	}
	return valueOf(res), nil
}

// commit records a unit that ran, faulted or not, so the shadow can
// replay it.
func (s *Session) commit(cu *unit) {
	if strings.TrimSpace(cu.src) != "" {
		s.committed = append(s.committed, cu.src)
	}
	for _, spec := range cu.imports {
		if !slices.Contains(s.committedImports, spec) {
			s.committedImports = append(s.committedImports, spec)
		}
	}
	if s.shadow != nil && s.shadow.pending == cu {
		s.shadow.pending = nil
	}
}

// settle waits for an interrupted program to return.
func (s *Session) settle(ctx context.Context) error {
	if s.busy == nil {
		return nil
	}
	select {
	case <-s.busy:
		s.busy = nil
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// interrupt stops the program running on the live interpreter. yaegi only
// stops programs from its context-aware entry points, so an empty program
// is started under a cancelled context until the interpreter takes the
// cancellation branch. The empty program fails before it touches any
// interpreter state. A last start under a live context leaves the
// interpreter with an open stop channel for later runs.
func (s *Session) interrupt() {
	stopped, cancel := context.WithCancel(context.Background())
	cancel()
	for {
		_, err := s.live.interp.ExecuteWithContext(stopped, &interp.Program{})
		if errors.Is(err, context.Canceled) {
			break
		}
	}
	s.live.interp.ExecuteWithContext(context.Background(), &interp.Program{})
}

// Close marks the session unusable. yaegi holds no external resources.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.closed = true
	s.shadow = nil
	return nil
}

// Fault is a panic raised by evaluated code.
type Fault struct {
	Value any
	Stack []byte
}

func (f *Fault) Error() string {
	return fmt.Sprintf("panic: %v", f.Value)
}

func fault(err error) error {
	var p interp.Panic
	if errors.As(err, &p) {
		return &Fault{Value: p.Value, Stack: p.Stack}
	}
	return err
}

var positionRE = regexp.MustCompile(`^(?:[^:\s]*:)?(\d+):(\d+): (.*)$`)

// diagnostics turns a compile error into diagnostics, one per scanner
// error when the parser reported several.
func diagnostics(err error) []script.Diagnostic {
	var list scanner.ErrorList
	if errors.As(err, &list) && len(list) > 0 {
		out := make([]script.Diagnostic, len(list))
		for i, e := range list {
			out[i] = script.Diagnostic{
				Severity: script.SevError,
				Message:  e.Msg,
				Pos:      script.Position{Line: e.Pos.Line, Column: e.Pos.Column},
			}
		}
		return out
	}

	msg := err.Error()
	if m := positionRE.FindStringSubmatch(msg); m != nil {
		line, _ := strconv.Atoi(m[1])
		col, _ := strconv.Atoi(m[2])
		return []script.Diagnostic{{
			Severity: script.SevError,
			Message:  m[3],
			Pos:      script.Position{Line: line, Column: col},
		}}
	}
	return []script.Diagnostic{{Severity: script.SevError, Message: msg}}
}

// valueOf unwraps an interpreter result. Statements produce no value.
func valueOf(v reflect.Value) any {
	if !v.IsValid() {
		return nil
	}
	if (v.Kind() == reflect.Interface || v.Kind() == reflect.Pointer) && v.IsNil() {
		return nil
	}
	if v.CanInterface() {
		return v.Interface()
	}
	return v.String()
}
