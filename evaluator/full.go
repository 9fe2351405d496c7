package evaluator

import (
	"context"
	"errors"
	"fmt"

	"github.com/chazu/replkit/completion"
	"github.com/chazu/replkit/goscript"
	"github.com/chazu/replkit/model"
	"github.com/chazu/replkit/reference"
	"github.com/chazu/replkit/script"
)

// Full evaluates fragments and keeps a program model of everything it has
// evaluated, which completion and describe queries run against.
type Full struct {
	*engine

	host        *model.Host
	workspace   *model.Workspace
	snapshot    *model.Snapshot
	completions *completion.Service
}

// NewFull creates a Full evaluator. Host modules are resolved to references
// up front, so a corrupt image fails here rather than on first completion.
func NewFull(opts Options) (*Full, error) {
	refs, err := reference.ResolveAll(context.Background(), withImages(opts.Modules, opts.ImageDir))
	if err != nil {
		return nil, fmt.Errorf("resolving host modules: %w", err)
	}

	sess, err := opts.session()
	if err != nil {
		return nil, err
	}

	var described []*reference.Module
	if opts.Stdlib {
		described = append(described, goscript.StdlibModules()...)
	}
	described = append(described, opts.Modules...)
	described = withImages(described, opts.ImageDir)

	host := model.NewHost()
	goscript.NewProvider(described).Register(host)

	ws := model.NewWorkspace(host)
	proj, err := ws.AddProject("script", model.LanguageGo, opts.Imports, refs)
	if err != nil {
		sess.Close()
		return nil, err
	}
	snap, err := model.NewSnapshot(ws, proj.ID(), goscript.ScanImports)
	if err != nil {
		sess.Close()
		return nil, err
	}

	f := &Full{
		engine:      newEngine(script.NewChain(sess, goscript.ScanImports, opts.Imports...)),
		host:        host,
		workspace:   ws,
		snapshot:    snap,
		completions: completion.NewService(snap, host),
	}
	f.beforeCompile = snap.UpdateFull
	return f, nil
}

// withImages returns copies of modules pointing at their image in dir.
// Modules that already name an image are kept as they are.
func withImages(modules []*reference.Module, dir string) []*reference.Module {
	if dir == "" {
		return modules
	}
	out := make([]*reference.Module, len(modules))
	for i, m := range modules {
		if m.Image != "" {
			out[i] = m
			continue
		}
		c := *m
		c.Image = reference.ImagePath(dir, m.Path)
		out[i] = &c
	}
	return out
}

// Completions returns ranked completions for caret in source. It never
// changes what later evaluations see.
func (f *Full) Completions(ctx context.Context, source string, caret int, trigger completion.Trigger) ([]model.Candidate, error) {
	if f.closed.Load() {
		return nil, ErrClosed
	}
	return f.completions.Completions(ctx, source, caret, trigger)
}

// ApplyCompletion commits item and returns the new source and caret.
func (f *Full) ApplyCompletion(ctx context.Context, source string, item model.Candidate, caret int, commit rune) (string, int, error) {
	if f.closed.Load() {
		return source, caret, ErrClosed
	}
	return f.completions.Apply(ctx, source, item, caret, commit)
}

// Describe returns the symbol at offset in source, or nil.
func (f *Full) Describe(ctx context.Context, source string, offset int) (*model.SymbolInfo, error) {
	if f.closed.Load() {
		return nil, ErrClosed
	}
	return f.completions.Describe(ctx, source, offset)
}

// ModelImports returns the imports the program model has accumulated.
// They include imports of fragments that failed to compile.
func (f *Full) ModelImports() []string {
	return f.snapshot.Imports()
}

// Close releases the interpreter session, the workspace and the host.
func (f *Full) Close() error {
	return f.close(func() error {
		return errors.Join(f.workspace.Close(), f.host.Close())
	})
}
