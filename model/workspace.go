// Package model keeps a live program model of everything an evaluator has
// seen, for semantic queries that must not touch the execution chain.
package model

import (
	"errors"
	"fmt"
	"sync"

	"github.com/tliron/commonlog"

	"github.com/chazu/replkit/reference"
)

var log = commonlog.GetLogger("replkit.model")

// ErrWorkspaceClosed is returned by operations on a closed workspace.
var ErrWorkspaceClosed = errors.New("model: workspace closed")

// ApplyError reports a project the workspace refused to apply. It means a
// caller held on to stale state, not bad user input.
type ApplyError struct {
	Project ProjectID
	Reason  string
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("model: cannot apply project %s: %s", e.Project, e.Reason)
}

// Workspace owns the current version of every project.
type Workspace struct {
	mu       sync.RWMutex
	host     *Host
	projects map[ProjectID]*Project
	closed   bool
}

// NewWorkspace creates an empty workspace using host for language services.
func NewWorkspace(host *Host) *Workspace {
	if host == nil {
		host = NewHost()
	}
	return &Workspace{
		host:     host,
		projects: make(map[ProjectID]*Project),
	}
}

func (w *Workspace) Host() *Host { return w.host }

// AddProject creates and registers an empty project.
func (w *Workspace) AddProject(name, language string, imports []string, refs []*reference.Reference) (*Project, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, ErrWorkspaceClosed
	}

	p := &Project{
		id:       NewProjectID(),
		version:  1,
		name:     name,
		language: language,
	}
	p = p.WithImports(imports...).WithReferences(refs...)
	p.version = 1
	w.projects[p.id] = p
	log.Debugf("added project %s (%s) with %d references", name, p.id, len(refs))
	return p, nil
}

// Project returns the current version of a project.
func (w *Workspace) Project(id ProjectID) (*Project, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	p, ok := w.projects[id]
	return p, ok
}

// TryApply makes p the current version of its project. p must have been
// derived from the current version; otherwise an *ApplyError is returned.
// The applied project is returned with its new version.
func (w *Workspace) TryApply(p *Project) (*Project, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, ErrWorkspaceClosed
	}

	current, ok := w.projects[p.id]
	if !ok {
		return nil, &ApplyError{Project: p.id, Reason: "unknown project"}
	}
	if p.version != current.version {
		return nil, &ApplyError{
			Project: p.id,
			Reason:  fmt.Sprintf("derived from version %d, current is %d", p.version, current.version),
		}
	}

	applied := p.clone()
	applied.version = current.version + 1
	w.projects[p.id] = applied
	return applied, nil
}

// Close drops every project. The host is owned by the caller.
func (w *Workspace) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWorkspaceClosed
	}
	w.closed = true
	w.projects = nil
	return nil
}
