package model

import (
	"context"
	"sync"
)

// Snapshot tracks one project and its live document. Updates and reads
// are serialized so a reader never sees a document id from another
// project version.
type Snapshot struct {
	mu      sync.Mutex
	ws      *Workspace
	scan    func(string) []string
	project *Project
	doc     *Document
}

// NewSnapshot starts tracking project id with an empty live document.
// scan extracts import paths from text for UpdateFull.
func NewSnapshot(ws *Workspace, id ProjectID, scan func(string) []string) (*Snapshot, error) {
	p, ok := ws.Project(id)
	if !ok {
		return nil, &ApplyError{Project: id, Reason: "unknown project"}
	}
	if scan == nil {
		scan = func(string) []string { return nil }
	}
	s := &Snapshot{ws: ws, scan: scan, project: p}
	if err := s.update("", false); err != nil {
		return nil, err
	}
	return s, nil
}

// UpdateFull records text as an evaluated submission: its imports join
// the project's and it becomes a committed document.
func (s *Snapshot) UpdateFull(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.update(text, true)
}

// UpdateTextOnly replaces the live document's text without touching the
// project's imports.
func (s *Snapshot) UpdateTextOnly(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.update(text, false)
}

// Query replaces the live text and runs fn against the result under one
// lock.
func (s *Snapshot) Query(ctx context.Context, text string, fn func(View) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.update(text, false); err != nil {
		return err
	}
	return fn(View{Project: s.project, Document: s.doc})
}

// View returns the current (project, document) pair.
func (s *Snapshot) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return View{Project: s.project, Document: s.doc}
}

// Imports returns the project's imports in sorted order.
func (s *Snapshot) Imports() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.project.Imports()
}

func (s *Snapshot) update(text string, committed bool) error {
	p := s.project
	if committed {
		p = p.WithImports(s.scan(text)...)
	}
	if s.doc != nil && !s.doc.committed {
		p = p.RemoveDocument(s.doc.id)
	}
	p, doc := p.AddDocument(text, committed)

	applied, err := s.ws.TryApply(p)
	if err != nil {
		log.Errorf("snapshot update rejected: %v", err)
		return err
	}
	resolved, ok := applied.Document(doc.id)
	if !ok {
		return &ApplyError{Project: applied.id, Reason: "document missing after apply"}
	}
	if committed {
		log.Debugf("committed %s, imports %v", resolved.name, applied.imports)
	}

	s.project, s.doc = applied, resolved
	return nil
}

// Committed returns the text of every committed document in order.
func (s *Snapshot) Committed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, d := range s.project.docs {
		if d.committed {
			out = append(out, d.text)
		}
	}
	return out
}
