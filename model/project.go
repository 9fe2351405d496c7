package model

import (
	"fmt"
	"slices"
	"sort"

	"github.com/chazu/replkit/reference"
)

// LanguageGo is the language name of projects holding Go fragments.
const LanguageGo = "go"

// Document is an immutable piece of source text inside a project.
// Committed documents are evaluated submissions; at most one uncommitted
// document holds the text being edited.
type Document struct {
	id        DocumentID
	project   ProjectID
	name      string
	text      string
	committed bool
}

func (d *Document) ID() DocumentID     { return d.id }
func (d *Document) Project() ProjectID { return d.project }
func (d *Document) Name() string       { return d.name }
func (d *Document) Text() string       { return d.text }
func (d *Document) Committed() bool    { return d.committed }

// Project is an immutable set of documents plus the compilation options
// they share. Every With/Add/Remove method returns a modified copy that
// remembers the workspace version it was derived from.
type Project struct {
	id         ProjectID
	version    int
	name       string
	language   string
	imports    []string
	references []*reference.Reference
	docs       []*Document
	committed  int
}

func (p *Project) ID() ProjectID    { return p.id }
func (p *Project) Version() int     { return p.version }
func (p *Project) Name() string     { return p.name }
func (p *Project) Language() string { return p.language }

// Imports returns the project's import paths in sorted order.
func (p *Project) Imports() []string { return slices.Clone(p.imports) }

func (p *Project) References() []*reference.Reference { return slices.Clone(p.references) }

// Documents returns the documents in insertion order.
func (p *Project) Documents() []*Document { return slices.Clone(p.docs) }

// Document resolves id inside this project.
func (p *Project) Document(id DocumentID) (*Document, bool) {
	for _, d := range p.docs {
		if d.id == id {
			return d, true
		}
	}
	return nil, false
}

// Reference returns the reference whose metadata carries the given
// package name.
func (p *Project) Reference(pkgName string) (*reference.Reference, bool) {
	for _, r := range p.references {
		if r.Metadata != nil && r.Metadata.Name == pkgName {
			return r, true
		}
	}
	return nil, false
}

func (p *Project) clone() *Project {
	c := *p
	return &c
}

// WithImports returns a copy whose imports are the union of the current
// imports and paths. p is returned unchanged when nothing is new.
func (p *Project) WithImports(paths ...string) *Project {
	merged := slices.Clone(p.imports)
	for _, path := range paths {
		if path != "" && !slices.Contains(merged, path) {
			merged = append(merged, path)
		}
	}
	if len(merged) == len(p.imports) {
		return p
	}
	sort.Strings(merged)

	c := p.clone()
	c.imports = merged
	return c
}

// WithReferences returns a copy that also cites refs.
func (p *Project) WithReferences(refs ...*reference.Reference) *Project {
	c := p.clone()
	c.references = append(slices.Clone(p.references), refs...)
	return c
}

// AddDocument returns a copy holding a new document with text.
func (p *Project) AddDocument(text string, committed bool) (*Project, *Document) {
	c := p.clone()
	name := "live"
	if committed {
		c.committed++
		name = fmt.Sprintf("fragment-%d", c.committed)
	}
	d := &Document{
		id:        NewDocumentID(),
		project:   p.id,
		name:      name,
		text:      text,
		committed: committed,
	}
	c.docs = append(slices.Clone(p.docs), d)
	return c, d
}

// RemoveDocument returns a copy without the document id.
func (p *Project) RemoveDocument(id DocumentID) *Project {
	c := p.clone()
	c.docs = slices.DeleteFunc(slices.Clone(p.docs), func(d *Document) bool { return d.id == id })
	return c
}
