package model

import (
	"context"
	"errors"
	"io"
	"sync"
)

// Span is a byte range in a document's text.
type Span struct {
	Start  int
	Length int
}

func (s Span) End() int { return s.Start + s.Length }

// IsEmpty reports whether the span covers no text.
func (s Span) IsEmpty() bool { return s.Length == 0 }

// CandidateKind classifies a completion candidate.
type CandidateKind uint8

const (
	KindText CandidateKind = iota
	KindKeyword
	KindPackage
	KindFunction
	KindVariable
	KindConstant
	KindType
)

func (k CandidateKind) String() string {
	switch k {
	case KindKeyword:
		return "keyword"
	case KindPackage:
		return "package"
	case KindFunction:
		return "func"
	case KindVariable:
		return "var"
	case KindConstant:
		return "const"
	case KindType:
		return "type"
	}
	return "text"
}

// ParseCandidateKind is the inverse of CandidateKind.String.
func ParseCandidateKind(s string) (CandidateKind, bool) {
	for k := KindText; k <= KindType; k++ {
		if k.String() == s {
			return k, true
		}
	}
	return KindText, false
}

// Candidate is one completion item. Ranking and filtering never modify
// candidates; they only subset and reorder them.
type Candidate struct {
	DisplayText string
	SortText    string
	FilterText  string
	Kind        CandidateKind
	Detail      string
	Span        Span
}

// CompletionList is a provider's raw answer for a caret position. Span is
// the text the candidates would replace.
type CompletionList struct {
	Items []Candidate
	Span  Span
}

// TextChange replaces Span with NewText.
type TextChange struct {
	Span    Span
	NewText string
}

// CompletionChange is the edit implied by committing a candidate.
// NewPosition, when set, is where the caret should end up.
type CompletionChange struct {
	TextChange  TextChange
	NewPosition *int
}

// SymbolInfo describes the symbol under a position.
type SymbolInfo struct {
	Name    string
	Kind    CandidateKind
	Detail  string
	Package string
}

// View is a consistent (project, document) pair handed to providers.
type View struct {
	Project  *Project
	Document *Document
}

// CompletionProvider produces and applies completions for one language.
type CompletionProvider interface {
	Completions(ctx context.Context, v View, caret int) (CompletionList, error)
	Filter(items []Candidate, filterText string) []Candidate
	Change(ctx context.Context, v View, item Candidate, commit rune) (CompletionChange, error)
}

// SemanticProvider answers symbol questions for one language.
type SemanticProvider interface {
	Describe(ctx context.Context, v View, offset int) (*SymbolInfo, error)
}

// Host holds the language services a workspace can use. A language with
// no registered provider simply has no completions.
type Host struct {
	mu         sync.RWMutex
	completion map[string]CompletionProvider
	semantic   map[string]SemanticProvider
	closed     bool
}

func NewHost() *Host {
	return &Host{
		completion: make(map[string]CompletionProvider),
		semantic:   make(map[string]SemanticProvider),
	}
}

func (h *Host) RegisterCompletion(language string, p CompletionProvider) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.completion[language] = p
}

func (h *Host) RegisterSemantic(language string, p SemanticProvider) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.semantic[language] = p
}

// Completion returns the completion provider for language, or nil.
func (h *Host) Completion(language string) CompletionProvider {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return nil
	}
	return h.completion[language]
}

// Semantic returns the semantic provider for language, or nil.
func (h *Host) Semantic(language string) SemanticProvider {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return nil
	}
	return h.semantic[language]
}

// Close calls Close on every registered provider that implements
// io.Closer, once per registration. Later lookups return nil.
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true

	var errs []error
	closeOne := func(p any) {
		if c, ok := p.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	for _, p := range h.completion {
		closeOne(p)
	}
	for _, p := range h.semantic {
		closeOne(p)
	}
	return errors.Join(errs...)
}
