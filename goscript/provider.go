package goscript

import (
	"context"
	"go/token"
	"go/types"
	"path"
	"slices"
	"sort"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/chazu/replkit/model"
	"github.com/chazu/replkit/reference"
)

// Provider is the completion and semantic provider for Go fragments.
// Package members come from reference metadata; everything else comes
// from keywords, the universe scope, the project's imports and the names
// its documents declare.
type Provider struct {
	modules []*reference.Module

	mu   sync.Mutex
	refs map[string]*reference.Reference
}

// NewProvider creates a provider that can describe the given modules,
// typically StdlibModules plus the host's own.
func NewProvider(modules []*reference.Module) *Provider {
	return &Provider{
		modules: modules,
		refs:    make(map[string]*reference.Reference),
	}
}

// Register installs p as both providers for Go projects on host.
func (p *Provider) Register(host *model.Host) {
	host.RegisterCompletion(model.LanguageGo, p)
	host.RegisterSemantic(model.LanguageGo, p)
}

func (p *Provider) Completions(ctx context.Context, v model.View, caret int) (model.CompletionList, error) {
	text := v.Document.Text()
	caret = clamp(caret, len(text))
	span := model.Span{Start: identStart(text, caret)}
	span.Length = caret - span.Start

	var items []model.Candidate
	add := func(name string, kind model.CandidateKind, detail string) {
		items = append(items, model.Candidate{
			DisplayText: name,
			SortText:    name,
			FilterText:  name,
			Kind:        kind,
			Detail:      detail,
			Span:        span,
		})
	}

	if pkg, ok := qualifier(text, span.Start); ok {
		md := p.metadata(v.Project, pkg)
		if md == nil {
			return model.CompletionList{Span: span}, nil
		}
		for _, s := range md.Symbols {
			add(s.Name, kindOf(s.Kind), s.Detail)
		}
		return model.CompletionList{Items: items, Span: span}, nil
	}

	seen := make(map[string]bool)
	addOnce := func(name string, kind model.CandidateKind, detail string) {
		if name == "_" || seen[name] {
			return
		}
		seen[name] = true
		add(name, kind, detail)
	}

	for _, d := range p.declared(v) {
		addOnce(d.name, d.kind, "")
	}
	for _, imp := range v.Project.Imports() {
		addOnce(p.packageName(v.Project, imp), model.KindPackage, imp)
	}
	for tok := token.BREAK; tok <= token.VAR; tok++ {
		addOnce(tok.String(), model.KindKeyword, "")
	}
	for _, name := range types.Universe.Names() {
		kind, detail := universeKind(name)
		addOnce(name, kind, detail)
	}
	return model.CompletionList{Items: items, Span: span}, nil
}

// Filter keeps the items whose filter text fuzzily contains filterText,
// ignoring case.
func (p *Provider) Filter(items []model.Candidate, filterText string) []model.Candidate {
	var out []model.Candidate
	for _, it := range items {
		if fuzzy.MatchFold(filterText, it.FilterText) {
			out = append(out, it)
		}
	}
	return out
}

// Change replaces the item's span with its name. Committing a function
// with '(' also inserts the parentheses and puts the caret between them.
func (p *Provider) Change(ctx context.Context, v model.View, item model.Candidate, commit rune) (model.CompletionChange, error) {
	change := model.CompletionChange{
		TextChange: model.TextChange{Span: item.Span, NewText: item.DisplayText},
	}
	if commit == '(' && item.Kind == model.KindFunction {
		change.TextChange.NewText += "()"
		pos := item.Span.Start + len(item.DisplayText) + 1
		change.NewPosition = &pos
	}
	return change, nil
}

// Describe returns the symbol whose identifier contains offset.
func (p *Provider) Describe(ctx context.Context, v model.View, offset int) (*model.SymbolInfo, error) {
	text := v.Document.Text()
	offset = clamp(offset, len(text))
	start, end := identStart(text, offset), identEnd(text, offset)
	if start == end {
		return nil, nil
	}
	name := text[start:end]

	if pkg, ok := qualifier(text, start); ok {
		md := p.metadata(v.Project, pkg)
		if md == nil {
			return nil, nil
		}
		s, ok := md.Lookup(name)
		if !ok {
			return nil, nil
		}
		return &model.SymbolInfo{Name: s.Name, Kind: kindOf(s.Kind), Detail: s.Detail, Package: md.Path}, nil
	}

	for _, d := range p.declared(v) {
		if d.name == name {
			return &model.SymbolInfo{Name: name, Kind: d.kind}, nil
		}
	}
	for _, imp := range v.Project.Imports() {
		if p.packageName(v.Project, imp) == name {
			return &model.SymbolInfo{Name: name, Kind: model.KindPackage, Detail: imp, Package: imp}, nil
		}
	}
	if token.Lookup(name).IsKeyword() {
		return &model.SymbolInfo{Name: name, Kind: model.KindKeyword}, nil
	}
	if types.Universe.Lookup(name) != nil {
		kind, detail := universeKind(name)
		return &model.SymbolInfo{Name: name, Kind: kind, Detail: detail}, nil
	}
	return nil, nil
}

// declared collects names from committed documents and the live text.
func (p *Provider) declared(v model.View) []decl {
	var out []decl
	for _, doc := range v.Project.Documents() {
		out = append(out, declarations(doc.Text())...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// metadata finds the metadata of the imported package named pkg.
func (p *Provider) metadata(proj *model.Project, pkg string) *reference.Metadata {
	if ref, ok := proj.Reference(pkg); ok && slices.Contains(proj.Imports(), ref.Metadata.Path) {
		return ref.Metadata
	}
	for _, imp := range proj.Imports() {
		if p.packageName(proj, imp) != pkg {
			continue
		}
		if ref := p.reference(imp); ref != nil {
			return ref.Metadata
		}
	}
	return nil
}

// reference resolves and caches the best reference for an import path.
func (p *Provider) reference(importPath string) *reference.Reference {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ref, ok := p.refs[importPath]; ok {
		return ref
	}
	var ref *reference.Reference
	if m := FindModule(p.modules, importPath); m != nil {
		r, err := reference.BestReference(m)
		if err != nil {
			log.Warningf("no reference for %s: %v", importPath, err)
		}
		ref = r
	}
	p.refs[importPath] = ref
	return ref
}

func (p *Provider) packageName(proj *model.Project, importPath string) string {
	for _, ref := range proj.References() {
		if ref.Metadata != nil && ref.Metadata.Path == importPath {
			return ref.Metadata.Name
		}
	}
	if m := FindModule(p.modules, importPath); m != nil {
		return m.PackageName()
	}
	return path.Base(importPath)
}

func kindOf(k reference.SymbolKind) model.CandidateKind {
	switch k {
	case reference.SymbolFunc:
		return model.KindFunction
	case reference.SymbolType:
		return model.KindType
	case reference.SymbolConst:
		return model.KindConstant
	case reference.SymbolVar:
		return model.KindVariable
	}
	return model.KindText
}

func universeKind(name string) (model.CandidateKind, string) {
	switch obj := types.Universe.Lookup(name).(type) {
	case *types.TypeName:
		return model.KindType, obj.Type().String()
	case *types.Builtin:
		return model.KindFunction, "builtin"
	case *types.Const:
		return model.KindConstant, obj.Val().ExactString()
	case *types.Nil:
		return model.KindConstant, "nil"
	}
	return model.KindText, ""
}

// qualifier returns the package identifier in "pkg." directly before
// start.
func qualifier(text string, start int) (string, bool) {
	if start == 0 || text[start-1] != '.' {
		return "", false
	}
	end := start - 1
	begin := identStart(text, end)
	if begin == end {
		return "", false
	}
	return text[begin:end], true
}

func isIdentRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// identStart walks back from offset over identifier characters.
func identStart(text string, offset int) int {
	for offset > 0 {
		r, size := utf8.DecodeLastRuneInString(text[:offset])
		if !isIdentRune(r) {
			break
		}
		offset -= size
	}
	return offset
}

// identEnd walks forward from offset over identifier characters.
func identEnd(text string, offset int) int {
	for offset < len(text) {
		r, size := utf8.DecodeRuneInString(text[offset:])
		if !isIdentRune(r) {
			break
		}
		offset += size
	}
	return offset
}

func clamp(n, limit int) int {
	return max(0, min(n, limit))
}
