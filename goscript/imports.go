package goscript

import (
	"go/ast"
	"go/parser"
	"go/token"
	"strconv"
	"strings"

	"golang.org/x/tools/go/ast/astutil"
)

const packageClause = "package main\n"

// parseImports parses the import declarations at the top of fragment. The
// returned offset is the number of bytes prepended to fragment, so a
// position's Offset minus it indexes into fragment. f is nil when nothing
// could be parsed.
func parseImports(fragment string) (fset *token.FileSet, f *ast.File, offset int) {
	src := fragment
	if !strings.HasPrefix(strings.TrimSpace(fragment), "package ") {
		src = packageClause + fragment
		offset = len(packageClause)
	}
	fset = token.NewFileSet()
	f, _ = parser.ParseFile(fset, "", src, parser.ImportsOnly|parser.SkipObjectResolution)
	return fset, f, offset
}

// ScanImports returns the import paths declared by fragment in source
// order. Fragments that do not start with imports declare none.
func ScanImports(fragment string) []string {
	fset, f, _ := parseImports(fragment)
	if f == nil {
		return nil
	}
	var out []string
	for _, group := range astutil.Imports(fset, f) {
		for _, spec := range group {
			if p, err := strconv.Unquote(spec.Path.Value); err == nil {
				out = append(out, p)
			}
		}
	}
	return out
}

// importSpec is one import of a path, optionally under a name.
type importSpec struct {
	name string
	path string
}

func (s importSpec) key() string {
	if s.name == "" {
		return s.path
	}
	return s.name + " " + s.path
}

// stripImports blanks out every import declaration of fragment, keeping
// line and column positions intact. It returns the rewritten source and
// the imports fragment declares. A declaration with a malformed path is
// left for the compiler to report.
func stripImports(fragment string) (string, []importSpec) {
	fset, f, offset := parseImports(fragment)
	if f == nil {
		return fragment, nil
	}

	var (
		declared []importSpec
		buf      []byte
	)
	for _, decl := range f.Decls {
		gd, ok := decl.(*ast.GenDecl)
		if !ok || gd.Tok != token.IMPORT {
			continue
		}
		var specs []importSpec
		for _, spec := range gd.Specs {
			is := spec.(*ast.ImportSpec)
			p, err := strconv.Unquote(is.Path.Value)
			if err != nil {
				specs = nil
				break
			}
			var name string
			if is.Name != nil {
				name = is.Name.Name
			}
			specs = append(specs, importSpec{name: name, path: p})
		}
		if specs == nil {
			continue
		}
		declared = append(declared, specs...)

		start := fset.Position(gd.Pos()).Offset - offset
		end := fset.Position(gd.End()).Offset - offset
		if start < 0 || end > len(fragment) || start >= end {
			continue
		}
		if buf == nil {
			buf = []byte(fragment)
		}
		for i := start; i < end; i++ {
			if buf[i] != '\n' {
				buf[i] = ' '
			}
		}
	}
	if buf == nil {
		return fragment, declared
	}
	return string(buf), declared
}

// importDecl renders specs as one import declaration.
func importDecl(specs []importSpec) string {
	var b strings.Builder
	b.WriteString("import (\n")
	for _, s := range specs {
		b.WriteString("\t")
		if s.name != "" {
			b.WriteString(s.name + " ")
		}
		b.WriteString(strconv.Quote(s.path) + "\n")
	}
	b.WriteString(")")
	return b.String()
}
