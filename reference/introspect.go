package reference

import (
	"fmt"
	"go/types"
	"sort"

	"golang.org/x/tools/go/packages"
)

// Introspect loads a Go package by import path and returns its exported API
// as metadata. It needs the go toolchain, so it is meant for producing
// images ahead of time rather than for use inside an evaluator.
func Introspect(importPath string) (*Metadata, error) {
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedTypes,
	}

	pkgs, err := packages.Load(cfg, importPath)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", importPath, err)
	}
	if len(pkgs) == 0 {
		return nil, fmt.Errorf("no packages found for %s", importPath)
	}
	if len(pkgs[0].Errors) > 0 {
		return nil, fmt.Errorf("package errors: %v", pkgs[0].Errors)
	}

	pkg := pkgs[0]
	if pkg.Types == nil {
		return nil, fmt.Errorf("type information not available for %s", importPath)
	}

	md := &Metadata{Path: pkg.PkgPath, Name: pkg.Name}
	qual := qualifier(pkg.Types)

	scope := pkg.Types.Scope()
	for _, name := range scope.Names() {
		obj := scope.Lookup(name)
		if !obj.Exported() {
			continue
		}

		switch o := obj.(type) {
		case *types.Func:
			md.Symbols = append(md.Symbols, Symbol{
				Name:   name,
				Kind:   SymbolFunc,
				Detail: types.TypeString(o.Type(), qual),
			})
		case *types.TypeName:
			md.Symbols = append(md.Symbols, Symbol{
				Name:   name,
				Kind:   SymbolType,
				Detail: types.TypeString(o.Type().Underlying(), qual),
			})
		case *types.Const:
			md.Symbols = append(md.Symbols, Symbol{
				Name:   name,
				Kind:   SymbolConst,
				Detail: o.Val().ExactString(),
			})
		case *types.Var:
			md.Symbols = append(md.Symbols, Symbol{
				Name:   name,
				Kind:   SymbolVar,
				Detail: types.TypeString(o.Type(), qual),
			})
		}
	}

	if len(md.Symbols) == 0 {
		return nil, fmt.Errorf("%s: %w", importPath, ErrNoMetadata)
	}
	sort.Slice(md.Symbols, func(i, j int) bool { return md.Symbols[i].Name < md.Symbols[j].Name })
	return md, nil
}

func qualifier(pkg *types.Package) types.Qualifier {
	return func(other *types.Package) string {
		if other == pkg {
			return ""
		}
		return other.Name()
	}
}
