package goscript

import (
	"go/ast"
	"go/parser"
	"go/token"
	"strings"

	"github.com/chazu/replkit/model"
)

// decl is a name introduced by a fragment.
type decl struct {
	name string
	kind model.CandidateKind
}

// declarations returns the names fragment declares at top level, either
// as file-level declarations or as statements of a REPL line.
func declarations(fragment string) []decl {
	if strings.TrimSpace(fragment) == "" {
		return nil
	}
	fset := token.NewFileSet()
	mode := parser.SkipObjectResolution

	if f, err := parser.ParseFile(fset, "", packageClause+fragment, mode); err == nil {
		return fileDecls(f)
	}

	src := packageClause + "func _() {\n" + fragment + "\n}"
	f, _ := parser.ParseFile(fset, "", src, mode)
	if f == nil || len(f.Decls) == 0 {
		return nil
	}
	fn, ok := f.Decls[len(f.Decls)-1].(*ast.FuncDecl)
	if !ok || fn.Body == nil {
		return nil
	}

	var out []decl
	for _, stmt := range fn.Body.List {
		switch s := stmt.(type) {
		case *ast.AssignStmt:
			if s.Tok != token.DEFINE {
				continue
			}
			for _, lhs := range s.Lhs {
				if id, ok := lhs.(*ast.Ident); ok {
					out = append(out, decl{id.Name, model.KindVariable})
				}
			}
		case *ast.DeclStmt:
			if gd, ok := s.Decl.(*ast.GenDecl); ok {
				out = append(out, genDecls(gd)...)
			}
		}
	}
	return out
}

func fileDecls(f *ast.File) []decl {
	var out []decl
	for _, d := range f.Decls {
		switch d := d.(type) {
		case *ast.FuncDecl:
			if d.Recv == nil {
				out = append(out, decl{d.Name.Name, model.KindFunction})
			}
		case *ast.GenDecl:
			out = append(out, genDecls(d)...)
		}
	}
	return out
}

func genDecls(gd *ast.GenDecl) []decl {
	var out []decl
	for _, spec := range gd.Specs {
		switch s := spec.(type) {
		case *ast.TypeSpec:
			out = append(out, decl{s.Name.Name, model.KindType})
		case *ast.ValueSpec:
			kind := model.KindVariable
			if gd.Tok == token.CONST {
				kind = model.KindConstant
			}
			for _, n := range s.Names {
				out = append(out, decl{n.Name, kind})
			}
		}
	}
	return out
}

// declarationOnly reports whether src ends in a declaration rather than a
// statement or expression. yaegi hands back a pointer to the declared
// symbol for those, which is not a value of the fragment.
func declarationOnly(src string) bool {
	if strings.TrimSpace(src) == "" {
		return true
	}
	fset := token.NewFileSet()
	mode := parser.SkipObjectResolution

	if f, err := parser.ParseFile(fset, "", packageClause+src, mode); err == nil {
		return len(f.Decls) > 0
	}

	f, err := parser.ParseFile(fset, "", packageClause+"func _() {\n"+src+"\n}", mode)
	if err != nil || len(f.Decls) == 0 {
		return false
	}
	fn, ok := f.Decls[len(f.Decls)-1].(*ast.FuncDecl)
	if !ok || fn.Body == nil || len(fn.Body.List) == 0 {
		return false
	}
	_, ok = fn.Body.List[len(fn.Body.List)-1].(*ast.DeclStmt)
	return ok
}
