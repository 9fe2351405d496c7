// Package reference turns host modules into references the program model can
// cite: either a metadata image on disk or an in-memory metadata blob.
package reference

import (
	"go/constant"
	"reflect"
	"sort"
	"strings"
)

// Module is a binary package the host makes available to evaluated code.
// Symbols holds the runtime values keyed by exported name, in the layout
// used by yaegi export tables: functions and variables as values, types as
// typed nil pointers, constants as go/constant values.
type Module struct {
	Path    string // import path, e.g. "example.com/geometry"
	Name    string // package name; defaults to the last path element
	Image   string // optional metadata image on disk
	Symbols map[string]reflect.Value
}

// PackageName returns the name evaluated code refers to the module by.
func (m *Module) PackageName() string {
	if m.Name != "" {
		return m.Name
	}
	if i := strings.LastIndex(m.Path, "/"); i >= 0 {
		return m.Path[i+1:]
	}
	return m.Path
}

// Key returns the export table key ("path/name") for the module.
func (m *Module) Key() string {
	return m.Path + "/" + m.PackageName()
}

// SymbolKind classifies an exported symbol.
type SymbolKind uint8

const (
	SymbolValue SymbolKind = iota
	SymbolFunc
	SymbolType
	SymbolConst
	SymbolVar
)

func (k SymbolKind) String() string {
	switch k {
	case SymbolFunc:
		return "func"
	case SymbolType:
		return "type"
	case SymbolConst:
		return "const"
	case SymbolVar:
		return "var"
	}
	return "value"
}

// Symbol describes one exported name of a module.
type Symbol struct {
	Name   string     `cbor:"1,keyasint"`
	Kind   SymbolKind `cbor:"2,keyasint"`
	Detail string     `cbor:"3,keyasint,omitempty"` // type or signature
}

// Metadata is the compile-time view of a module: what it exports, without
// any runtime values.
type Metadata struct {
	Path    string   `cbor:"1,keyasint"`
	Name    string   `cbor:"2,keyasint"`
	Symbols []Symbol `cbor:"3,keyasint"`
}

// Lookup finds an exported symbol by name.
func (md *Metadata) Lookup(name string) (Symbol, bool) {
	i := sort.Search(len(md.Symbols), func(i int) bool { return md.Symbols[i].Name >= name })
	if i < len(md.Symbols) && md.Symbols[i].Name == name {
		return md.Symbols[i], true
	}
	return Symbol{}, false
}

var constantValueType = reflect.TypeOf((*constant.Value)(nil)).Elem()

// metadataOf extracts metadata from the module's symbol table. Returns nil
// when the module exports nothing.
func metadataOf(m *Module) *Metadata {
	if m == nil || len(m.Symbols) == 0 {
		return nil
	}
	md := &Metadata{Path: m.Path, Name: m.PackageName()}
	for name, v := range m.Symbols {
		if !v.IsValid() {
			continue
		}
		md.Symbols = append(md.Symbols, describe(name, v))
	}
	if len(md.Symbols) == 0 {
		return nil
	}
	sort.Slice(md.Symbols, func(i, j int) bool { return md.Symbols[i].Name < md.Symbols[j].Name })
	return md
}

func describe(name string, v reflect.Value) Symbol {
	t := v.Type()
	switch {
	case t.Implements(constantValueType):
		s := Symbol{Name: name, Kind: SymbolConst}
		if c, ok := v.Interface().(constant.Value); ok {
			s.Detail = c.ExactString()
		}
		return s
	case v.Kind() == reflect.Func:
		return Symbol{Name: name, Kind: SymbolFunc, Detail: t.String()}
	case v.Kind() == reflect.Pointer && v.IsNil():
		return Symbol{Name: name, Kind: SymbolType, Detail: t.Elem().String()}
	case v.CanAddr():
		return Symbol{Name: name, Kind: SymbolVar, Detail: t.String()}
	}
	return Symbol{Name: name, Kind: SymbolValue, Detail: t.String()}
}
