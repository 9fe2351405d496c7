package goscript

import (
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/traefik/yaegi/stdlib"

	"github.com/chazu/replkit/reference"
)

var (
	stdlibOnce    sync.Once
	stdlibModules []*reference.Module
)

// StdlibModules describes yaegi's standard library table as host modules,
// sorted by import path. Wrapper types yaegi generates for interfaces are
// left out.
func StdlibModules() []*reference.Module {
	stdlibOnce.Do(func() {
		stdlibModules = modulesOf(stdlib.Symbols)
	})
	return stdlibModules
}

func modulesOf(exports map[string]map[string]reflect.Value) []*reference.Module {
	out := make([]*reference.Module, 0, len(exports))
	for key, symbols := range exports {
		i := strings.LastIndex(key, "/")
		if i <= 0 {
			continue
		}
		m := &reference.Module{
			Path:    key[:i],
			Name:    key[i+1:],
			Symbols: make(map[string]reflect.Value, len(symbols)),
		}
		for name, v := range symbols {
			if strings.HasPrefix(name, "_") {
				continue
			}
			m.Symbols[name] = v
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// FindModule returns the module with the given import path.
func FindModule(modules []*reference.Module, path string) *reference.Module {
	for _, m := range modules {
		if m.Path == path {
			return m
		}
	}
	return nil
}
