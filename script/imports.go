package script

import (
	"slices"
	"sort"
)

// ImportSet is an immutable set of import paths. Union returns a new set
// and leaves the receiver untouched, so generations can share sets.
type ImportSet struct {
	paths map[string]struct{}
}

// NewImportSet builds a set from paths. Duplicates collapse.
func NewImportSet(paths ...string) ImportSet {
	s, _ := ImportSet{}.Union(paths...)
	return s
}

// Has reports whether path is in the set.
func (s ImportSet) Has(path string) bool {
	_, ok := s.paths[path]
	return ok
}

// Len returns the number of paths in the set.
func (s ImportSet) Len() int { return len(s.paths) }

// Union returns s plus paths, and the paths that were not already present
// in first-seen order. When nothing is new, s itself is returned.
func (s ImportSet) Union(paths ...string) (ImportSet, []string) {
	var added []string
	for _, p := range paths {
		if p == "" || s.Has(p) || slices.Contains(added, p) {
			continue
		}
		added = append(added, p)
	}
	if len(added) == 0 {
		return s, nil
	}

	next := make(map[string]struct{}, len(s.paths)+len(added))
	for p := range s.paths {
		next[p] = struct{}{}
	}
	for _, p := range added {
		next[p] = struct{}{}
	}
	return ImportSet{paths: next}, added
}

// Sorted returns the paths in lexical order.
func (s ImportSet) Sorted() []string {
	out := make([]string, 0, len(s.paths))
	for p := range s.paths {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Contains reports whether every path in other is also in s.
func (s ImportSet) Contains(other ImportSet) bool {
	for p := range other.paths {
		if !s.Has(p) {
			return false
		}
	}
	return true
}
