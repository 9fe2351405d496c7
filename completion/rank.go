package completion

import (
	"cmp"
	"slices"

	"github.com/agext/levenshtein"

	"github.com/chazu/replkit/model"
)

// Rank returns items ordered for filterText: an item whose sort text
// equals filterText comes first, the rest follow by ascending edit
// distance between filterText and sort text. Equal items keep their
// relative order. items is not modified.
func Rank(items []model.Candidate, filterText string) []model.Candidate {
	type ranked struct {
		item  model.Candidate
		exact bool
		dist  int
	}
	rs := make([]ranked, len(items))
	for i, it := range items {
		rs[i] = ranked{
			item:  it,
			exact: it.SortText == filterText,
			dist:  levenshtein.Distance(filterText, it.SortText, nil),
		}
	}

	slices.SortStableFunc(rs, func(a, b ranked) int {
		switch {
		case a.exact && !b.exact:
			return -1
		case b.exact && !a.exact:
			return 1
		}
		return cmp.Compare(a.dist, b.dist)
	})

	out := make([]model.Candidate, len(rs))
	for i, r := range rs {
		out[i] = r.item
	}
	return out
}

// Splice applies change to text. Out of range spans are clamped.
func Splice(text string, change model.TextChange) string {
	start := change.Span.Start
	end := change.Span.End()
	if start < 0 {
		start = 0
	}
	if start > len(text) {
		start = len(text)
	}
	if end < start {
		end = start
	}
	if end > len(text) {
		end = len(text)
	}
	return text[:start] + change.NewText + text[end:]
}

// spanText returns the text covered by span, clamped to text.
func spanText(text string, span model.Span) string {
	start := max(0, min(span.Start, len(text)))
	end := max(start, min(span.End(), len(text)))
	return text[start:end]
}
