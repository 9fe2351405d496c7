// Package completion serves ranked completions over a program model
// snapshot and applies accepted ones to editable text.
package completion

import (
	"context"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/replkit/model"
)

var log = commonlog.GetLogger("replkit.completion")

// Service answers completion requests against a snapshot. Requests only
// ever update the snapshot's live text, never its imports.
type Service struct {
	snapshot *model.Snapshot
	host     *model.Host
}

func NewService(snapshot *model.Snapshot, host *model.Host) *Service {
	return &Service{snapshot: snapshot, host: host}
}

// Completions returns ranked candidates for the caret position in text.
// Offsets are bytes into text. A missing provider or an ignored trigger
// yields no candidates and no error.
func (s *Service) Completions(ctx context.Context, text string, caret int, trigger Trigger) ([]model.Candidate, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	var out []model.Candidate
	err := s.snapshot.Query(ctx, text, func(v model.View) error {
		provider := s.host.Completion(v.Project.Language())
		if provider == nil {
			log.Debugf("no completion provider for %q", v.Project.Language())
			return nil
		}
		if !trigger.Accepts() {
			return nil
		}

		list, err := provider.Completions(ctx, v, caret)
		if err != nil {
			return err
		}
		if list.Span.IsEmpty() {
			out = list.Items
			return nil
		}

		filterText := spanText(text, list.Span)
		out = Rank(provider.Filter(list.Items, filterText), filterText)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Apply commits item at caret and returns the new text and caret. commit
// is the character that accepted the item, or 0 for tab and enter.
func (s *Service) Apply(ctx context.Context, text string, item model.Candidate, caret int, commit rune) (string, int, error) {
	newText, newCaret := text, caret
	err := s.snapshot.Query(ctx, text, func(v model.View) error {
		provider := s.host.Completion(v.Project.Language())
		if provider == nil {
			return nil
		}

		change, err := provider.Change(ctx, v, item, commit)
		if err != nil {
			return err
		}
		tc := change.TextChange
		newText = Splice(text, tc)
		if change.NewPosition != nil {
			newCaret = *change.NewPosition
		} else {
			newCaret = caret + len(tc.NewText) - tc.Span.Length
		}
		return nil
	})
	if err != nil {
		return text, caret, err
	}
	return newText, newCaret, nil
}

// Describe returns the symbol at offset in text, or nil when there is no
// semantic provider or no symbol there.
func (s *Service) Describe(ctx context.Context, text string, offset int) (*model.SymbolInfo, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	var info *model.SymbolInfo
	err := s.snapshot.Query(ctx, text, func(v model.View) error {
		provider := s.host.Semantic(v.Project.Language())
		if provider == nil {
			return nil
		}
		var err error
		info, err = provider.Describe(ctx, v, offset)
		return err
	})
	return info, err
}
