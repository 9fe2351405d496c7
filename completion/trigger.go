package completion

import "unicode"

// TriggerKind says what caused a completion request.
type TriggerKind uint8

const (
	TriggerInvoke TriggerKind = iota
	TriggerInsertion
	TriggerDeletion
	TriggerOther
)

func (k TriggerKind) String() string {
	switch k {
	case TriggerInvoke:
		return "invoke"
	case TriggerInsertion:
		return "insertion"
	case TriggerDeletion:
		return "deletion"
	}
	return "other"
}

// Trigger is the edit that prompted a completion request.
type Trigger struct {
	Kind TriggerKind
	Char rune
}

// Insertion is the trigger for typing ch.
func Insertion(ch rune) Trigger { return Trigger{Kind: TriggerInsertion, Char: ch} }

// Deletion is the trigger for deleting ch.
func Deletion(ch rune) Trigger { return Trigger{Kind: TriggerDeletion, Char: ch} }

// Invoke is an explicit request with no edit.
func Invoke() Trigger { return Trigger{Kind: TriggerInvoke} }

// Accepts reports whether the trigger should produce completions: only an
// inserted or deleted letter, digit or '.' does.
func (t Trigger) Accepts() bool {
	if t.Kind != TriggerInsertion && t.Kind != TriggerDeletion {
		return false
	}
	return unicode.IsLetter(t.Char) || unicode.IsDigit(t.Char) || t.Char == '.'
}
