package script

import "fmt"

// Severity ranks a diagnostic. Higher is worse.
type Severity uint8

const (
	SevInfo Severity = iota
	SevWarning
	SevError
)

func (s Severity) String() string {
	switch s {
	case SevInfo:
		return "info"
	case SevWarning:
		return "warning"
	case SevError:
		return "error"
	}
	return fmt.Sprintf("severity(%d)", s)
}

// Position is a 1-based line and column inside a fragment. The zero value
// means the toolkit did not report one.
type Position struct {
	Line   int
	Column int
}

func (p Position) IsValid() bool { return p.Line > 0 }

// Diagnostic is a compiler message about a fragment.
type Diagnostic struct {
	Severity Severity
	Message  string
	Pos      Position
}

func (d Diagnostic) String() string {
	if d.Pos.IsValid() {
		return fmt.Sprintf("%d:%d: %s: %s", d.Pos.Line, d.Pos.Column, d.Severity, d.Message)
	}
	return fmt.Sprintf("%s: %s", d.Severity, d.Message)
}

// Errorf builds an error-severity diagnostic with no position.
func Errorf(format string, args ...any) Diagnostic {
	return Diagnostic{Severity: SevError, Message: fmt.Sprintf(format, args...)}
}

// HasErrors reports whether any diagnostic has error severity.
func HasErrors(diags []Diagnostic) bool {
	for i := range diags {
		if diags[i].Severity >= SevError {
			return true
		}
	}
	return false
}
