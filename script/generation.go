package script

// Unit is the toolkit's handle for a compiled fragment. The chain only
// stores it and hands it back to the toolkit.
type Unit any

// Generation is one immutable step of the chain: a fragment compiled on top
// of its predecessor, together with what running it produced.
type Generation struct {
	seq      int
	fragment string
	unit     Unit
	diags    []Diagnostic
	value    any
	fault    error
	imports  ImportSet
	prev     *Generation
}

// Seq is the generation's position in the chain; the root is 0.
func (g *Generation) Seq() int { return g.seq }

func (g *Generation) Fragment() string { return g.fragment }

func (g *Generation) Unit() Unit { return g.unit }

// Diagnostics returns the non-error diagnostics reported when compiling the
// fragment.
func (g *Generation) Diagnostics() []Diagnostic { return g.diags }

func (g *Generation) Value() any { return g.value }

// Fault is the runtime fault raised while running the fragment, if any.
func (g *Generation) Fault() error { return g.fault }

func (g *Generation) Imports() ImportSet { return g.imports }

// Previous returns the generation this one extends, or nil for the root.
func (g *Generation) Previous() *Generation { return g.prev }

// Outcome says which field of a Result is meaningful.
type Outcome uint8

const (
	// OutcomeValue means the fragment ran to completion. Value may be nil
	// when the fragment produced nothing, e.g. a declaration.
	OutcomeValue Outcome = iota
	// OutcomeDiagnostics means compilation failed; nothing ran.
	OutcomeDiagnostics
	// OutcomeFault means the fragment compiled but faulted while running.
	OutcomeFault
)

func (o Outcome) String() string {
	switch o {
	case OutcomeValue:
		return "value"
	case OutcomeDiagnostics:
		return "diagnostics"
	case OutcomeFault:
		return "fault"
	}
	return "unknown"
}

// Result is what evaluating one fragment returns. Diagnostics is never nil.
type Result struct {
	Value       any
	Diagnostics []Diagnostic
	Fault       error

	// Generation is the generation the fragment produced, nil when
	// compilation failed and the chain did not advance.
	Generation *Generation
}

// Outcome classifies the result.
func (r *Result) Outcome() Outcome {
	switch {
	case HasErrors(r.Diagnostics):
		return OutcomeDiagnostics
	case r.Fault != nil:
		return OutcomeFault
	}
	return OutcomeValue
}

// FaultResult builds a result for a fault raised outside the chain.
func FaultResult(fault error) *Result {
	return &Result{Diagnostics: []Diagnostic{}, Fault: fault}
}
