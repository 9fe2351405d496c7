package server

// Messages exchanged by the evaluation service. They are plain structs
// carried by the JSON codec, so field names are the wire names.

type CreateSessionRequest struct {
	Name string `json:"name,omitempty"`
}

type CreateSessionResponse struct {
	SessionID string   `json:"sessionId"`
	Imports   []string `json:"imports"`
}

type DestroySessionRequest struct {
	SessionID string `json:"sessionId"`
}

type DestroySessionResponse struct{}

type EvaluateRequest struct {
	SessionID string `json:"sessionId"`
	Source    string `json:"source"`
}

type Diagnostic struct {
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Line     int    `json:"line,omitempty"`
	Column   int    `json:"column,omitempty"`
}

type EvaluateResponse struct {
	// Outcome is "value", "diagnostics" or "fault".
	Outcome     string       `json:"outcome"`
	Value       string       `json:"value,omitempty"`
	Type        string       `json:"type,omitempty"`
	Fault       string       `json:"fault,omitempty"`
	Diagnostics []Diagnostic `json:"diagnostics"`
	Output      string       `json:"output,omitempty"`
	Imports     []string     `json:"imports"`
	Generation  int          `json:"generation"`
}

type Candidate struct {
	DisplayText string `json:"displayText"`
	SortText    string `json:"sortText"`
	FilterText  string `json:"filterText"`
	Kind        string `json:"kind"`
	Detail      string `json:"detail,omitempty"`
	SpanStart   int    `json:"spanStart"`
	SpanLength  int    `json:"spanLength"`
}

type CompleteRequest struct {
	SessionID string `json:"sessionId"`
	Source    string `json:"source"`
	Caret     int    `json:"caret"`
	// Trigger is "invoke", "insertion" or "deletion". Char is the typed
	// or deleted character for the latter two.
	Trigger string `json:"trigger"`
	Char    string `json:"char,omitempty"`
}

type CompleteResponse struct {
	Candidates []Candidate `json:"candidates"`
}

type ApplyCompletionRequest struct {
	SessionID string    `json:"sessionId"`
	Source    string    `json:"source"`
	Caret     int       `json:"caret"`
	Item      Candidate `json:"item"`
	Commit    string    `json:"commit,omitempty"`
}

type ApplyCompletionResponse struct {
	Source string `json:"source"`
	Caret  int    `json:"caret"`
}

type DescribeRequest struct {
	SessionID string `json:"sessionId"`
	Source    string `json:"source"`
	Offset    int    `json:"offset"`
}

type DescribeResponse struct {
	Found   bool   `json:"found"`
	Name    string `json:"name,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Detail  string `json:"detail,omitempty"`
	Package string `json:"package,omitempty"`
}
