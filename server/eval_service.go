package server

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"connectrpc.com/connect"

	"github.com/chazu/replkit/bridge"
	"github.com/chazu/replkit/completion"
	"github.com/chazu/replkit/evaluator"
	"github.com/chazu/replkit/model"
	"github.com/chazu/replkit/script"
)

// EvalService implements the EvaluationService Connect handlers.
type EvalService struct {
	sessions *SessionStore
}

// NewEvalService creates an EvalService.
func NewEvalService(sessions *SessionStore) *EvalService {
	return &EvalService{sessions: sessions}
}

// CreateSession starts a new evaluator.
func (s *EvalService) CreateSession(
	ctx context.Context,
	req *connect.Request[CreateSessionRequest],
) (*connect.Response[CreateSessionResponse], error) {
	session, err := s.sessions.Create(req.Msg.Name)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(&CreateSessionResponse{
		SessionID: session.ID,
		Imports:   nonNil(session.Eval.Imports()),
	}), nil
}

// DestroySession closes a session's evaluator.
func (s *EvalService) DestroySession(
	ctx context.Context,
	req *connect.Request[DestroySessionRequest],
) (*connect.Response[DestroySessionResponse], error) {
	if req.Msg.SessionID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("session id is required"))
	}
	if !s.sessions.Destroy(req.Msg.SessionID) {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("session %q not found", req.Msg.SessionID))
	}
	return connect.NewResponse(&DestroySessionResponse{}), nil
}

// Evaluate compiles and runs a fragment in a session.
func (s *EvalService) Evaluate(
	ctx context.Context,
	req *connect.Request[EvaluateRequest],
) (*connect.Response[EvaluateResponse], error) {
	session, err := s.session(req.Msg.SessionID)
	if err != nil {
		return nil, err
	}

	result, err := session.Eval.EvaluateAsync(ctx, req.Msg.Source).Wait(ctx)
	var perr *bridge.PanicError
	switch {
	case errors.As(err, &perr):
		result = script.FaultResult(perr)
	case err != nil:
		return nil, evalError(ctx, err)
	}

	resp := evaluateResponse(result)
	resp.Output = session.out.take()
	resp.Imports = nonNil(session.Eval.Imports())
	return connect.NewResponse(resp), nil
}

// Complete returns ranked completions at a caret.
func (s *EvalService) Complete(
	ctx context.Context,
	req *connect.Request[CompleteRequest],
) (*connect.Response[CompleteResponse], error) {
	session, err := s.session(req.Msg.SessionID)
	if err != nil {
		return nil, err
	}
	trigger, err := parseTrigger(req.Msg.Trigger, req.Msg.Char)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	if err := checkOffset(req.Msg.Source, req.Msg.Caret); err != nil {
		return nil, err
	}

	items, err := session.Eval.Completions(ctx, req.Msg.Source, req.Msg.Caret, trigger)
	if err != nil {
		return nil, evalError(ctx, err)
	}

	resp := &CompleteResponse{Candidates: make([]Candidate, 0, len(items))}
	for _, item := range items {
		resp.Candidates = append(resp.Candidates, toCandidate(item))
	}
	return connect.NewResponse(resp), nil
}

// ApplyCompletion commits a candidate returned by Complete.
func (s *EvalService) ApplyCompletion(
	ctx context.Context,
	req *connect.Request[ApplyCompletionRequest],
) (*connect.Response[ApplyCompletionResponse], error) {
	session, err := s.session(req.Msg.SessionID)
	if err != nil {
		return nil, err
	}
	if err := checkOffset(req.Msg.Source, req.Msg.Caret); err != nil {
		return nil, err
	}
	item, err := fromCandidate(req.Msg.Item)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	commit, err := singleRune(req.Msg.Commit)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("commit: %w", err))
	}

	source, caret, err := session.Eval.ApplyCompletion(ctx, req.Msg.Source, item, req.Msg.Caret, commit)
	if err != nil {
		return nil, evalError(ctx, err)
	}
	return connect.NewResponse(&ApplyCompletionResponse{Source: source, Caret: caret}), nil
}

// Describe returns the symbol at an offset.
func (s *EvalService) Describe(
	ctx context.Context,
	req *connect.Request[DescribeRequest],
) (*connect.Response[DescribeResponse], error) {
	session, err := s.session(req.Msg.SessionID)
	if err != nil {
		return nil, err
	}
	if err := checkOffset(req.Msg.Source, req.Msg.Offset); err != nil {
		return nil, err
	}

	info, err := session.Eval.Describe(ctx, req.Msg.Source, req.Msg.Offset)
	if err != nil {
		return nil, evalError(ctx, err)
	}
	if info == nil {
		return connect.NewResponse(&DescribeResponse{}), nil
	}
	return connect.NewResponse(&DescribeResponse{
		Found:   true,
		Name:    info.Name,
		Kind:    info.Kind.String(),
		Detail:  info.Detail,
		Package: info.Package,
	}), nil
}

func (s *EvalService) session(id string) (*Session, error) {
	if id == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("session id is required"))
	}
	session, ok := s.sessions.Get(id)
	if !ok {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("session %q not found", id))
	}
	return session, nil
}

// evalError maps evaluator failures onto Connect codes.
func evalError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	case ctx.Err() != nil:
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, evaluator.ErrClosed):
		return connect.NewError(connect.CodeNotFound, err)
	}
	return connect.NewError(connect.CodeInternal, err)
}

func checkOffset(source string, offset int) error {
	if offset < 0 || offset > len(source) {
		return connect.NewError(connect.CodeInvalidArgument,
			fmt.Errorf("offset %d outside source of length %d", offset, len(source)))
	}
	return nil
}

func evaluateResponse(r *script.Result) *EvaluateResponse {
	resp := &EvaluateResponse{
		Outcome:     r.Outcome().String(),
		Diagnostics: make([]Diagnostic, 0, len(r.Diagnostics)),
	}
	for _, d := range r.Diagnostics {
		resp.Diagnostics = append(resp.Diagnostics, Diagnostic{
			Severity: d.Severity.String(),
			Message:  d.Message,
			Line:     d.Pos.Line,
			Column:   d.Pos.Column,
		})
	}
	if r.Fault != nil {
		resp.Fault = r.Fault.Error()
	} else if r.Value != nil {
		resp.Value = fmt.Sprintf("%v", r.Value)
		resp.Type = fmt.Sprintf("%T", r.Value)
	}
	if r.Generation != nil {
		resp.Generation = r.Generation.Seq()
	}
	return resp
}

func parseTrigger(kind, char string) (completion.Trigger, error) {
	switch kind {
	case "", "invoke":
		return completion.Invoke(), nil
	case "insertion", "deletion":
		ch, err := singleRune(char)
		if err != nil {
			return completion.Trigger{}, fmt.Errorf("trigger char: %w", err)
		}
		if kind == "insertion" {
			return completion.Insertion(ch), nil
		}
		return completion.Deletion(ch), nil
	}
	return completion.Trigger{}, fmt.Errorf("unknown trigger %q", kind)
}

// singleRune decodes s as at most one character. Empty means none.
func singleRune(s string) (rune, error) {
	if s == "" {
		return 0, nil
	}
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || size != len(s) {
		return 0, fmt.Errorf("%q is not a single character", s)
	}
	return r, nil
}

func toCandidate(c model.Candidate) Candidate {
	return Candidate{
		DisplayText: c.DisplayText,
		SortText:    c.SortText,
		FilterText:  c.FilterText,
		Kind:        c.Kind.String(),
		Detail:      c.Detail,
		SpanStart:   c.Span.Start,
		SpanLength:  c.Span.Length,
	}
}

func fromCandidate(c Candidate) (model.Candidate, error) {
	kind, ok := model.ParseCandidateKind(c.Kind)
	if !ok {
		return model.Candidate{}, fmt.Errorf("unknown candidate kind %q", c.Kind)
	}
	if c.SpanStart < 0 || c.SpanLength < 0 {
		return model.Candidate{}, fmt.Errorf("invalid candidate span [%d,+%d)", c.SpanStart, c.SpanLength)
	}
	return model.Candidate{
		DisplayText: c.DisplayText,
		SortText:    c.SortText,
		FilterText:  c.FilterText,
		Kind:        kind,
		Detail:      c.Detail,
		Span:        model.Span{Start: c.SpanStart, Length: c.SpanLength},
	}, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
