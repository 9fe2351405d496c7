package server

import (
	"context"
	"strings"

	"connectrpc.com/connect"
)

// Client calls an evaluation server.
type Client struct {
	createSession   *connect.Client[CreateSessionRequest, CreateSessionResponse]
	destroySession  *connect.Client[DestroySessionRequest, DestroySessionResponse]
	evaluate        *connect.Client[EvaluateRequest, EvaluateResponse]
	complete        *connect.Client[CompleteRequest, CompleteResponse]
	applyCompletion *connect.Client[ApplyCompletionRequest, ApplyCompletionResponse]
	describe        *connect.Client[DescribeRequest, DescribeResponse]
}

// NewClient creates a client for the server at baseURL, e.g.
// "http://localhost:7411".
func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(jsonCodec{})}, opts...)
	return &Client{
		createSession:   connect.NewClient[CreateSessionRequest, CreateSessionResponse](httpClient, baseURL+CreateSessionProcedure, opts...),
		destroySession:  connect.NewClient[DestroySessionRequest, DestroySessionResponse](httpClient, baseURL+DestroySessionProcedure, opts...),
		evaluate:        connect.NewClient[EvaluateRequest, EvaluateResponse](httpClient, baseURL+EvaluateProcedure, opts...),
		complete:        connect.NewClient[CompleteRequest, CompleteResponse](httpClient, baseURL+CompleteProcedure, opts...),
		applyCompletion: connect.NewClient[ApplyCompletionRequest, ApplyCompletionResponse](httpClient, baseURL+ApplyCompletionProcedure, opts...),
		describe:        connect.NewClient[DescribeRequest, DescribeResponse](httpClient, baseURL+DescribeProcedure, opts...),
	}
}

func (c *Client) CreateSession(ctx context.Context, req *CreateSessionRequest) (*CreateSessionResponse, error) {
	return unary(ctx, c.createSession, req)
}

func (c *Client) DestroySession(ctx context.Context, req *DestroySessionRequest) (*DestroySessionResponse, error) {
	return unary(ctx, c.destroySession, req)
}

func (c *Client) Evaluate(ctx context.Context, req *EvaluateRequest) (*EvaluateResponse, error) {
	return unary(ctx, c.evaluate, req)
}

func (c *Client) Complete(ctx context.Context, req *CompleteRequest) (*CompleteResponse, error) {
	return unary(ctx, c.complete, req)
}

func (c *Client) ApplyCompletion(ctx context.Context, req *ApplyCompletionRequest) (*ApplyCompletionResponse, error) {
	return unary(ctx, c.applyCompletion, req)
}

func (c *Client) Describe(ctx context.Context, req *DescribeRequest) (*DescribeResponse, error) {
	return unary(ctx, c.describe, req)
}

func unary[Req, Res any](ctx context.Context, c *connect.Client[Req, Res], req *Req) (*Res, error) {
	resp, err := c.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}
