// Package server exposes evaluators over Connect. Every client session owns
// one Full evaluator; the service speaks Connect, gRPC and gRPC-Web with a
// plain JSON codec on the same port.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/tliron/commonlog"

	"github.com/chazu/replkit/evaluator"
)

var log = commonlog.GetLogger("replkit.server")

// ServiceName is the fully qualified name of the evaluation service.
const ServiceName = "replkit.v1.EvaluationService"

// Procedure paths served by the evaluation service.
const (
	CreateSessionProcedure   = "/" + ServiceName + "/CreateSession"
	DestroySessionProcedure  = "/" + ServiceName + "/DestroySession"
	EvaluateProcedure        = "/" + ServiceName + "/Evaluate"
	CompleteProcedure        = "/" + ServiceName + "/Complete"
	ApplyCompletionProcedure = "/" + ServiceName + "/ApplyCompletion"
	DescribeProcedure        = "/" + ServiceName + "/Describe"
)

// Server is the evaluation server.
type Server struct {
	sessions *SessionStore
	mux      *http.ServeMux
	http     *http.Server

	stopSweeper func()
}

// ServerOption configures a Server.
type ServerOption func(*serverConfig)

type serverConfig struct {
	evaluator     evaluator.Options
	sessionTTL    time.Duration
	sweepInterval time.Duration
}

// WithEvaluatorOptions sets the options every session's evaluator is
// created with.
func WithEvaluatorOptions(opts evaluator.Options) ServerOption {
	return func(c *serverConfig) { c.evaluator = opts }
}

// WithSessionTTL sets how long a session may stay idle and how often idle
// sessions are looked for. A zero interval disables sweeping.
func WithSessionTTL(ttl, interval time.Duration) ServerOption {
	return func(c *serverConfig) {
		c.sessionTTL = ttl
		c.sweepInterval = interval
	}
}

// New creates a Server.
func New(opts ...ServerOption) *Server {
	cfg := &serverConfig{
		evaluator:     evaluator.Options{Stdlib: true},
		sessionTTL:    30 * time.Minute,
		sweepInterval: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	sessions := NewSessionStore(cfg.evaluator)
	s := &Server{
		sessions: sessions,
		mux:      http.NewServeMux(),
	}
	s.http = &http.Server{Handler: s.mux}

	svc := NewEvalService(sessions)
	handlerOpts := []connect.HandlerOption{connect.WithCodec(jsonCodec{})}

	s.mux.Handle(CreateSessionProcedure, connect.NewUnaryHandler(CreateSessionProcedure, svc.CreateSession, handlerOpts...))
	s.mux.Handle(DestroySessionProcedure, connect.NewUnaryHandler(DestroySessionProcedure, svc.DestroySession, handlerOpts...))
	s.mux.Handle(EvaluateProcedure, connect.NewUnaryHandler(EvaluateProcedure, svc.Evaluate, handlerOpts...))
	s.mux.Handle(CompleteProcedure, connect.NewUnaryHandler(CompleteProcedure, svc.Complete, handlerOpts...))
	s.mux.Handle(ApplyCompletionProcedure, connect.NewUnaryHandler(ApplyCompletionProcedure, svc.ApplyCompletion, handlerOpts...))
	s.mux.Handle(DescribeProcedure, connect.NewUnaryHandler(DescribeProcedure, svc.Describe, handlerOpts...))

	if cfg.sweepInterval > 0 && cfg.sessionTTL > 0 {
		s.stopSweeper = sessions.StartSweeper(cfg.sweepInterval, cfg.sessionTTL)
	}

	return s
}

// Handler returns the HTTP handler serving every procedure.
func (s *Server) Handler() http.Handler { return s.mux }

// Sessions returns the session store.
func (s *Server) Sessions() *SessionStore { return s.sessions }

// ListenAndServe starts the HTTP server on the given address.
// The address should be in the form "host:port" or ":port".
// It returns nil after Shutdown, also when Shutdown came first.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	log.Noticef("replkit server listening on %s", ln.Addr())
	log.Infof("  Connect (HTTP/JSON): http://%s%s", ln.Addr(), EvaluateProcedure)
	if err := s.http.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, waits for running ones and closes
// every session.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.http.Shutdown(ctx)
	s.Stop()
	return err
}

// Stop stops the sweeper and closes every session.
func (s *Server) Stop() {
	if s.stopSweeper != nil {
		s.stopSweeper()
	}
	s.sessions.CloseAll()
}
