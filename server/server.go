// Package server exposes Lua sessions over Connect RPC and the Language
// Server Protocol. Every bridge.Session lives on its own worker goroutine.
package server

import (
	"fmt"
	"net/http"
	"time"

	"connectrpc.com/connect"

	"github.com/chazu/luakit/bridge"
)

// Server serves the session and evaluation services. It speaks the
// Connect, gRPC and gRPC-Web protocols on one handler.
type Server struct {
	sessions *SessionStore
	checker  *Worker
	mux      *http.ServeMux

	stopSweeper func()
}

// Option configures a Server.
type Option func(*serverConfig)

type serverConfig struct {
	factory       SessionFactory
	sweepInterval time.Duration
	idleTTL       time.Duration
}

// WithSessionFactory sets how sessions are created. The default is
// bridge.New with no options.
func WithSessionFactory(factory SessionFactory) Option {
	return func(c *serverConfig) { c.factory = factory }
}

// WithSweep sets how often idle sessions are swept and how long a session
// may stay unused. A zero interval disables sweeping.
func WithSweep(interval, ttl time.Duration) Option {
	return func(c *serverConfig) {
		c.sweepInterval = interval
		c.idleTTL = ttl
	}
}

// New creates a Server.
func New(opts ...Option) (*Server, error) {
	cfg := &serverConfig{
		factory:       func() (*bridge.Session, error) { return bridge.New() },
		sweepInterval: 5 * time.Minute,
		idleTTL:       30 * time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	// Check only compiles, so its Session needs no libraries.
	checker, err := NewWorker(func() (*bridge.Session, error) {
		return bridge.New(bridge.WithoutStdlib())
	})
	if err != nil {
		return nil, err
	}

	sessions := NewSessionStore(cfg.factory)
	s := &Server{
		sessions: sessions,
		checker:  checker,
		mux:      http.NewServeMux(),
	}

	sessionSvc := NewSessionService(sessions)
	evalSvc := NewEvalService(sessions, checker)

	s.mux.Handle(SessionServiceCreateProcedure, connect.NewUnaryHandler(SessionServiceCreateProcedure, sessionSvc.CreateSession))
	s.mux.Handle(SessionServiceDestroyProcedure, connect.NewUnaryHandler(SessionServiceDestroyProcedure, sessionSvc.DestroySession))
	s.mux.Handle(SessionServiceListProcedure, connect.NewUnaryHandler(SessionServiceListProcedure, sessionSvc.ListSessions))
	s.mux.Handle(EvalServiceRunProcedure, connect.NewUnaryHandler(EvalServiceRunProcedure, evalSvc.Run))
	s.mux.Handle(EvalServiceCallProcedure, connect.NewUnaryHandler(EvalServiceCallProcedure, evalSvc.Call))
	s.mux.Handle(EvalServiceCheckProcedure, connect.NewUnaryHandler(EvalServiceCheckProcedure, evalSvc.Check))

	if cfg.sweepInterval > 0 {
		s.stopSweeper = sessions.StartSweeper(cfg.sweepInterval, cfg.idleTTL)
	}

	return s, nil
}

// Handler returns the HTTP handler serving every procedure.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Sessions returns the server's session store.
func (s *Server) Sessions() *SessionStore {
	return s.sessions
}

// ListenAndServe starts the HTTP server on the given address.
// The address should be in the form "host:port" or ":port".
func (s *Server) ListenAndServe(addr string) error {
	fmt.Printf("luakit server listening on %s\n", addr)
	fmt.Printf("  Connect (HTTP/JSON): http://%s%s\n", addr, EvalServiceRunProcedure)
	log.Infof("listening on %s", addr)
	return http.ListenAndServe(addr, s.mux)
}

// Stop shuts down the sweeper and destroys every session.
func (s *Server) Stop() {
	if s.stopSweeper != nil {
		s.stopSweeper()
	}
	s.sessions.Close()
	s.checker.Stop()
}
