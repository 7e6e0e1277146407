package server

import (
	"context"
	"testing"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/chazu/luakit/bridge"
	"github.com/chazu/luakit/value"
)

// ---------------------------------------------------------------------------
// Shared test infrastructure for server package tests.
// ---------------------------------------------------------------------------

// testEnv bundles a session store, a checker worker and both services.
type testEnv struct {
	Sessions *SessionStore
	Checker  *Worker
	Eval     *EvalService
	Session  *SessionService
}

// testFactory creates sessions with a double(x) host function registered.
func testFactory() (*bridge.Session, error) {
	s, err := bridge.New()
	if err != nil {
		return nil, err
	}
	err = s.Register("double", func(s *bridge.Session) (int, error) {
		arg, err := s.Decode(1)
		if err != nil {
			return 0, err
		}
		n, _ := arg.AsInteger()
		return 1, s.Push(value.Integer(n * 2))
	})
	if err != nil {
		s.Destroy()
		return nil, err
	}
	return s, nil
}

// newTestEnv creates an isolated environment and stops it when the test ends.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	checker, err := NewWorker(func() (*bridge.Session, error) {
		return bridge.New(bridge.WithoutStdlib())
	})
	if err != nil {
		t.Fatalf("NewWorker: %v", err)
	}
	sessions := NewSessionStore(testFactory)
	env := &testEnv{
		Sessions: sessions,
		Checker:  checker,
		Eval:     NewEvalService(sessions, checker),
		Session:  NewSessionService(sessions),
	}
	t.Cleanup(func() {
		sessions.Close()
		checker.Stop()
	})
	return env
}

// createSession creates a session through the service and returns its ID.
func (e *testEnv) createSession(t *testing.T) string {
	t.Helper()
	resp, err := e.Session.CreateSession(bg(), connectReq(mustStruct(t, nil)))
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	id := resp.Msg.GetFields()["session_id"].GetStringValue()
	if id == "" {
		t.Fatal("CreateSession returned no session_id")
	}
	return id
}

// ---------------------------------------------------------------------------
// Request builders.
// ---------------------------------------------------------------------------

func connectReq[T any](msg *T) *connect.Request[T] {
	return connect.NewRequest(msg)
}

func mustStruct(t *testing.T, fields map[string]any) *structpb.Struct {
	t.Helper()
	if fields == nil {
		return &structpb.Struct{}
	}
	s, err := structpb.NewStruct(fields)
	if err != nil {
		t.Fatalf("structpb.NewStruct: %v", err)
	}
	return s
}

func connectCode(err error) connect.Code {
	return connect.CodeOf(err)
}

func bg() context.Context {
	return context.Background()
}
