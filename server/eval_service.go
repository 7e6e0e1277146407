package server

import (
	"context"
	"errors"
	"fmt"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/chazu/luakit/bridge"
	"github.com/chazu/luakit/value"
)

// EvalService procedure paths.
const (
	EvalServiceName           = "luakit.v1.EvalService"
	EvalServiceRunProcedure   = "/" + EvalServiceName + "/Run"
	EvalServiceCallProcedure  = "/" + EvalServiceName + "/Call"
	EvalServiceCheckProcedure = "/" + EvalServiceName + "/Check"
)

// EvalService implements the EvalService Connect handlers.
type EvalService struct {
	sessions *SessionStore
	checker  *Worker
}

// NewEvalService creates an EvalService. checker owns the scratch Session
// used by Check.
func NewEvalService(sessions *SessionStore, checker *Worker) *EvalService {
	return &EvalService{
		sessions: sessions,
		checker:  checker,
	}
}

func (s *EvalService) session(msg *structpb.Struct) (*Session, error) {
	id, err := requireField(msg, "session_id")
	if err != nil {
		return nil, err
	}
	session, ok := s.sessions.Get(id)
	if !ok {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("session %q: %w", id, ErrSessionNotFound))
	}
	return session, nil
}

// Run executes a chunk in a session. Request: {session_id, source}.
func (s *EvalService) Run(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	session, err := s.session(req.Msg)
	if err != nil {
		return nil, err
	}
	source, err := requirePresent(req.Msg, "source")
	if err != nil {
		return nil, err
	}

	_, err = session.Worker.Do(func(bs *bridge.Session) (interface{}, error) {
		return nil, bs.Run(source)
	})
	if err != nil {
		log.Warningf("run in %s: %v", session.ID, err)
		return nil, connectError(err)
	}
	return connect.NewResponse(&structpb.Struct{}), nil
}

// Call invokes a global function. Request: {session_id, function, args?,
// multi?}. The response is the first result, or a list of every result
// when multi is true.
func (s *EvalService) Call(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Value], error) {
	session, err := s.session(req.Msg)
	if err != nil {
		return nil, err
	}
	name, err := requireField(req.Msg, "function")
	if err != nil {
		return nil, err
	}
	args, err := fromProtoList(req.Msg.GetFields()["args"].GetListValue())
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	multi := boolField(req.Msg, "multi")

	result, err := session.Worker.Do(func(bs *bridge.Session) (interface{}, error) {
		if multi {
			return bs.CallMulti(name, args...)
		}
		return bs.Call(name, args...)
	})
	if err != nil {
		log.Warningf("call %s in %s: %v", name, session.ID, err)
		return nil, connectError(err)
	}

	if multi {
		return connect.NewResponse(toProtoList(result.([]value.Value))), nil
	}
	return connect.NewResponse(toProto(result.(value.Value))), nil
}

// Check compiles source without running it. Request: {source, chunk_name?}.
// Response: {valid, message?, line?}. A syntax error is a successful
// response with valid false.
func (s *EvalService) Check(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	source, err := requirePresent(req.Msg, "source")
	if err != nil {
		return nil, err
	}
	chunkName := stringField(req.Msg, "chunk_name")

	_, err = s.checker.Do(func(bs *bridge.Session) (interface{}, error) {
		return nil, bs.Check(source, chunkName)
	})

	fields := map[string]any{"valid": err == nil}
	if err != nil {
		if !errors.Is(err, bridge.ErrLoad) {
			return nil, connectError(err)
		}
		line, msg := parseLoadError(err)
		fields["message"] = msg
		if line > 0 {
			fields["line"] = line
		}
	}
	resp, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(resp), nil
}
