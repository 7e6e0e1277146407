package server

import (
	"context"
	"fmt"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"
)

// SessionService procedure paths.
const (
	SessionServiceName             = "luakit.v1.SessionService"
	SessionServiceCreateProcedure  = "/" + SessionServiceName + "/CreateSession"
	SessionServiceDestroyProcedure = "/" + SessionServiceName + "/DestroySession"
	SessionServiceListProcedure    = "/" + SessionServiceName + "/ListSessions"
)

// SessionService implements the SessionService Connect handlers. Messages
// are structpb.Struct so no generated code is needed.
type SessionService struct {
	sessions *SessionStore
}

// NewSessionService creates a SessionService.
func NewSessionService(sessions *SessionStore) *SessionService {
	return &SessionService{sessions: sessions}
}

// CreateSession creates a new Lua session. Request: {name?}.
// Response: {session_id}.
func (s *SessionService) CreateSession(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	session, err := s.sessions.Create(stringField(req.Msg, "name"))
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	resp, err := structpb.NewStruct(map[string]any{"session_id": session.ID})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(resp), nil
}

// DestroySession destroys a session and releases everything it holds.
// Request: {session_id}.
func (s *SessionService) DestroySession(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	id, err := requireField(req.Msg, "session_id")
	if err != nil {
		return nil, err
	}
	if !s.sessions.Destroy(id) {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("session %q: %w", id, ErrSessionNotFound))
	}
	return connect.NewResponse(&structpb.Struct{}), nil
}

// ListSessions returns {sessions: [{session_id, name}]}.
func (s *SessionService) ListSessions(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	var list []any
	for _, session := range s.sessions.List() {
		list = append(list, map[string]any{
			"session_id": session.ID,
			"name":       session.Name,
		})
	}
	resp, err := structpb.NewStruct(map[string]any{"sessions": list})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(resp), nil
}
