package server

import (
	"net/http/httptest"
	"strings"
	"testing"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"
)

// ---------------------------------------------------------------------------
// Run
// ---------------------------------------------------------------------------

func TestRun_ThenCall(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t)

	_, err := env.Eval.Run(bg(), connectReq(mustStruct(t, map[string]any{
		"session_id": id,
		"source":     "function add(a, b) return a + b end",
	})))
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	resp, err := env.Eval.Call(bg(), connectReq(mustStruct(t, map[string]any{
		"session_id": id,
		"function":   "add",
		"args":       []any{2, 3},
	})))
	if err != nil {
		t.Fatalf("Call returned error: %v", err)
	}
	if got := resp.Msg.GetNumberValue(); got != 5 {
		t.Errorf("add(2, 3) = %v, want 5", got)
	}
}

func TestRun_SyntaxError(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t)

	_, err := env.Eval.Run(bg(), connectReq(mustStruct(t, map[string]any{
		"session_id": id,
		"source":     "function (",
	})))
	if connectCode(err) != connect.CodeInvalidArgument {
		t.Errorf("code = %v, want InvalidArgument", connectCode(err))
	}
}

func TestRun_RuntimeError(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t)

	_, err := env.Eval.Run(bg(), connectReq(mustStruct(t, map[string]any{
		"session_id": id,
		"source":     `error("nope")`,
	})))
	if connectCode(err) != connect.CodeAborted {
		t.Errorf("code = %v, want Aborted", connectCode(err))
	}
	if err == nil || !strings.Contains(err.Error(), "nope") {
		t.Errorf("error %v should carry the script message", err)
	}
}

func TestRun_MissingSource(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t)

	_, err := env.Eval.Run(bg(), connectReq(mustStruct(t, map[string]any{"session_id": id})))
	if connectCode(err) != connect.CodeInvalidArgument {
		t.Errorf("code = %v, want InvalidArgument", connectCode(err))
	}
}

func TestRun_EmptySource(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t)

	_, err := env.Eval.Run(bg(), connectReq(mustStruct(t, map[string]any{
		"session_id": id,
		"source":     "",
	})))
	if err != nil {
		t.Errorf("Run(empty source) = %v, want success", err)
	}
}

func TestRun_NonStringSource(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t)

	_, err := env.Eval.Run(bg(), connectReq(mustStruct(t, map[string]any{
		"session_id": id,
		"source":     42,
	})))
	if connectCode(err) != connect.CodeInvalidArgument {
		t.Errorf("code = %v, want InvalidArgument", connectCode(err))
	}
}

func TestRun_UnknownSession(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Eval.Run(bg(), connectReq(mustStruct(t, map[string]any{
		"session_id": "s-404",
		"source":     "x = 1",
	})))
	if connectCode(err) != connect.CodeNotFound {
		t.Errorf("code = %v, want NotFound", connectCode(err))
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	env := newTestEnv(t)
	a := env.createSession(t)
	b := env.createSession(t)

	if _, err := env.Eval.Run(bg(), connectReq(mustStruct(t, map[string]any{
		"session_id": a,
		"source":     "function only_in_a() return 1 end",
	}))); err != nil {
		t.Fatal(err)
	}
	_, err := env.Eval.Call(bg(), connectReq(mustStruct(t, map[string]any{
		"session_id": b,
		"function":   "only_in_a",
	})))
	if connectCode(err) != connect.CodeNotFound {
		t.Errorf("code = %v, want NotFound", connectCode(err))
	}
}

// ---------------------------------------------------------------------------
// Call
// ---------------------------------------------------------------------------

func TestCall_HostFunction(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t)

	resp, err := env.Eval.Call(bg(), connectReq(mustStruct(t, map[string]any{
		"session_id": id,
		"function":   "double",
		"args":       []any{21},
	})))
	if err != nil {
		t.Fatal(err)
	}
	if got := resp.Msg.GetNumberValue(); got != 42 {
		t.Errorf("double(21) = %v, want 42", got)
	}
}

func TestCall_Multi(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t)
	if _, err := env.Eval.Run(bg(), connectReq(mustStruct(t, map[string]any{
		"session_id": id,
		"source":     "function pair() return 'a', true end",
	}))); err != nil {
		t.Fatal(err)
	}

	resp, err := env.Eval.Call(bg(), connectReq(mustStruct(t, map[string]any{
		"session_id": id,
		"function":   "pair",
		"multi":      true,
	})))
	if err != nil {
		t.Fatal(err)
	}
	list := resp.Msg.GetListValue().GetValues()
	if len(list) != 2 {
		t.Fatalf("got %d results, want 2", len(list))
	}
	if list[0].GetStringValue() != "a" || !list[1].GetBoolValue() {
		t.Errorf("pair() = %v", list)
	}
}

func TestCall_Errors(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t)
	if _, err := env.Eval.Run(bg(), connectReq(mustStruct(t, map[string]any{
		"session_id": id,
		"source":     "function tbl() return {} end",
	}))); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		fields map[string]any
		want   connect.Code
	}{
		{"missing function", map[string]any{"session_id": id}, connect.CodeInvalidArgument},
		{"unbound", map[string]any{"session_id": id, "function": "nope"}, connect.CodeNotFound},
		{"table result", map[string]any{"session_id": id, "function": "tbl"}, connect.CodeUnimplemented},
		{"list argument", map[string]any{"session_id": id, "function": "tbl", "args": []any{[]any{1}}}, connect.CodeInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.Eval.Call(bg(), connectReq(mustStruct(t, tt.fields)))
			if connectCode(err) != tt.want {
				t.Errorf("code = %v, want %v (err %v)", connectCode(err), tt.want, err)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Check
// ---------------------------------------------------------------------------

func TestCheck_Valid(t *testing.T) {
	env := newTestEnv(t)
	resp, err := env.Eval.Check(bg(), connectReq(mustStruct(t, map[string]any{
		"source": "local x = 1\nreturn x",
	})))
	if err != nil {
		t.Fatal(err)
	}
	if !resp.Msg.GetFields()["valid"].GetBoolValue() {
		t.Error("valid = false, want true")
	}
}

func TestCheck_Invalid(t *testing.T) {
	env := newTestEnv(t)
	resp, err := env.Eval.Check(bg(), connectReq(mustStruct(t, map[string]any{
		"source":     "local x = 1\nlocal = 2",
		"chunk_name": "edit.lua",
	})))
	if err != nil {
		t.Fatal(err)
	}
	fields := resp.Msg.GetFields()
	if fields["valid"].GetBoolValue() {
		t.Error("valid = true, want false")
	}
	if line := fields["line"].GetNumberValue(); line != 2 {
		t.Errorf("line = %v, want 2", line)
	}
	if msg := fields["message"].GetStringValue(); msg == "" || strings.Contains(msg, "edit.lua") {
		t.Errorf("message = %q, want the bare compiler message", msg)
	}
}

// ---------------------------------------------------------------------------
// Over HTTP
// ---------------------------------------------------------------------------

func TestServerOverHTTP(t *testing.T) {
	srv, err := New(WithSessionFactory(testFactory), WithSweep(0, 0))
	if err != nil {
		t.Fatal(err)
	}
	defer srv.Stop()
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	create := connect.NewClient[structpb.Struct, structpb.Struct](ts.Client(), ts.URL+SessionServiceCreateProcedure)
	run := connect.NewClient[structpb.Struct, structpb.Struct](ts.Client(), ts.URL+EvalServiceRunProcedure)
	call := connect.NewClient[structpb.Struct, structpb.Value](ts.Client(), ts.URL+EvalServiceCallProcedure, connect.WithProtoJSON())

	created, err := create.CallUnary(bg(), connectReq(mustStruct(t, map[string]any{"name": "http"})))
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	id := created.Msg.GetFields()["session_id"].GetStringValue()

	if _, err := run.CallUnary(bg(), connectReq(mustStruct(t, map[string]any{
		"session_id": id,
		"source":     "function greet(name) return 'hi ' .. name end",
	}))); err != nil {
		t.Fatalf("Run: %v", err)
	}

	resp, err := call.CallUnary(bg(), connectReq(mustStruct(t, map[string]any{
		"session_id": id,
		"function":   "greet",
		"args":       []any{"lua"},
	})))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if got := resp.Msg.GetStringValue(); got != "hi lua" {
		t.Errorf("greet = %q, want %q", got, "hi lua")
	}

	_, err = call.CallUnary(bg(), connectReq(mustStruct(t, map[string]any{
		"session_id": id,
		"function":   "missing",
	})))
	if connectCode(err) != connect.CodeNotFound {
		t.Errorf("code = %v, want NotFound", connectCode(err))
	}
	if srv.Sessions().Len() != 1 {
		t.Errorf("Len = %d, want 1", srv.Sessions().Len())
	}
}
