package server

import (
	"errors"
	"fmt"
	"math"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/chazu/luakit/bridge"
	"github.com/chazu/luakit/value"
)

// toProto converts a Value to its JSON-shaped protobuf form. Integers and
// numbers both become number values.
func toProto(v value.Value) *structpb.Value {
	switch v.Kind() {
	case value.KindBool:
		b, _ := v.AsBool()
		return structpb.NewBoolValue(b)
	case value.KindInteger:
		i, _ := v.AsInteger()
		return structpb.NewNumberValue(float64(i))
	case value.KindNumber:
		n, _ := v.AsNumber()
		return structpb.NewNumberValue(n)
	case value.KindText:
		t, _ := v.AsText()
		return structpb.NewStringValue(t)
	default:
		return structpb.NewNullValue()
	}
}

func toProtoList(vs []value.Value) *structpb.Value {
	list := &structpb.ListValue{Values: make([]*structpb.Value, len(vs))}
	for i, v := range vs {
		list.Values[i] = toProto(v)
	}
	return structpb.NewListValue(list)
}

// fromProto converts a protobuf value to a Value. A whole number within
// int64 range decodes as an Integer. Lists and structs are rejected.
func fromProto(pv *structpb.Value) (value.Value, error) {
	if pv == nil {
		return value.Nil(), nil
	}
	switch k := pv.Kind.(type) {
	case nil, *structpb.Value_NullValue:
		return value.Nil(), nil
	case *structpb.Value_BoolValue:
		return value.Bool(k.BoolValue), nil
	case *structpb.Value_StringValue:
		return value.Text(k.StringValue), nil
	case *structpb.Value_NumberValue:
		n := k.NumberValue
		if n == math.Trunc(n) && n >= math.MinInt64 && n < math.MaxInt64 {
			return value.Integer(int64(n)), nil
		}
		return value.Number(n), nil
	case *structpb.Value_ListValue:
		return value.Nil(), fmt.Errorf("%w: list", bridge.ErrUnsupportedType)
	case *structpb.Value_StructValue:
		return value.Nil(), fmt.Errorf("%w: struct", bridge.ErrUnsupportedType)
	default:
		return value.Nil(), fmt.Errorf("%w: %T", bridge.ErrUnsupportedType, k)
	}
}

func fromProtoList(list *structpb.ListValue) ([]value.Value, error) {
	if list == nil {
		return nil, nil
	}
	vs := make([]value.Value, len(list.Values))
	for i, pv := range list.Values {
		v, err := fromProto(pv)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		vs[i] = v
	}
	return vs, nil
}

// stringField returns a string field of a request struct, or "".
func stringField(msg *structpb.Struct, name string) string {
	if msg == nil {
		return ""
	}
	return msg.GetFields()[name].GetStringValue()
}

func boolField(msg *structpb.Struct, name string) bool {
	if msg == nil {
		return false
	}
	return msg.GetFields()[name].GetBoolValue()
}

func requireField(msg *structpb.Struct, name string) (string, error) {
	v := stringField(msg, name)
	if v == "" {
		return "", connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("%s is required", name))
	}
	return v, nil
}

// requirePresent is requireField for fields where the empty string is a
// valid value, such as Lua source.
func requirePresent(msg *structpb.Struct, name string) (string, error) {
	f, ok := msg.GetFields()[name]
	if !ok {
		return "", connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("%s is required", name))
	}
	if _, isString := f.GetKind().(*structpb.Value_StringValue); !isString {
		return "", connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("%s must be a string", name))
	}
	return f.GetStringValue(), nil
}

// connectError maps bridge and server failures to Connect codes.
func connectError(err error) error {
	var cv *bridge.ContractViolation
	code := connect.CodeInternal
	switch {
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, bridge.ErrUnboundFunction):
		code = connect.CodeNotFound
	case errors.Is(err, bridge.ErrLoad):
		code = connect.CodeInvalidArgument
	case errors.Is(err, bridge.ErrRuntime):
		code = connect.CodeAborted
	case errors.Is(err, bridge.ErrUnsupportedType):
		code = connect.CodeUnimplemented
	case errors.Is(err, bridge.ErrFaulted), errors.As(err, &cv):
		code = connect.CodeFailedPrecondition
	case errors.Is(err, ErrWorkerStopped):
		code = connect.CodeUnavailable
	}
	return connect.NewError(code, err)
}
