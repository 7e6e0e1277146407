package bridge

import (
	"fmt"

	"zombiezen.com/go/lua"

	"github.com/chazu/luakit/value"
)

// The stack codec works on the Session's active frame. Push adds exactly
// one slot per value; Decode and DecodeRange never change the depth. Callers
// track depth themselves and Pop what they no longer need.

// Push encodes v onto the top of the stack.
func (s *Session) Push(v value.Value) error {
	s.live("push")
	if !s.l.CheckStack(1) {
		return &Error{Kind: KindRuntime, Op: "push", Err: fmt.Errorf("cannot grow stack")}
	}
	return push(s.l, v)
}

// PushAll encodes vs in order, so the last value ends up on top. On error
// nothing is left on the stack.
func (s *Session) PushAll(vs []value.Value) error {
	s.live("push")
	if !s.l.CheckStack(len(vs)) {
		return &Error{Kind: KindRuntime, Op: "push", Err: fmt.Errorf("cannot grow stack for %d values", len(vs))}
	}
	base := s.l.Top()
	if err := pushAll(s.l, vs); err != nil {
		s.l.SetTop(base)
		return err
	}
	return nil
}

// Decode returns the value in stack slot idx. Negative indices count down
// from the top.
func (s *Session) Decode(idx int) (value.Value, error) {
	s.live("decode")
	return decode(s.l, idx)
}

// DecodeRange returns the top count slots, bottom to top.
func (s *Session) DecodeRange(count int) ([]value.Value, error) {
	s.live("decode")
	return decodeRange(s.l, count)
}

// Pop removes n slots from the top of the stack.
func (s *Session) Pop(n int) {
	s.live("pop")
	if n > 0 {
		s.l.Pop(n)
	}
}

// PopValues decodes the top n slots and removes them. The slots are removed
// even if one of them cannot be decoded.
func (s *Session) PopValues(n int) ([]value.Value, error) {
	vs, err := s.DecodeRange(n)
	s.Pop(n)
	return vs, err
}

// Top returns the depth of the active frame. Inside a host function this
// is the number of arguments until the function pushes anything.
func (s *Session) Top() int {
	s.live("top")
	return s.l.Top()
}

// Args decodes every slot of the active frame. Called first thing in a host
// function it yields the arguments the script passed.
func (s *Session) Args() ([]value.Value, error) {
	return s.DecodeRange(s.Top())
}

func push(l *lua.State, v value.Value) error {
	switch v.Kind() {
	case value.KindNil:
		l.PushNil()
	case value.KindBool:
		b, _ := v.AsBool()
		l.PushBoolean(b)
	case value.KindInteger:
		i, _ := v.AsInteger()
		l.PushInteger(i)
	case value.KindNumber:
		n, _ := v.AsNumber()
		l.PushNumber(n)
	case value.KindText:
		t, _ := v.AsText()
		l.PushString(t)
	default:
		return &Error{Kind: KindUnsupportedType, Op: "push", Err: fmt.Errorf("value kind %v", v.Kind())}
	}
	return nil
}

func pushAll(l *lua.State, vs []value.Value) error {
	for _, v := range vs {
		if err := push(l, v); err != nil {
			return err
		}
	}
	return nil
}

func decode(l *lua.State, idx int) (value.Value, error) {
	switch tp := l.Type(idx); tp {
	case lua.TypeNil:
		return value.Nil(), nil
	case lua.TypeBoolean:
		return value.Bool(l.ToBoolean(idx)), nil
	case lua.TypeNumber:
		if l.IsInteger(idx) {
			i, _ := l.ToInteger(idx)
			return value.Integer(i), nil
		}
		n, _ := l.ToNumber(idx)
		return value.Number(n), nil
	case lua.TypeString:
		// ToString copies the bytes out of VM memory.
		str, _ := l.ToString(idx)
		return value.Text(str), nil
	case lua.TypeNone:
		return value.Nil(), &Error{Kind: KindUnsupportedType, Op: "decode", Err: fmt.Errorf("stack slot %d is empty", idx)}
	case lua.TypeTable, lua.TypeFunction, lua.TypeUserdata, lua.TypeThread, lua.TypeLightUserdata:
		return value.Nil(), &Error{Kind: KindUnsupportedType, Op: "decode", Err: fmt.Errorf("stack slot %d holds a %s", idx, typeName(tp))}
	default:
		return value.Nil(), &Error{Kind: KindUnsupportedType, Op: "decode", Err: fmt.Errorf("stack slot %d has unknown type tag %d", idx, int(tp))}
	}
}

func decodeRange(l *lua.State, count int) ([]value.Value, error) {
	if count <= 0 {
		return nil, nil
	}
	if count > l.Top() {
		return nil, &Error{Kind: KindRuntime, Op: "decode", Err: fmt.Errorf("%d slots requested, %d on the stack", count, l.Top())}
	}
	vs := make([]value.Value, 0, count)
	for idx := -count; idx <= -1; idx++ {
		v, err := decode(l, idx)
		if err != nil {
			return nil, err
		}
		vs = append(vs, v)
	}
	return vs, nil
}

// typeName returns Lua's name for a type tag, as lua_typename would.
func typeName(tp lua.Type) string {
	switch tp {
	case lua.TypeNone:
		return "no value"
	case lua.TypeNil:
		return "nil"
	case lua.TypeBoolean:
		return "boolean"
	case lua.TypeLightUserdata, lua.TypeUserdata:
		return "userdata"
	case lua.TypeNumber:
		return "number"
	case lua.TypeString:
		return "string"
	case lua.TypeTable:
		return "table"
	case lua.TypeFunction:
		return "function"
	case lua.TypeThread:
		return "thread"
	default:
		return fmt.Sprintf("type(%d)", int(tp))
	}
}
