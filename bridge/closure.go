package bridge

import (
	"fmt"
	"weak"

	"zombiezen.com/go/lua"

	"github.com/chazu/luakit/ledger"
)

// HostFunc is a Go function callable from Lua. It reads its arguments from
// the Session's stack, pushes its results, and returns how many it pushed.
// A non-nil error is raised as a Lua error in the calling script.
type HostFunc func(s *Session) (int, error)

// sessionRef is the first upvalue of every registered closure. It refers to
// the Session without keeping it alive.
type sessionRef struct {
	ptr weak.Pointer[Session]
}

func newSessionRef(s *Session) *sessionRef {
	return &sessionRef{ptr: weak.Make(s)}
}

// get returns the Session, or nil once it is collected or destroyed.
func (r *sessionRef) get() *Session {
	s := r.ptr.Value()
	if s == nil || s.destroyed {
		return nil
	}
	return s
}

// Register exposes fn to scripts as the global name. A later registration
// under the same name replaces the earlier binding, as any Lua assignment
// would.
func (s *Session) Register(name string, fn HostFunc) error {
	return Register(s, name, fn)
}

// Register packs a weak reference to s and fn into ledger cells, pushes both
// as light userdata, and binds the trampoline closed over them to the global
// name. The cells live until s is destroyed.
func Register(s *Session, name string, fn HostFunc) error {
	if fn == nil {
		panic("bridge: Register of nil HostFunc")
	}
	if err := s.enter("register"); err != nil {
		return err
	}
	return s.withUnchangedStack("register", func(l *lua.State) error {
		base := l.Top()
		if !l.CheckStack(3) {
			return s.fail(KindRuntime, "register", name, fmt.Errorf("cannot grow stack"))
		}

		// Track before pushing: a cell is never visible to the VM without
		// a release action waiting for it.
		ref := ledger.Pack(s.ledger, newSessionRef(s))
		call := ledger.Pack(s.ledger, fn)
		l.PushLightUserdata(uintptr(ref))
		l.PushLightUserdata(uintptr(call))
		l.PushClosure(2, trampoline)

		if err := l.SetGlobal(name, 0); err != nil {
			l.SetTop(base)
			return s.fail(KindRuntime, "register", name, err)
		}
		s.registered[name]++
		s.log.Debugf("registered host function %q (cells %d, %d)", name, ref, call)
		return nil
	})
}

// trampoline is the one native function behind every registered closure.
// Only its upvalues differ: upvalue 1 holds the session cell, upvalue 2 the
// HostFunc cell.
func trampoline(l *lua.State) (int, error) {
	ref, ok := ledger.Unpack[*sessionRef](upvalueHandle(l, 1))
	if !ok {
		panic(&ContractViolation{Kind: UseAfterDestroy, Op: "trampoline", Detail: "session cell was released"})
	}
	s := ref.get()
	if s == nil {
		panic(&ContractViolation{Kind: UseAfterDestroy, Op: "trampoline", Detail: "session no longer exists"})
	}
	fn, ok := ledger.Unpack[HostFunc](upvalueHandle(l, 2))
	if !ok {
		s.violate(UseAfterDestroy, "trampoline", "host function cell was released")
	}
	return s.invoke(l, fn)
}

// invoke runs fn with l as the Session's active frame, so nested calls and
// stack operations inside fn address the callback's stack.
func (s *Session) invoke(l *lua.State, fn HostFunc) (int, error) {
	prev := s.l
	s.l = l
	s.depth++
	defer func() {
		s.l = prev
		s.depth--
	}()

	n, err := fn(s)
	if err != nil {
		return 0, err
	}
	if n < 0 || n > l.Top() {
		return 0, fmt.Errorf("host function returned %d results with %d values on the stack", n, l.Top())
	}
	return n, nil
}

func upvalueHandle(l *lua.State, i int) ledger.Handle {
	idx := lua.UpvalueIndex(i)
	if l.Type(idx) != lua.TypeLightUserdata {
		return 0
	}
	return ledger.Handle(l.ToPointer(idx))
}
