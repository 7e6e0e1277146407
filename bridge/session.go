// Package bridge connects host Go code to an embedded Lua VM. A Session owns
// one VM, marshals values across its stack, and exposes Go functions to
// scripts as native closures.
//
// A Session is not safe for concurrent use. Scripts call back into host
// functions on the same goroutine, so calls nest but never overlap. Run one
// Session per goroutine to execute scripts in parallel.
package bridge

import (
	"fmt"
	"os"
	"sort"

	"github.com/tliron/commonlog"
	"zombiezen.com/go/lua"

	"github.com/chazu/luakit/ledger"
	"github.com/chazu/luakit/value"
)

const defaultChunkName = "luakit"

// Option configures a Session.
type Option func(*sessionConfig)

type sessionConfig struct {
	stdlib    bool
	chunkName string
	log       commonlog.Logger
}

// WithoutStdlib skips opening the Lua standard libraries.
func WithoutStdlib() Option {
	return func(c *sessionConfig) { c.stdlib = false }
}

// WithChunkName sets the name used for source passed to Run. It appears
// as the location prefix of Lua error messages.
func WithChunkName(name string) Option {
	return func(c *sessionConfig) {
		if name != "" {
			c.chunkName = name
		}
	}
}

// WithLogger sets the logger for session lifecycle events.
func WithLogger(log commonlog.Logger) Option {
	return func(c *sessionConfig) {
		if log != nil {
			c.log = log
		}
	}
}

// Session owns one Lua state and every host allocation handed to it.
type Session struct {
	main *lua.State // owned state, closed on Destroy
	l    *lua.State // active frame: main, or a callback frame while a host function runs

	ledger     *ledger.Ledger
	registered map[string]int
	chunkName  string
	log        commonlog.Logger

	depth     int // nesting of host functions currently running
	destroyed bool
	fault     error              // set after an unrecoverable VM status
	violation *ContractViolation // set when a contract breaks inside a callback
}

// New creates a Session around a fresh Lua state.
func New(opts ...Option) (*Session, error) {
	cfg := newConfig(opts)
	l := new(lua.State)
	if cfg.stdlib {
		if err := lua.OpenLibraries(l); err != nil {
			l.Close()
			return nil, fmt.Errorf("opening standard libraries: %w", err)
		}
	}
	return newSession(l, cfg), nil
}

// Adopt creates a Session around an existing Lua state. The Session takes
// ownership: Destroy closes l.
func Adopt(l *lua.State, opts ...Option) *Session {
	if l == nil {
		panic("bridge: Adopt of nil state")
	}
	return newSession(l, newConfig(opts))
}

func newConfig(opts []Option) *sessionConfig {
	cfg := &sessionConfig{
		stdlib:    true,
		chunkName: defaultChunkName,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.log == nil {
		cfg.log = commonlog.GetLogger("luakit.bridge")
	}
	return cfg
}

func newSession(l *lua.State, cfg *sessionConfig) *Session {
	return &Session{
		main:       l,
		l:          l,
		ledger:     ledger.New(),
		registered: make(map[string]int),
		chunkName:  cfg.chunkName,
		log:        cfg.log,
	}
}

// ---------------------------------------------------------------------------
// Execution
// ---------------------------------------------------------------------------

// Run compiles source and executes it with no arguments, discarding results.
func (s *Session) Run(source string) error {
	if err := s.enter("run"); err != nil {
		return err
	}
	return s.withUnchangedStack("run", func(l *lua.State) error {
		base := l.Top()
		if err := l.LoadString(source, "="+s.chunkName, "t"); err != nil {
			l.Pop(1)
			return s.fail(KindLoad, "run", s.chunkName, err)
		}
		return s.execChunk(l, base, "run", s.chunkName)
	})
}

// RunFile compiles the Lua file at path and executes it like Run.
func (s *Session) RunFile(path string) error {
	if err := s.enter("run"); err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return s.fail(KindLoad, "run", path, err)
	}
	defer f.Close()

	return s.withUnchangedStack("run", func(l *lua.State) error {
		base := l.Top()
		if err := l.Load(f, "@"+path, "t"); err != nil {
			l.Pop(1)
			return s.fail(KindLoad, "run", path, err)
		}
		return s.execChunk(l, base, "run", path)
	})
}

// Check compiles source without running it.
func (s *Session) Check(source, chunkName string) error {
	if err := s.enter("check"); err != nil {
		return err
	}
	if chunkName == "" {
		chunkName = s.chunkName
	}
	return s.withUnchangedStack("check", func(l *lua.State) error {
		err := l.LoadString(source, "="+chunkName, "t")
		// Either the compiled chunk or the error message.
		l.Pop(1)
		if err != nil {
			return s.fail(KindLoad, "check", chunkName, err)
		}
		return nil
	})
}

func (s *Session) execChunk(l *lua.State, base int, op, name string) error {
	if err := l.Call(0, lua.MultipleReturns, 0); err != nil {
		l.Pop(1)
		s.rethrow()
		return s.fail(KindRuntime, op, name, err)
	}
	l.SetTop(base)
	s.rethrowOutermost()
	return nil
}

// Call invokes the global function name with params and returns its first
// result. The function is asked for exactly one result.
func (s *Session) Call(name string, params ...value.Value) (value.Value, error) {
	results, err := s.call(name, params, 1)
	if err != nil {
		return value.Nil(), err
	}
	return results[0], nil
}

// CallMulti invokes the global function name with params and returns every
// result it produces.
func (s *Session) CallMulti(name string, params ...value.Value) ([]value.Value, error) {
	return s.call(name, params, lua.MultipleReturns)
}

func (s *Session) call(name string, params []value.Value, nResults int) ([]value.Value, error) {
	if err := s.enter("call"); err != nil {
		return nil, err
	}
	var results []value.Value
	err := s.withUnchangedStack("call", func(l *lua.State) error {
		base := l.Top()
		if !l.CheckStack(len(params) + 1) {
			return s.fail(KindRuntime, "call", name, fmt.Errorf("cannot grow stack for %d arguments", len(params)))
		}
		tp, err := l.Global(name, 0)
		if err != nil {
			l.Pop(1)
			return s.fail(KindRuntime, "call", name, err)
		}
		if !isCallable(l, -1, tp) {
			l.Pop(1)
			return &Error{Kind: KindUnboundFunction, Op: "call", Name: name, Err: fmt.Errorf("global is %s", typeName(tp))}
		}
		if err := pushAll(l, params); err != nil {
			l.SetTop(base)
			return err
		}
		if err := l.Call(len(params), nResults, 0); err != nil {
			l.Pop(1)
			s.rethrow()
			return s.fail(KindRuntime, "call", name, err)
		}
		n := l.Top() - base
		results, err = decodeRange(l, n)
		l.Pop(n)
		s.rethrowOutermost()
		return err
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// isCallable reports whether the value at idx can be called: a function,
// or a table or userdata whose metatable has a __call function.
func isCallable(l *lua.State, idx int, tp lua.Type) bool {
	switch tp {
	case lua.TypeFunction:
		return true
	case lua.TypeTable, lua.TypeUserdata:
		if !l.Metatable(idx) {
			return false
		}
		ok := l.RawField(-1, "__call") == lua.TypeFunction
		l.Pop(2)
		return ok
	default:
		return false
	}
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// Destroy closes the VM and releases every cell the Session handed to it.
// Calling Destroy again is a no-op.
func (s *Session) Destroy() {
	if s.destroyed {
		return
	}
	if s.depth > 0 {
		s.violate(UseAfterDestroy, "destroy", "session destroyed from inside a host function")
	}
	s.destroyed = true
	s.main.Close()
	s.l = nil
	n := s.ledger.ReleaseAll()
	s.log.Debugf("session destroyed: released %d cells, %d host functions", n, len(s.registered))
}

// Destroyed reports whether Destroy has run.
func (s *Session) Destroyed() bool {
	return s.destroyed
}

// Tracked returns the number of cells currently owned by the Session.
func (s *Session) Tracked() int {
	return s.ledger.Len()
}

// Registered returns the sorted names of every host function registered
// through this Session.
func (s *Session) Registered() []string {
	names := make([]string, 0, len(s.registered))
	for name := range s.registered {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered reports whether name was registered as a host function.
func (s *Session) IsRegistered(name string) bool {
	_, ok := s.registered[name]
	return ok
}

// State returns the Lua state for the active frame. It is exposed for
// inspection; pushing or popping through it bypasses balance checks.
func (s *Session) State() *lua.State {
	s.live("state")
	return s.l
}

// ---------------------------------------------------------------------------
// Contract enforcement
// ---------------------------------------------------------------------------

// enter guards every public operation.
func (s *Session) enter(op string) error {
	s.live(op)
	if s.violation != nil {
		panic(s.violation)
	}
	if s.fault != nil {
		return &Error{Kind: KindFaulted, Op: op, Err: s.fault}
	}
	return nil
}

func (s *Session) live(op string) {
	if s.destroyed {
		panic(&ContractViolation{Kind: UseAfterDestroy, Op: op, Detail: "session already destroyed"})
	}
}

// withUnchangedStack runs fn and asserts that the active frame has the same
// depth afterwards.
func (s *Session) withUnchangedStack(op string, fn func(l *lua.State) error) error {
	l := s.l
	before := l.Top()
	err := fn(l)
	if after := l.Top(); after != before {
		s.violate(StackImbalance, op, fmt.Sprintf("stack depth %d before, %d after", before, after))
	}
	return err
}

// violate records a contract violation and panics with it. The engine turns
// panics inside host functions into script errors, so the record lets the
// outermost host call raise it again.
func (s *Session) violate(kind Violation, op, detail string) {
	v := &ContractViolation{Kind: kind, Op: op, Detail: detail}
	if s.violation == nil {
		s.violation = v
	}
	s.log.Criticalf("%v", v)
	panic(v)
}

// rethrow re-raises a violation recorded while the VM was running.
func (s *Session) rethrow() {
	if s.violation != nil {
		panic(s.violation)
	}
}

// rethrowOutermost re-raises a recorded violation once control is back in
// the outermost host call, even when a script pcall swallowed the error.
func (s *Session) rethrowOutermost() {
	if s.depth == 0 {
		s.rethrow()
	}
}

func (s *Session) fail(kind ErrorKind, op, name string, err error) error {
	if isMemoryError(err) && s.fault == nil {
		s.fault = err
		s.log.Errorf("session faulted during %s: %v", op, err)
	}
	return &Error{Kind: kind, Op: op, Name: name, Err: err}
}
