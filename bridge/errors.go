package bridge

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinels for the recoverable failure kinds. Match with errors.Is.
var (
	ErrLoad            = errors.New("load error")
	ErrRuntime         = errors.New("runtime error")
	ErrUnboundFunction = errors.New("unbound function")
	ErrUnsupportedType = errors.New("unsupported type")
	ErrFaulted         = errors.New("session faulted")
)

// ErrorKind classifies a recoverable failure.
type ErrorKind int

const (
	KindLoad ErrorKind = iota + 1
	KindRuntime
	KindUnboundFunction
	KindUnsupportedType
	KindFaulted
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindLoad:
		return ErrLoad
	case KindRuntime:
		return ErrRuntime
	case KindUnboundFunction:
		return ErrUnboundFunction
	case KindUnsupportedType:
		return ErrUnsupportedType
	case KindFaulted:
		return ErrFaulted
	default:
		return nil
	}
}

func (k ErrorKind) String() string {
	if s := k.sentinel(); s != nil {
		return s.Error()
	}
	return fmt.Sprintf("bridge.ErrorKind(%d)", int(k))
}

// Error is a recoverable failure reported by a Session operation.
type Error struct {
	Kind ErrorKind
	Op   string // "run", "call", "register", "decode", ...
	Name string // function name, chunk name or file path, if any
	Err  error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Name != "" {
		fmt.Fprintf(&b, " %s", e.Name)
	}
	fmt.Fprintf(&b, ": %v", e.Kind)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

// Violation names a broken bridge contract.
type Violation int

const (
	// StackImbalance means an operation that guarantees a balanced stack
	// changed its depth. It points at a marshalling bug in the bridge.
	StackImbalance Violation = iota + 1
	// UseAfterDestroy means a Session was used after (or during) teardown.
	UseAfterDestroy
)

func (v Violation) String() string {
	switch v {
	case StackImbalance:
		return "stack invariant violation"
	case UseAfterDestroy:
		return "use after destroy"
	default:
		return fmt.Sprintf("bridge.Violation(%d)", int(v))
	}
}

// ContractViolation is the panic value for unrecoverable conditions.
// Continuing past one risks corrupting the VM, so the bridge never returns
// it as an ordinary error.
type ContractViolation struct {
	Kind   Violation
	Op     string
	Detail string
}

func (v *ContractViolation) Error() string {
	return fmt.Sprintf("bridge: %s in %s: %s", v.Kind, v.Op, v.Detail)
}

// isMemoryError reports whether a VM error is Lua's allocation failure,
// after which the state cannot be trusted. Lua raises that error with its
// bare message and no position, so script errors that merely mention it
// do not match.
func isMemoryError(err error) bool {
	if err == nil {
		return false
	}
	switch err.Error() {
	case "not enough memory", "memory allocation error":
		return true
	default:
		return false
	}
}
