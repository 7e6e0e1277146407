// Package value defines the tagged values exchanged between host code and
// the embedded Lua VM. A Value never references VM memory: strings are
// copied in on push and copied out on decode, so a Value stays valid after
// the stack slot it came from is popped or overwritten.
package value

import (
	"fmt"
	"math"
	"strconv"
)

// Kind identifies the active variant of a Value.
type Kind uint8

const (
	KindNil Kind = iota
	KindBool
	KindInteger
	KindNumber
	KindText
)

var kindNames = [...]string{
	KindNil:     "nil",
	KindBool:    "bool",
	KindInteger: "integer",
	KindNumber:  "number",
	KindText:    "text",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("value.Kind(%d)", uint8(k))
}

// Valid reports whether k is one of the five supported kinds.
func (k Kind) Valid() bool {
	return k <= KindText
}

// Value is a closed union of nil, bool, 64-bit integer, 64-bit float and
// UTF-8 text. Exactly one variant is active; the zero Value is Nil.
type Value struct {
	kind Kind
	b    bool
	i    int64
	n    float64
	s    string
}

// Nil returns the nil value.
func Nil() Value {
	return Value{}
}

// Bool creates a boolean value.
func Bool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

// Integer creates an integer value.
func Integer(i int64) Value {
	return Value{kind: KindInteger, i: i}
}

// Number creates a floating-point value.
func Number(n float64) Value {
	return Value{kind: KindNumber, n: n}
}

// Text creates a text value.
func Text(s string) Value {
	return Value{kind: KindText, s: s}
}

// Kind returns the active variant.
func (v Value) Kind() Kind {
	return v.kind
}

// IsNil returns true if the value is nil.
func (v Value) IsNil() bool {
	return v.kind == KindNil
}

// AsBool returns the boolean payload.
func (v Value) AsBool() (bool, bool) {
	return v.b, v.kind == KindBool
}

// AsInteger returns the integer payload.
func (v Value) AsInteger() (int64, bool) {
	return v.i, v.kind == KindInteger
}

// AsNumber returns the float payload.
func (v Value) AsNumber() (float64, bool) {
	return v.n, v.kind == KindNumber
}

// AsText returns the text payload.
func (v Value) AsText() (string, bool) {
	return v.s, v.kind == KindText
}

// Equal reports whether v and w hold the same variant and payload.
// Two NaN numbers are equal so that decoded values compare against what
// was pushed.
func (v Value) Equal(w Value) bool {
	if v.kind != w.kind {
		return false
	}
	switch v.kind {
	case KindNil:
		return true
	case KindBool:
		return v.b == w.b
	case KindInteger:
		return v.i == w.i
	case KindNumber:
		return v.n == w.n || (math.IsNaN(v.n) && math.IsNaN(w.n))
	case KindText:
		return v.s == w.s
	default:
		return false
	}
}

// String renders the value the way Lua's tostring would.
func (v Value) String() string {
	switch v.kind {
	case KindNil:
		return "nil"
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInteger:
		return strconv.FormatInt(v.i, 10)
	case KindNumber:
		return formatNumber(v.n)
	case KindText:
		return v.s
	default:
		return fmt.Sprintf("<%v>", v.kind)
	}
}

// GoString quotes text so that debug output distinguishes "1" from 1.
func (v Value) GoString() string {
	if v.kind == KindText {
		return strconv.Quote(v.s)
	}
	return v.String()
}

func formatNumber(n float64) string {
	switch {
	case math.IsInf(n, 1):
		return "inf"
	case math.IsInf(n, -1):
		return "-inf"
	case math.IsNaN(n):
		return "nan"
	case n == math.Trunc(n) && math.Abs(n) < 1e15:
		// Lua prints integral floats with a trailing ".0".
		return strconv.FormatFloat(n, 'f', 1, 64)
	default:
		return strconv.FormatFloat(n, 'g', 14, 64)
	}
}

// Parse interprets a command-line style literal: "nil", "true", "false",
// integers, floats, and anything else as text. A leading and trailing
// double quote forces text.
func Parse(s string) Value {
	switch s {
	case "nil":
		return Nil()
	case "true":
		return Bool(true)
	case "false":
		return Bool(false)
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		if unq, err := strconv.Unquote(s); err == nil {
			return Text(unq)
		}
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Integer(i)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return Number(f)
	}
	return Text(s)
}
