package value

import (
	"fmt"
	"math"
)

// Conversions used by host functions to read arguments as Go types. They
// follow Lua's coercions where Lua has one: an integral float reads as an
// integer, and numbers read as strings.

// At returns vs[i], or Nil when i is out of range. A missing trailing
// argument reads as nil, as in Lua.
func At(vs []Value, i int) Value {
	if i < 0 || i >= len(vs) {
		return Nil()
	}
	return vs[i]
}

// ToBool accepts a boolean or nil (false).
func ToBool(v Value) (bool, error) {
	switch v.kind {
	case KindBool:
		return v.b, nil
	case KindNil:
		return false, nil
	default:
		return false, fmt.Errorf("boolean expected, got %v", v.kind)
	}
}

// ToInt64 accepts an integer, or a number with an exact integer
// representation.
func ToInt64(v Value) (int64, error) {
	switch v.kind {
	case KindInteger:
		return v.i, nil
	case KindNumber:
		if v.n == math.Trunc(v.n) && v.n >= math.MinInt64 && v.n < math.MaxInt64 {
			return int64(v.n), nil
		}
		return 0, fmt.Errorf("number has no integer representation")
	default:
		return 0, fmt.Errorf("integer expected, got %v", v.kind)
	}
}

// ToInt is ToInt64 narrowed to int.
func ToInt(v Value) (int, error) {
	i, err := ToInt64(v)
	if err != nil {
		return 0, err
	}
	if int64(int(i)) != i {
		return 0, fmt.Errorf("integer %d out of range for int", i)
	}
	return int(i), nil
}

// ToFloat64 accepts an integer or a number.
func ToFloat64(v Value) (float64, error) {
	switch v.kind {
	case KindInteger:
		return float64(v.i), nil
	case KindNumber:
		return v.n, nil
	default:
		return 0, fmt.Errorf("number expected, got %v", v.kind)
	}
}

// ToString accepts text, or a number formatted the way Lua formats it.
func ToString(v Value) (string, error) {
	switch v.kind {
	case KindText:
		return v.s, nil
	case KindInteger, KindNumber:
		return v.String(), nil
	default:
		return "", fmt.Errorf("string expected, got %v", v.kind)
	}
}
