// Package exports is a fixture for the luakit code generator.
package exports

import (
	"errors"
	"strings"

	"github.com/chazu/luakit/value"
)

// Add returns a + b.
//
//luakit:export
func Add(a, b int64) int64 {
	return a + b
}

// Upper upper-cases s. Scripts call it as shout.
//
//luakit:export shout
func Upper(s string) string {
	return strings.ToUpper(s)
}

//luakit:export
func Divide(a, b float64) (float64, error) {
	if b == 0 {
		return 0, errors.New("division by zero")
	}
	return a / b, nil
}

// Describe returns the kind of v and v itself.
//
//luakit:export
func Describe(v value.Value) (string, value.Value) {
	return v.Kind().String(), v
}

//luakit:export
func Replicate(s string, n int, sep bool) string {
	if !sep {
		return strings.Repeat(s, n)
	}
	parts := make([]string, n)
	for i := range parts {
		parts[i] = s
	}
	return strings.Join(parts, " ")
}

//luakit:export
func Fail() error {
	return errors.New("always fails")
}

// notExported has no directive and stays invisible to scripts.
func notExported() int {
	return 0
}

var _ = notExported
