package luagen

import (
	"unicode"
	"unicode/utf8"
)

var luaReserved = map[string]bool{
	"and": true, "break": true, "do": true, "else": true, "elseif": true,
	"end": true, "false": true, "for": true, "function": true, "goto": true,
	"if": true, "in": true, "local": true, "nil": true, "not": true,
	"or": true, "repeat": true, "return": true, "then": true, "true": true,
	"until": true, "while": true,
}

// GoNameToLuaName converts a Go function name to its default Lua global
// name by lowering the first rune.
// e.g., "ReadAll" → "readAll", "Add" → "add"
func GoNameToLuaName(name string) string {
	if name == "" {
		return name
	}
	r, size := utf8.DecodeRuneInString(name)
	return string(unicode.ToLower(r)) + name[size:]
}

// ValidLuaName reports whether name can be used as a Lua global
// identifier: ASCII letters, digits and underscores, not starting with a
// digit, and not a reserved word.
func ValidLuaName(name string) bool {
	if name == "" || luaReserved[name] {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c == '_', 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z':
		case '0' <= c && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// wrapperName is the Go name of the generated adapter for goName.
func wrapperName(goName string) string {
	return "luakitExport" + toPascal(goName)
}

// toPascal upper-cases the first rune.
func toPascal(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}
