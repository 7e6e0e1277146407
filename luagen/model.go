// Package luagen introspects Go packages for functions marked with a
// //luakit:export directive and generates the glue that registers them as
// host functions in a bridge.Session.
package luagen

// Directive marks a top-level function for export. An optional argument
// sets the Lua name.
const Directive = "//luakit:export"

// TypeKind is a Go type the generator can convert to and from a Lua value.
type TypeKind int

const (
	TypeInvalid TypeKind = iota
	TypeBool
	TypeInt
	TypeInt64
	TypeFloat64
	TypeString
	TypeValue // value.Value, passed through unchanged
)

var typeKindNames = [...]string{
	TypeInvalid: "invalid",
	TypeBool:    "bool",
	TypeInt:     "int",
	TypeInt64:   "int64",
	TypeFloat64: "float64",
	TypeString:  "string",
	TypeValue:   "value.Value",
}

func (k TypeKind) String() string {
	if k >= 0 && int(k) < len(typeKindNames) {
		return typeKindNames[k]
	}
	return "invalid"
}

// PackageModel is the set of exported functions found in one package.
type PackageModel struct {
	ImportPath string
	Name       string // short package name
	Dir        string // directory holding the package's files
	Exports    []ExportModel
}

// ExportModel represents one function marked for export.
type ExportModel struct {
	GoName     string
	LuaName    string
	Params     []ParamModel
	Results    []ParamModel // without the trailing error
	ReturnsErr bool         // true if last result is error
}

// ParamModel represents a function parameter or result.
type ParamModel struct {
	Name string
	Kind TypeKind
}
