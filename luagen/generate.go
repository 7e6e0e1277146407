package luagen

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"golang.org/x/tools/imports"
)

// GeneratedFileName is the default output file name used by `luakit gen`.
const GeneratedFileName = "luakit_exports.go"

var glueTemplate = template.Must(template.New("glue").Parse(`// Code generated by luakit gen; DO NOT EDIT.

package {{.Package}}

import (
	"fmt"

	"github.com/chazu/luakit/bridge"
	"github.com/chazu/luakit/value"
)

// RegisterExports registers every //luakit:export function of package
// {{.Package}} as a host function in s.
func RegisterExports(s *bridge.Session) error {
{{- range .Funcs}}
	if err := bridge.Register(s, {{printf "%q" .LuaName}}, {{.Wrapper}}); err != nil {
		return fmt.Errorf("registering {{.LuaName}}: %w", err)
	}
{{- end}}
	return nil
}
{{range .Funcs}}
// {{.Wrapper}} adapts {{.GoName}} to bridge.HostFunc.
func {{.Wrapper}}(s *bridge.Session) (int, error) {
{{- range .Body}}
	{{.}}
{{- end}}
}
{{end}}`))

type glueData struct {
	Package string
	Funcs   []glueFunc
}

type glueFunc struct {
	GoName  string
	LuaName string
	Wrapper string
	Body    []string
}

// Generate renders the registration glue for model as formatted Go source
// in model's package.
func Generate(model *PackageModel) ([]byte, error) {
	data := glueData{Package: model.Name}
	for _, em := range model.Exports {
		data.Funcs = append(data.Funcs, glueFunc{
			GoName:  em.GoName,
			LuaName: em.LuaName,
			Wrapper: wrapperName(em.GoName),
			Body:    wrapperBody(em),
		})
	}

	var buf bytes.Buffer
	if err := glueTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("rendering glue: %w", err)
	}
	out, err := imports.Process(GeneratedFileName, buf.Bytes(), nil)
	if err != nil {
		return nil, fmt.Errorf("formatting glue: %w\n%s", err, buf.Bytes())
	}
	return out, nil
}

// wrapperBody returns the statements of one adapter, one per line. The
// template indents them and gofmt fixes nesting.
func wrapperBody(em ExportModel) []string {
	var lines []string
	add := func(format string, args ...any) {
		lines = append(lines, fmt.Sprintf(format, args...))
	}

	if len(em.Params) > 0 {
		add("args, err := s.Args()")
		add("if err != nil {")
		add("return 0, fmt.Errorf(%q, err)", em.LuaName+": %w")
		add("}")
	}
	var argNames []string
	for i, p := range em.Params {
		name := fmt.Sprintf("p%d", i)
		argNames = append(argNames, name)
		if p.Kind == TypeValue {
			add("%s := value.At(args, %d)", name, i)
			continue
		}
		add("%s, err := %s(value.At(args, %d))", name, fromValueFunc(p.Kind), i)
		add("if err != nil {")
		add("return 0, fmt.Errorf(%q, err)", fmt.Sprintf("%s: argument %d: %%w", em.LuaName, i+1))
		add("}")
	}

	call := fmt.Sprintf("%s(%s)", em.GoName, strings.Join(argNames, ", "))
	var resultNames []string
	for i := range em.Results {
		resultNames = append(resultNames, fmt.Sprintf("r%d", i))
	}

	switch {
	case len(resultNames) == 0 && em.ReturnsErr:
		add("if err := %s; err != nil {", call)
		add("return 0, err")
		add("}")
	case len(resultNames) == 0:
		add("%s", call)
	case em.ReturnsErr:
		add("%s, err := %s", strings.Join(resultNames, ", "), call)
		add("if err != nil {")
		add("return 0, err")
		add("}")
	default:
		add("%s := %s", strings.Join(resultNames, ", "), call)
	}

	for i, r := range em.Results {
		add("if err := s.Push(%s); err != nil {", toValueExpr(r.Kind, resultNames[i]))
		add("return 0, err")
		add("}")
	}
	add("return %d, nil", len(em.Results))
	return lines
}

func fromValueFunc(k TypeKind) string {
	switch k {
	case TypeBool:
		return "value.ToBool"
	case TypeInt:
		return "value.ToInt"
	case TypeInt64:
		return "value.ToInt64"
	case TypeFloat64:
		return "value.ToFloat64"
	case TypeString:
		return "value.ToString"
	default:
		panic(fmt.Sprintf("luagen: no conversion from value to %v", k))
	}
}

func toValueExpr(k TypeKind, v string) string {
	switch k {
	case TypeBool:
		return "value.Bool(" + v + ")"
	case TypeInt:
		return "value.Integer(int64(" + v + "))"
	case TypeInt64:
		return "value.Integer(" + v + ")"
	case TypeFloat64:
		return "value.Number(" + v + ")"
	case TypeString:
		return "value.Text(" + v + ")"
	case TypeValue:
		return v
	default:
		panic(fmt.Sprintf("luagen: no conversion from %v to value", k))
	}
}
