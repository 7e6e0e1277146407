package luagen

import (
	"fmt"
	"go/ast"
	"go/types"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/tools/go/packages"
)

const valuePkgPath = "github.com/chazu/luakit/value"

// IntrospectPackage loads the package matching pattern (resolved relative
// to dir, or the working directory when dir is empty) and returns every
// function carrying the export directive.
func IntrospectPackage(pattern, dir string) (*PackageModel, error) {
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedFiles | packages.NeedTypes | packages.NeedSyntax,
		Dir:  dir,
	}

	pkgs, err := packages.Load(cfg, pattern)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", pattern, err)
	}
	if len(pkgs) == 0 {
		return nil, fmt.Errorf("no packages found for %s", pattern)
	}
	if len(pkgs) > 1 {
		return nil, fmt.Errorf("%s matches %d packages, want one", pattern, len(pkgs))
	}
	if len(pkgs[0].Errors) > 0 {
		return nil, fmt.Errorf("package errors: %v", pkgs[0].Errors)
	}

	pkg := pkgs[0]
	if pkg.Types == nil {
		return nil, fmt.Errorf("type information not available for %s", pattern)
	}

	model := &PackageModel{
		ImportPath: pkg.PkgPath,
		Name:       pkg.Name,
	}
	if len(pkg.GoFiles) > 0 {
		model.Dir = filepath.Dir(pkg.GoFiles[0])
	}

	seen := make(map[string]string) // Lua name → Go name
	for _, file := range pkg.Syntax {
		for _, decl := range file.Decls {
			fd, ok := decl.(*ast.FuncDecl)
			if !ok {
				continue
			}
			luaName, marked := exportDirective(fd)
			if !marked {
				continue
			}
			pos := pkg.Fset.Position(fd.Pos())
			if fd.Recv != nil {
				return nil, fmt.Errorf("%s: %s is a method; only top-level functions can be exported", pos, fd.Name.Name)
			}
			if fd.Type.TypeParams != nil {
				return nil, fmt.Errorf("%s: %s is generic", pos, fd.Name.Name)
			}

			fn, ok := pkg.Types.Scope().Lookup(fd.Name.Name).(*types.Func)
			if !ok {
				return nil, fmt.Errorf("%s: no type information for %s", pos, fd.Name.Name)
			}
			em, err := extractExport(fn)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", pos, err)
			}
			if luaName != "" {
				em.LuaName = luaName
			}
			if !ValidLuaName(em.LuaName) {
				return nil, fmt.Errorf("%s: %q is not a valid Lua name", pos, em.LuaName)
			}
			if prev, dup := seen[em.LuaName]; dup {
				return nil, fmt.Errorf("%s: Lua name %q used by both %s and %s", pos, em.LuaName, prev, em.GoName)
			}
			seen[em.LuaName] = em.GoName
			model.Exports = append(model.Exports, em)
		}
	}

	sort.Slice(model.Exports, func(i, j int) bool {
		return model.Exports[i].LuaName < model.Exports[j].LuaName
	})
	return model, nil
}

// exportDirective scans a function's doc comment for the directive. It
// reads the raw comment lines because ast.CommentGroup.Text drops
// directives.
func exportDirective(fd *ast.FuncDecl) (luaName string, ok bool) {
	if fd.Doc == nil {
		return "", false
	}
	for _, c := range fd.Doc.List {
		rest, found := strings.CutPrefix(c.Text, Directive)
		if !found {
			continue
		}
		if rest != "" && rest[0] != ' ' && rest[0] != '\t' {
			continue // e.g. //luakit:exportAll
		}
		return strings.TrimSpace(rest), true
	}
	return "", false
}

func extractExport(fn *types.Func) (ExportModel, error) {
	sig := fn.Type().(*types.Signature)
	em := ExportModel{
		GoName:  fn.Name(),
		LuaName: GoNameToLuaName(fn.Name()),
	}
	if sig.Variadic() {
		return em, fmt.Errorf("%s is variadic", fn.Name())
	}

	params := sig.Params()
	for i := 0; i < params.Len(); i++ {
		p := params.At(i)
		kind := kindOf(p.Type())
		if kind == TypeInvalid {
			return em, fmt.Errorf("%s: parameter %d has unsupported type %s", fn.Name(), i+1, p.Type())
		}
		em.Params = append(em.Params, ParamModel{Name: p.Name(), Kind: kind})
	}

	results := sig.Results()
	n := results.Len()
	// Check if last result is error
	if n > 0 && isErrorType(results.At(n-1).Type()) {
		em.ReturnsErr = true
		n--
	}
	for i := 0; i < n; i++ {
		r := results.At(i)
		kind := kindOf(r.Type())
		if kind == TypeInvalid {
			return em, fmt.Errorf("%s: result %d has unsupported type %s", fn.Name(), i+1, r.Type())
		}
		em.Results = append(em.Results, ParamModel{Name: r.Name(), Kind: kind})
	}
	return em, nil
}

// kindOf maps a Go type to a TypeKind. Only the exact basic types and
// value.Value qualify; named types over them do not.
func kindOf(t types.Type) TypeKind {
	switch t := t.(type) {
	case *types.Basic:
		switch t.Kind() {
		case types.Bool:
			return TypeBool
		case types.Int:
			return TypeInt
		case types.Int64:
			return TypeInt64
		case types.Float64:
			return TypeFloat64
		case types.String:
			return TypeString
		}
	case *types.Named:
		obj := t.Obj()
		if obj.Pkg() != nil && obj.Pkg().Path() == valuePkgPath && obj.Name() == "Value" {
			return TypeValue
		}
	}
	return TypeInvalid
}

func isErrorType(t types.Type) bool {
	return types.Identical(t, types.Universe.Lookup("error").Type())
}
