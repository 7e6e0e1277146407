package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chazu/luakit/luagen"
)

// genCommand processes `luakit gen`.
// Usage:
//
//	luakit gen ./hostfuncs              # writes ./hostfuncs/luakit_exports.go
//	luakit gen -o glue.go ./hostfuncs   # custom output file
//	luakit gen -o - ./hostfuncs         # print to stdout
func genCommand(args []string) error {
	fs := flag.NewFlagSet("gen", flag.ContinueOnError)
	output := fs.String("o", "", "Output file (default: <package dir>/"+luagen.GeneratedFileName+", - for stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("gen: exactly one package pattern required")
	}

	model, err := luagen.IntrospectPackage(fs.Arg(0), "")
	if err != nil {
		return err
	}
	if len(model.Exports) == 0 {
		return fmt.Errorf("gen: %s has no %s functions", model.ImportPath, luagen.Directive)
	}

	code, err := luagen.Generate(model)
	if err != nil {
		return err
	}

	switch *output {
	case "-":
		_, err = os.Stdout.Write(code)
		return err
	case "":
		*output = filepath.Join(model.Dir, luagen.GeneratedFileName)
	}
	if err := os.WriteFile(*output, code, 0o644); err != nil {
		return fmt.Errorf("gen: %w", err)
	}
	log.Infof("wrote %d functions to %s", len(model.Exports), *output)
	return nil
}
