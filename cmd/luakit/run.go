package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/chazu/luakit/bridge"
	"github.com/chazu/luakit/config"
	"github.com/chazu/luakit/value"
)

// runCommand processes `luakit run`. Every script runs in the same session,
// in order, so later scripts see the globals of earlier ones.
func runCommand(cfg *config.Config, args []string) error {
	if len(args) == 0 {
		return errors.New("run: no scripts given")
	}
	return withSession(cfg, func(s *bridge.Session) error {
		for _, path := range args {
			log.Debugf("running %s", path)
			if err := s.RunFile(path); err != nil {
				return err
			}
		}
		return nil
	})
}

// callCommand processes `luakit call`.
// Usage:
//
//	luakit call -f add 1 2             # call a preloaded function
//	luakit call -s lib.lua -f add 1 2  # load lib.lua first
//	luakit call -multi -f divmod 7 2   # print every result
func callCommand(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("call", flag.ContinueOnError)
	fn := fs.String("f", "", "Global function to call")
	script := fs.String("s", "", "Script to run before the call")
	multi := fs.Bool("multi", false, "Print every result, one per line")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *fn == "" {
		return errors.New("call: -f is required")
	}

	params := make([]value.Value, fs.NArg())
	for i, arg := range fs.Args() {
		params[i] = value.Parse(arg)
	}

	return withSession(cfg, func(s *bridge.Session) error {
		if *script != "" {
			if err := s.RunFile(*script); err != nil {
				return err
			}
		}

		if !*multi {
			result, err := s.Call(*fn, params...)
			if err != nil {
				return err
			}
			fmt.Println(result)
			return nil
		}
		results, err := s.CallMulti(*fn, params...)
		if err != nil {
			return err
		}
		for _, r := range results {
			fmt.Println(r)
		}
		return nil
	})
}

// checkCommand processes `luakit check`. It compiles every file and
// reports all load errors before failing.
func checkCommand(cfg *config.Config, args []string) error {
	if len(args) == 0 {
		return errors.New("check: no scripts given")
	}
	return withSession(cfg, func(s *bridge.Session) error {
		failed := 0
		for _, path := range args {
			src, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("check: %w", err)
			}
			if err := s.Check(string(src), path); err != nil {
				fmt.Fprintln(os.Stderr, err)
				failed++
				continue
			}
			log.Infof("%s: ok", path)
		}
		if failed > 0 {
			return fmt.Errorf("check: %d of %d files failed", failed, len(args))
		}
		return nil
	})
}
