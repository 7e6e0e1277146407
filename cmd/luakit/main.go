// luakit CLI - run Lua scripts against the host bridge, serve sessions
// over Connect RPC, run the Lua language server and generate glue code.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/luakit/bridge"
	"github.com/chazu/luakit/config"
	"github.com/chazu/luakit/store"
)

var log = commonlog.GetLogger("luakit.cli")

func main() {
	verbosity := flag.Int("v", -1, "Log verbosity (0 errors only, 4 debug); default from luakit.toml")
	configDir := flag.String("config", ".", "Directory to search (upward) for luakit.toml")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: luakit [options] <command> [arguments]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  run file.lua...              Run scripts in one session\n")
		fmt.Fprintf(os.Stderr, "  call -f name [args...]       Call a global function and print its results\n")
		fmt.Fprintf(os.Stderr, "  check file.lua...            Compile scripts without running them\n")
		fmt.Fprintf(os.Stderr, "  serve [-addr host:port]      Serve sessions over Connect RPC\n")
		fmt.Fprintf(os.Stderr, "  lsp                          Run the Lua language server on stdio\n")
		fmt.Fprintf(os.Stderr, "  gen [-o file] package        Generate RegisterExports for //luakit:export functions\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  luakit run init.lua main.lua\n")
		fmt.Fprintf(os.Stderr, "  luakit call -s lib.lua -f add 1 2\n")
		fmt.Fprintf(os.Stderr, "  luakit serve -addr :8765\n")
		fmt.Fprintf(os.Stderr, "  luakit gen ./hostfuncs\n")
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := loadConfig(*configDir)
	if err != nil {
		fatalf("Error loading %s: %v", config.FileName, err)
	}
	configureLogging(cfg, *verbosity)

	cmd, args := flag.Arg(0), flag.Args()[1:]
	switch cmd {
	case "run":
		err = runCommand(cfg, args)
	case "call":
		err = callCommand(cfg, args)
	case "check":
		err = checkCommand(cfg, args)
	case "serve":
		err = serveCommand(cfg, args)
	case "lsp":
		err = lspCommand(cfg, args)
	case "gen":
		err = genCommand(args)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		fatalf("Error: %v", err)
	}
}

// loadConfig finds luakit.toml at or above dir, falling back to defaults.
func loadConfig(dir string) (*config.Config, error) {
	cfg, err := config.FindAndLoad(dir)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.Default()
		cfg.Dir = dir
	}
	return cfg, nil
}

// configureLogging sets up commonlog. A -v flag overrides [log].verbosity.
func configureLogging(cfg *config.Config, verbosity int) {
	if verbosity < 0 {
		verbosity = cfg.Log.Verbosity
	}
	var path *string
	if cfg.Log.File != "" {
		path = &cfg.Log.File
	}
	commonlog.Configure(verbosity, path)
}

// openStore opens the store configured by [store], or returns nil when
// none is configured.
func openStore(cfg *config.Config) (*store.Store, error) {
	path := cfg.StorePath()
	if path == "" {
		return nil, nil
	}
	return store.Open(path, cfg.Store.Table)
}

// newSession builds a Session from the config. st, when non-nil, is
// installed before the preload scripts run so they can use it.
func newSession(cfg *config.Config, st *store.Store) (*bridge.Session, error) {
	s, err := bridge.New(cfg.SessionOptions()...)
	if err != nil {
		return nil, err
	}
	if st != nil {
		if err := st.Install(s); err != nil {
			s.Destroy()
			return nil, err
		}
		log.Debugf("store %s installed", st.Path())
	}
	if err := cfg.Preload(s); err != nil {
		s.Destroy()
		return nil, err
	}
	return s, nil
}

// withSession runs fn against a fresh Session and tears everything down
// afterwards.
func withSession(cfg *config.Config, fn func(*bridge.Session) error) error {
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	if st != nil {
		defer func() {
			if err := st.Close(); err != nil {
				log.Warningf("closing store: %s", err)
			}
		}()
	}

	s, err := newSession(cfg, st)
	if err != nil {
		return err
	}
	defer s.Destroy()
	return fn(s)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
