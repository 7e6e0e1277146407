package main

import (
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/chazu/luakit/bridge"
	"github.com/chazu/luakit/config"
	"github.com/chazu/luakit/server"
	"github.com/chazu/luakit/store"
)

// sessionFactory adapts newSession for the server's workers. All sessions
// share st.
func sessionFactory(cfg *config.Config, st *store.Store) server.SessionFactory {
	return func() (*bridge.Session, error) {
		return newSession(cfg, st)
	}
}

// serveCommand processes `luakit serve`.
func serveCommand(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := fs.String("addr", cfg.Server.Addr, "Listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
	}

	srv, err := server.New(
		server.WithSessionFactory(sessionFactory(cfg, st)),
		server.WithSweep(cfg.Server.SweepInterval, cfg.Server.IdleTTL),
	)
	if err != nil {
		return err
	}
	defer srv.Stop()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe(*addr) }()

	log.Noticef("serving on %s", *addr)
	select {
	case err := <-errc:
		return err
	case s := <-sig:
		log.Noticef("received %s, shutting down", s)
		return nil
	}
}

// lspCommand processes `luakit lsp`.
func lspCommand(cfg *config.Config, args []string) error {
	if len(args) > 0 {
		return errors.New("lsp: takes no arguments")
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
	}

	lsp, err := server.NewLSP(sessionFactory(cfg, st))
	if err != nil {
		return err
	}
	return lsp.Run()
}
