// Package config handles luakit.toml project configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/chazu/luakit/bridge"
)

// FileName is the name of the configuration file looked up by Load and
// FindAndLoad.
const FileName = "luakit.toml"

// Config represents a luakit.toml file.
type Config struct {
	Session SessionConfig `toml:"session"`
	Store   StoreConfig   `toml:"store"`
	Server  ServerConfig  `toml:"server"`
	Log     LogConfig     `toml:"log"`

	// Dir is the directory containing the luakit.toml file (set at load time).
	Dir string `toml:"-"`
}

// SessionConfig configures every Session the tools create.
type SessionConfig struct {
	// Stdlib opens the Lua standard libraries. A pointer so that an absent
	// key keeps the default of true.
	Stdlib    *bool    `toml:"stdlib"`
	ChunkName string   `toml:"chunk-name"`
	Preload   []string `toml:"preload"`
}

// StoreConfig configures the SQLite-backed store library. An empty Path
// leaves the store uninstalled.
type StoreConfig struct {
	Path  string `toml:"path"`
	Table string `toml:"table"`
}

// ServerConfig configures `luakit serve`.
type ServerConfig struct {
	Addr          string        `toml:"addr"`
	SweepInterval time.Duration `toml:"sweep-interval"`
	IdleTTL       time.Duration `toml:"idle-ttl"`
}

// LogConfig configures commonlog.
type LogConfig struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Default returns the configuration used when no luakit.toml exists.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load parses a luakit.toml file from the given directory.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var c Config
	md, err := toml.Decode(string(data), &c)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown key %q in %s", undecoded[0].String(), path)
	}

	c.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	c.applyDefaults()

	return &c, nil
}

// FindAndLoad walks up from startDir to find a luakit.toml file, then loads
// and returns it. Returns nil if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

func (c *Config) applyDefaults() {
	if c.Session.Stdlib == nil {
		on := true
		c.Session.Stdlib = &on
	}
	if c.Session.ChunkName == "" {
		c.Session.ChunkName = "luakit"
	}
	if c.Store.Table == "" {
		c.Store.Table = "kv"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = "localhost:8765"
	}
	if c.Server.SweepInterval == 0 {
		c.Server.SweepInterval = time.Minute
	}
	if c.Server.IdleTTL == 0 {
		c.Server.IdleTTL = 30 * time.Minute
	}
}

// SessionOptions returns the bridge options described by [session].
func (c *Config) SessionOptions() []bridge.Option {
	opts := []bridge.Option{bridge.WithChunkName(c.Session.ChunkName)}
	if c.Session.Stdlib != nil && !*c.Session.Stdlib {
		opts = append(opts, bridge.WithoutStdlib())
	}
	return opts
}

// PreloadPaths returns absolute paths for the configured preload scripts.
func (c *Config) PreloadPaths() []string {
	var paths []string
	for _, p := range c.Session.Preload {
		if !filepath.IsAbs(p) {
			p = filepath.Join(c.Dir, p)
		}
		paths = append(paths, p)
	}
	return paths
}

// StorePath returns the absolute store database path, or "" when the store
// is disabled.
func (c *Config) StorePath() string {
	if c.Store.Path == "" || c.Store.Path == ":memory:" || filepath.IsAbs(c.Store.Path) {
		return c.Store.Path
	}
	return filepath.Join(c.Dir, c.Store.Path)
}

// NewSession creates a Session configured by c and runs every preload
// script in it.
func (c *Config) NewSession(extra ...bridge.Option) (*bridge.Session, error) {
	s, err := bridge.New(append(c.SessionOptions(), extra...)...)
	if err != nil {
		return nil, err
	}
	if err := c.Preload(s); err != nil {
		s.Destroy()
		return nil, err
	}
	return s, nil
}

// Preload runs the configured preload scripts in s, in order.
func (c *Config) Preload(s *bridge.Session) error {
	for _, path := range c.PreloadPaths() {
		if err := s.RunFile(path); err != nil {
			return fmt.Errorf("preload %s: %w", path, err)
		}
	}
	return nil
}
