// Package config loads hashio configuration from TOML files
// and builds the backend it describes.
package config

import (
	"context"
	"log/slog"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/bobg/hashio"
	"github.com/bobg/hashio/legacy"
	"github.com/bobg/hashio/store"
	_ "github.com/bobg/hashio/store/bolt"
	_ "github.com/bobg/hashio/store/file"
	_ "github.com/bobg/hashio/store/logging"
	_ "github.com/bobg/hashio/store/lru"
	_ "github.com/bobg/hashio/store/mem"
	_ "github.com/bobg/hashio/store/metrics"
	_ "github.com/bobg/hashio/store/pg"
	_ "github.com/bobg/hashio/store/sqlite3"
)

// Config is the top-level configuration.
type Config struct {
	Store   StoreConfig  `toml:"store"`
	Legacy  LegacyConfig `toml:"legacy"`
	Journal string       `toml:"journal"` // path of the task journal's head file
}

// StoreConfig describes the backend.
type StoreConfig struct {
	Type    string `toml:"type"`    // a registered backend type: file, bolt, mem, sqlite3, pg
	Root    string `toml:"root"`    // for file (a directory) and bolt (a database file)
	Conn    string `toml:"conn"`    // for sqlite3 and pg
	Cache   int    `toml:"cache"`   // LRU cache entries, 0 for none
	Log     bool   `toml:"log"`     // log every backend operation
	Metrics bool   `toml:"metrics"` // count and time backend operations
}

// LegacyConfig locates an optional version-1 store to migrate from.
type LegacyConfig struct {
	Root string `toml:"root"`
}

// Default is the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Type: "file",
			Root: "hashio.d",
		},
		Journal: "hashio.d/HEAD",
	}
}

// Load reads the TOML file at path.
// Settings absent from the file keep their Default values.
func Load(path string) (*Config, error) {
	c := Default()
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, errors.Errorf("unknown setting %s in %s", undecoded[0], path)
	}
	return c, c.validate()
}

// Parse is like Load but reads TOML text.
func Parse(text string) (*Config, error) {
	c := Default()
	md, err := toml.Decode(text, c)
	if err != nil {
		return nil, errors.Wrap(err, "decoding config")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, errors.Errorf("unknown setting %s", undecoded[0])
	}
	return c, c.validate()
}

func (c *Config) validate() error {
	if c.Store.Type == "" {
		return errors.New("store type not set")
	}
	if c.Store.Cache < 0 {
		return errors.Errorf("negative cache size %d", c.Store.Cache)
	}
	return nil
}

// BackendConf is the registry configuration for the backend c describes,
// wrapped as configured.
// Metrics are registered with prometheus.DefaultRegisterer.
func (c *Config) BackendConf() map[string]interface{} {
	conf := map[string]interface{}{
		"type": c.Store.Type,
		"root": c.Store.Root,
		"conn": c.Store.Conn,
	}
	if c.Store.Cache > 0 {
		conf = map[string]interface{}{
			"type":   "lru",
			"size":   c.Store.Cache,
			"nested": conf,
		}
	}
	if c.Store.Metrics {
		conf = map[string]interface{}{
			"type":   "metrics",
			"nested": conf,
		}
	}
	if c.Store.Log {
		conf = map[string]interface{}{
			"type":   "logging",
			"nested": conf,
		}
	}
	return conf
}

// Backend creates the backend c describes.
func (c *Config) Backend(ctx context.Context) (hashio.Backend, error) {
	conf := c.BackendConf()
	typ := conf["type"].(string)
	b, err := store.Create(ctx, typ, conf)
	return b, errors.Wrapf(err, "creating %s backend", typ)
}

// OpenStore creates a hashio.Store on the backend c describes.
func (c *Config) OpenStore(ctx context.Context, logger *slog.Logger) (*hashio.Store, error) {
	b, err := c.Backend(ctx)
	if err != nil {
		return nil, err
	}
	return hashio.New(b, hashio.WithLogger(logger)), nil
}

// LegacyStore opens the configured legacy store,
// or returns nil if there is none.
func (c *Config) LegacyStore(logger *slog.Logger) *legacy.Store {
	if c.Legacy.Root == "" {
		return nil
	}
	return legacy.Open(c.Legacy.Root, logger)
}
