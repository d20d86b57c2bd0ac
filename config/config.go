// Package config loads runtime settings from an optional YAML file and
// DODGEM_* environment variables.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/sekika/dodgem/store"
)

type Config struct {
	BoardSize      int    `mapstructure:"board-size"`
	Backend        string `mapstructure:"backend"`
	DataDir        string `mapstructure:"data-dir"`
	EvalmapPath    string `mapstructure:"evalmap-path"`
	ShardThreshold int    `mapstructure:"shard-threshold"`
	Workers        int    `mapstructure:"workers"`
	LogLevel       string `mapstructure:"log-level"`
}

// Load fills c from defaults, then the YAML file at path (optional,
// may be empty), then DODGEM_* environment variables, later sources
// winning.
func (c *Config) Load(path string) error {
	v := viper.New()
	v.SetDefault("board-size", 3)
	v.SetDefault("backend", "badger")
	v.SetDefault("data-dir", "./data")
	v.SetDefault("evalmap-path", "./data/evalmap.json.gz")
	v.SetDefault("shard-threshold", store.DefaultShardThreshold)
	v.SetDefault("workers", 1)
	v.SetDefault("log-level", "info")

	v.SetEnvPrefix("dodgem")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("config file %s: %w", path, err)
		}
	}
	if err := v.Unmarshal(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return c.validate()
}

func (c *Config) validate() error {
	switch c.Backend {
	case "badger", "sqlite", "memory":
	default:
		return fmt.Errorf("config: unknown backend %q (want badger, sqlite or memory)", c.Backend)
	}
	if c.BoardSize < 3 || c.BoardSize > 5 {
		return fmt.Errorf("config: board size %d not supported (want 3-5)", c.BoardSize)
	}
	return nil
}

// OpenStore opens the configured storage backend. The memory backend
// is only useful for experiments: it forgets everything on exit.
func (c *Config) OpenStore() (*store.DB, error) {
	var (
		docs store.DocStore
		err  error
	)
	switch c.Backend {
	case "badger":
		docs, err = store.OpenBadger(store.BadgerConfig{Path: c.DataDir})
	case "sqlite":
		docs, err = store.OpenSQLite(filepath.Join(c.DataDir, "dodgem.db"))
	case "memory":
		docs = store.NewMemory()
	default:
		return nil, fmt.Errorf("unknown backend %q", c.Backend)
	}
	if err != nil {
		return nil, err
	}
	return store.New(docs, store.WithShardThreshold(c.ShardThreshold)), nil
}
