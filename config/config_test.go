package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/matryer/is"

	"github.com/sekika/dodgem/store"
)

func TestLoadDefaults(t *testing.T) {
	is := is.New(t)
	var c Config
	is.NoErr(c.Load(""))
	is.Equal(c.BoardSize, 3)
	is.Equal(c.Backend, "badger")
	is.Equal(c.ShardThreshold, store.DefaultShardThreshold)
	is.Equal(c.Workers, 1)
	is.Equal(c.LogLevel, "info")
}

func TestLoadEnvOverrides(t *testing.T) {
	is := is.New(t)
	t.Setenv("DODGEM_BOARD_SIZE", "5")
	t.Setenv("DODGEM_BACKEND", "memory")
	t.Setenv("DODGEM_WORKERS", "8")

	var c Config
	is.NoErr(c.Load(""))
	is.Equal(c.BoardSize, 5)
	is.Equal(c.Backend, "memory")
	is.Equal(c.Workers, 8)
}

func TestLoadFile(t *testing.T) {
	is := is.New(t)
	path := filepath.Join(t.TempDir(), "dodgem.yaml")
	is.NoErr(os.WriteFile(path, []byte("board-size: 4\nbackend: sqlite\nlog-level: debug\n"), 0o644))

	var c Config
	is.NoErr(c.Load(path))
	is.Equal(c.BoardSize, 4)
	is.Equal(c.Backend, "sqlite")
	is.Equal(c.LogLevel, "debug")
}

func TestLoadRejectsBadValues(t *testing.T) {
	is := is.New(t)

	t.Setenv("DODGEM_BACKEND", "mongodb")
	var c Config
	is.True(c.Load("") != nil)

	t.Setenv("DODGEM_BACKEND", "memory")
	t.Setenv("DODGEM_BOARD_SIZE", "6")
	is.True(c.Load("") != nil)
}

func TestOpenStoreMemory(t *testing.T) {
	is := is.New(t)
	var c Config
	t.Setenv("DODGEM_BACKEND", "memory")
	is.NoErr(c.Load(""))

	db, err := c.OpenStore()
	is.NoErr(err)
	is.NoErr(db.Close())
}
