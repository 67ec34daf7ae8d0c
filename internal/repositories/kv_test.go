package repositories

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/desertthunder/licentry/internal/models"
	"github.com/desertthunder/licentry/internal/shared"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := shared.NewDatabase(":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, shared.RunMigrations(db))
	return NewSQLiteStore(db)
}

func TestKVStores(t *testing.T) {
	stores := map[string]func(t *testing.T) models.KVStore{
		"sqlite": func(t *testing.T) models.KVStore { return newSQLiteStore(t) },
		"file":   func(t *testing.T) models.KVStore { return NewFileStore(afero.NewMemMapFs(), "/state/licentry.json") },
		"memory": func(t *testing.T) models.KVStore { return NewMemoryStore() },
	}

	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			t.Run("Missing Key", func(t *testing.T) {
				store := newStore(t)
				v, ok, err := store.Get(ctx, "tokens")
				require.NoError(t, err)
				assert.False(t, ok)
				assert.Empty(t, v)
			})

			t.Run("Set Then Get", func(t *testing.T) {
				store := newStore(t)
				require.NoError(t, store.Set(ctx, "tokens", `{"a":1}`))

				v, ok, err := store.Get(ctx, "tokens")
				require.NoError(t, err)
				assert.True(t, ok)
				assert.Equal(t, `{"a":1}`, v)
			})

			t.Run("Set Overwrites", func(t *testing.T) {
				store := newStore(t)
				require.NoError(t, store.Set(ctx, "tokens", "first"))
				require.NoError(t, store.Set(ctx, "tokens", "second"))

				v, _, err := store.Get(ctx, "tokens")
				require.NoError(t, err)
				assert.Equal(t, "second", v)
			})

			t.Run("Keys Are Independent", func(t *testing.T) {
				store := newStore(t)
				require.NoError(t, store.Set(ctx, "a", "1"))
				require.NoError(t, store.Set(ctx, "b", "2"))
				require.NoError(t, store.Delete(ctx, "a"))

				_, ok, err := store.Get(ctx, "a")
				require.NoError(t, err)
				assert.False(t, ok)

				v, ok, err := store.Get(ctx, "b")
				require.NoError(t, err)
				assert.True(t, ok)
				assert.Equal(t, "2", v)
			})

			t.Run("Delete Missing Key", func(t *testing.T) {
				store := newStore(t)
				assert.NoError(t, store.Delete(ctx, "never-written"))
			})

			t.Run("Concurrent Writers", func(t *testing.T) {
				store := newStore(t)
				var wg sync.WaitGroup
				for i := 0; i < 8; i++ {
					wg.Add(1)
					go func() {
						defer wg.Done()
						assert.NoError(t, store.Set(ctx, "tokens", "value"))
					}()
				}
				wg.Wait()

				v, ok, err := store.Get(ctx, "tokens")
				require.NoError(t, err)
				assert.True(t, ok)
				assert.Equal(t, "value", v)
			})
		})
	}
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()

	t.Run("Persists Across Instances", func(t *testing.T) {
		fsys := afero.NewMemMapFs()
		require.NoError(t, NewFileStore(fsys, "/state/kv.json").Set(ctx, "tokens", "persisted"))

		v, ok, err := NewFileStore(fsys, "/state/kv.json").Get(ctx, "tokens")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "persisted", v)

		exists, err := afero.Exists(fsys, "/state/kv.json.tmp")
		require.NoError(t, err)
		assert.False(t, exists, "temp file should be renamed away")
	})

	t.Run("Corrupt File", func(t *testing.T) {
		fsys := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fsys, "/kv.json", []byte("{not json"), 0600))

		_, _, err := NewFileStore(fsys, "/kv.json").Get(ctx, "tokens")
		assert.Error(t, err)
	})

	t.Run("Empty File", func(t *testing.T) {
		fsys := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fsys, "/kv.json", nil, 0600))

		_, ok, err := NewFileStore(fsys, "/kv.json").Get(ctx, "tokens")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	t.Run("sqlite", func(t *testing.T) {
		cfg := shared.DefaultConfig()
		cfg.Cache.Driver = "sqlite"
		cfg.Cache.Path = filepath.Join(t.TempDir(), "licentry.db")

		store, closer, err := OpenStore(cfg)
		require.NoError(t, err)
		defer closer.Close()

		assert.IsType(t, &SQLiteStore{}, store)
		require.NoError(t, store.Set(ctx, "k", "v"))
	})

	t.Run("file", func(t *testing.T) {
		cfg := shared.DefaultConfig()
		cfg.Cache.Driver = "file"
		cfg.Cache.Path = filepath.Join(t.TempDir(), "nested", "kv.json")

		store, closer, err := OpenStore(cfg)
		require.NoError(t, err)
		defer closer.Close()

		assert.IsType(t, &FileStore{}, store)
		require.NoError(t, store.Set(ctx, "k", "v"))
	})

	t.Run("memory", func(t *testing.T) {
		cfg := shared.DefaultConfig()
		cfg.Cache.Driver = "memory"

		store, _, err := OpenStore(cfg)
		require.NoError(t, err)
		assert.IsType(t, &MemoryStore{}, store)
	})

	t.Run("unknown", func(t *testing.T) {
		cfg := shared.DefaultConfig()
		cfg.Cache.Driver = "redis"

		_, _, err := OpenStore(cfg)
		assert.ErrorIs(t, err, shared.ErrInvalidConfig)
	})
}
