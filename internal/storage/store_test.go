package storage_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supernomad/internal/platform/config"
	"supernomad/internal/storage"
	"supernomad/internal/storage/memory"
)

type failingStore struct{ err error }

func (f failingStore) Load(context.Context, string) ([]byte, error) { return nil, f.err }
func (f failingStore) Save(context.Context, string, []byte) error   { return f.err }

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()

	t.Run("round trips a document", func(t *testing.T) {
		s := memory.New()
		require.NoError(t, storage.SaveJSON(ctx, s, storage.KeySubscription, map[string]string{"tier": "premium"}))

		var out map[string]string
		found, err := storage.LoadJSON(ctx, s, storage.KeySubscription, &out)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "premium", out["tier"])
	})

	t.Run("absent key is not found", func(t *testing.T) {
		var out []string
		found, err := storage.LoadJSON(ctx, memory.New(), storage.KeyTravelCountries, &out)
		require.NoError(t, err)
		assert.False(t, found)
		assert.Nil(t, out)
	})

	t.Run("corrupt document reports decode error", func(t *testing.T) {
		s := memory.New()
		require.NoError(t, s.Save(ctx, storage.KeyTravelCountries, []byte("{not json")))

		var out []string
		_, err := storage.LoadJSON(ctx, s, storage.KeyTravelCountries, &out)
		assert.ErrorContains(t, err, "decode travelCountries")
	})

	t.Run("backend errors are wrapped with the key", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := storage.SaveJSON(ctx, failingStore{err: cause}, storage.KeyPreviousLocation, struct{}{})
		assert.ErrorIs(t, err, cause)
		assert.ErrorContains(t, err, "save previousLocation")
	})
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("memory driver", func(t *testing.T) {
		s, closer, err := storage.Open(ctx, config.Storage{Driver: "memory"})
		require.NoError(t, err)
		assert.IsType(t, &memory.InMemoryStore{}, s)
		assert.NoError(t, closer.Close())
	})

	t.Run("sqlite driver creates the file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nomad.db")
		s, closer, err := storage.Open(ctx, config.Storage{Driver: "sqlite", SQLitePath: path})
		require.NoError(t, err)
		defer closer.Close()

		require.NoError(t, s.Save(ctx, storage.KeySubscription, []byte(`{"tier":"free"}`)))
		assert.FileExists(t, path)
	})

	t.Run("unknown driver", func(t *testing.T) {
		_, _, err := storage.Open(ctx, config.Storage{Driver: "etcd"})
		assert.ErrorContains(t, err, "unsupported storage driver")
	})
}
