package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/enso/internal/db"
	"github.com/soyeahso/enso/internal/logging"
)

func backends(t *testing.T) map[string]Backend {
	t.Helper()
	database, err := db.Open(":memory:", logging.New(nil, "silent"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	return map[string]Backend{
		"memory": NewMemoryBackend(),
		"file":   NewFileBackend(filepath.Join(t.TempDir(), "enso", "settings.json")),
		"sqlite": NewSQLiteBackend(database),
	}
}

func TestBackends_Contract(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			got, err := b.Get(ctx, "enso-settings")
			require.NoError(t, err)
			assert.Nil(t, got, "missing key reads as nil")

			require.NoError(t, b.Put(ctx, "enso-settings", map[string]any{
				"state":   map[string]any{"theme": "dark", "fontSize": 16},
				"version": 3,
			}))
			require.NoError(t, b.Put(ctx, "enso-todos", map[string]any{"state": map[string]any{}}))

			got, err = b.Get(ctx, "enso-settings")
			require.NoError(t, err)
			state := got["state"].(map[string]any)
			assert.Equal(t, "dark", state["theme"])
			assert.Equal(t, float64(16), state["fontSize"])
			assert.Equal(t, float64(3), got["version"])

			keys, err := b.Keys(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"enso-settings", "enso-todos"}, keys)

			require.NoError(t, b.Delete(ctx, "enso-todos"))
			require.NoError(t, b.Delete(ctx, "enso-todos"), "deleting a missing key is a no-op")

			keys, err = b.Keys(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"enso-settings"}, keys)

			require.NoError(t, b.Close())
			_, err = b.Get(ctx, "enso-settings")
			assert.ErrorIs(t, err, ErrClosed)
			assert.ErrorIs(t, b.Put(ctx, "x", map[string]any{}), ErrClosed)
		})
	}
}

func TestBackends_ReturnedMapsAreDetached(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			value := map[string]any{"theme": "dark"}
			require.NoError(t, b.Put(ctx, "k", value))
			value["theme"] = "light"

			got, err := b.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, "dark", got["theme"])

			got["theme"] = "mutated"
			again, err := b.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, "dark", again["theme"])
		})
	}
}

func TestFileBackend_PreservesForeignKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"other-app":{"x":1}}`), 0o600))

	b := NewFileBackend(path)
	require.NoError(t, b.Put(context.Background(), "enso-settings", map[string]any{"state": map[string]any{}}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var all map[string]any
	require.NoError(t, json.Unmarshal(data, &all))
	assert.Contains(t, all, "other-app")
	assert.Contains(t, all, "enso-settings")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileBackend_CorruptFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o600))

	b := NewFileBackend(path)
	_, err := b.Get(ctx, "enso-settings")
	assert.Error(t, err)

	require.NoError(t, b.Put(ctx, "enso-settings", map[string]any{"version": 3}))
	assert.FileExists(t, path+".corrupt")

	got, err := b.Get(ctx, "enso-settings")
	require.NoError(t, err)
	assert.Equal(t, float64(3), got["version"])
}

func TestFileBackend_NonObjectValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"enso-settings":"oops"}`), 0o600))

	_, err := NewFileBackend(path).Get(context.Background(), "enso-settings")
	assert.Error(t, err)
}

func TestFileBackend_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	got, err := NewFileBackend(path).Get(context.Background(), "enso-settings")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestAdapter(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	a := NewAdapter(b, "enso-settings")
	assert.Equal(t, "enso-settings", a.Key())
	assert.Same(t, b, a.Backend())

	got, err := a.Read(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, a.Write(ctx, map[string]any{"version": 3}))
	require.NoError(t, b.Put(ctx, "enso-todos", map[string]any{"state": map[string]any{}}))

	got, err = a.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, float64(3), got["version"])

	require.NoError(t, a.RemoveKey(ctx, "enso-todos"))
	keys, err := b.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"enso-settings"}, keys)
}

func TestAdapter_WrapsErrors(t *testing.T) {
	b := NewMemoryBackend()
	b.Close()
	a := NewAdapter(b, "enso-settings")

	_, err := a.Read(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	assert.Contains(t, err.Error(), "enso-settings")
	assert.ErrorIs(t, a.Write(context.Background(), map[string]any{}), ErrClosed)
}
