package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todoapp/model"
)

func TestSQLiteBackendGetSet(t *testing.T) {
	b, err := NewSQLiteBackend(":memory:")
	require.NoError(t, err)
	defer b.Close()

	_, ok, err := b.Get(ThemeKey)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, b.Set(ThemeKey, []byte("light")))
	require.NoError(t, b.Set(ThemeKey, []byte("dark")))

	got, ok, err := b.Get(ThemeKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "dark", string(got))
}

func TestSQLiteBackendPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "todoapp.db")
	tasks := []model.Task{{ID: "b", Text: "Call Bob", Completed: true}}

	b, err := NewSQLiteBackend(path)
	require.NoError(t, err)
	require.NoError(t, New(b).SaveTasks(tasks))
	require.NoError(t, b.Close())

	reopened, err := NewSQLiteBackend(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, status, err := New(reopened).LoadTasks()
	require.NoError(t, err)
	assert.Empty(t, status)
	assert.Equal(t, tasks, got)
}

func TestOpenBackendKinds(t *testing.T) {
	dir := t.TempDir()

	for _, kind := range []string{BackendFile, BackendSQLite, BackendMemory} {
		b, err := OpenBackend(kind, dir)
		require.NoError(t, err, kind)
		require.NoError(t, b.Set(ThemeKey, []byte("dark")), kind)
		require.NoError(t, b.Close(), kind)
	}

	_, err := OpenBackend("redis", dir)
	assert.ErrorIs(t, err, ErrUnknownBackend)
}
