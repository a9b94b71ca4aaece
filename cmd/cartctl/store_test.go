package main

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/klawrenceboxx/postergenius2025-sub000/pkg/guestid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStorage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	store, err := openSQLiteStorage(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	_, ok, err := store.Get("k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set("k", "v1"))
	require.NoError(t, store.Set("k", "v2"))
	v, ok, err := store.Get("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v2", v)

	require.NoError(t, store.Remove("k"))
	require.NoError(t, store.Remove("k"))
	_, ok, err = store.Get("k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteStorage_ReopenKeepsGuest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	store, err := openSQLiteStorage(path)
	require.NoError(t, err)
	id, ok := guestid.NewManager(store).GetOrCreate()
	require.True(t, ok)
	require.NoError(t, store.Close())

	store, err = openSQLiteStorage(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	again, ok := guestid.NewManager(store).Peek()
	require.True(t, ok)
	assert.Equal(t, id, again)
}

func TestGuest_StateDB(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	first, err := run(t, "--state-db", path, "guest")
	require.NoError(t, err)
	second, err := run(t, "--state-db", path, "guest")
	require.NoError(t, err)

	assert.True(t, guestid.Valid(strings.TrimSpace(first)))
	assert.Equal(t, first, second)
}
