package registry

import (
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caraveld/caravel"
)

func testStores(t *testing.T) map[string]Store {
	db, err := NewSQL("sqlite3", filepath.Join(t.TempDir(), "registry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return map[string]Store{
		"inmem": NewInMem(),
		"sql":   db,
	}
}

func TestStore_UnknownEnvironment(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.GetState("staging")
			assert.IsType(t, caravel.Missing{}, err)

			_, err = store.RollbackTarget("staging")
			assert.IsType(t, caravel.Missing{}, err)
		})
	}
}

func TestStore_CommitShiftsPrevious(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Commit("staging", "1.0.0"))

			state, err := store.GetState("staging")
			require.NoError(t, err)
			assert.Equal(t, caravel.Version("1.0.0"), state.Current)
			assert.Equal(t, caravel.Version(""), state.Previous)

			require.NoError(t, store.Commit("staging", "1.1.0"))

			state, err = store.GetState("staging")
			require.NoError(t, err)
			assert.Equal(t, caravel.Version("1.1.0"), state.Current)
			assert.Equal(t, caravel.Version("1.0.0"), state.Previous)
		})
	}
}

func TestStore_CommitIdempotent(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Commit("staging", "1.0.0"))
			require.NoError(t, store.Commit("staging", "1.1.0"))

			// Committing the current version again must not clobber
			// the previous pointer.
			require.NoError(t, store.Commit("staging", "1.1.0"))

			state, err := store.GetState("staging")
			require.NoError(t, err)
			assert.Equal(t, caravel.Version("1.1.0"), state.Current)
			assert.Equal(t, caravel.Version("1.0.0"), state.Previous)
		})
	}
}

func TestStore_RollbackTarget(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Commit("staging", "1.0.0"))

			// A single committed version has nothing to roll back to.
			_, err := store.RollbackTarget("staging")
			assert.IsType(t, caravel.Missing{}, err)

			require.NoError(t, store.Commit("staging", "1.1.0"))

			target, err := store.RollbackTarget("staging")
			require.NoError(t, err)
			assert.Equal(t, caravel.Version("1.0.0"), target)
		})
	}
}

func TestStore_EnvironmentsIsolated(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Commit("staging", "1.0.0"))
			require.NoError(t, store.Commit("production", "0.9.0"))

			state, err := store.GetState("staging")
			require.NoError(t, err)
			assert.Equal(t, caravel.Version("1.0.0"), state.Current)

			state, err = store.GetState("production")
			require.NoError(t, err)
			assert.Equal(t, caravel.Version("0.9.0"), state.Current)
		})
	}
}
