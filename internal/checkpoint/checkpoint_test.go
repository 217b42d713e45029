package checkpoint

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/animus/internal/storage/sqlite"
)

type runState struct {
	Stage string  `json:"stage"`
	Score float64 `json:"score"`
}

func testStoreContract(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	var out runState
	found, err := store.Load(ctx, "missing", &out)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Save(ctx, "run-1", runState{Stage: "score", Score: 4.5}))
	require.NoError(t, store.Save(ctx, "run-1", runState{Stage: "persist", Score: 4.5}))

	found, err = store.Load(ctx, "run-1", &out)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "persist", out.Stage, "save replaces the previous state")
	assert.Equal(t, 4.5, out.Score)

	require.NoError(t, store.Delete(ctx, "run-1"))
	found, err = store.Load(ctx, "run-1", &out)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Delete(ctx, "run-1"), "deleting a missing key is not an error")
}

func TestMemoryStore(t *testing.T) {
	testStoreContract(t, NewMemoryStore())
}

func TestSQLStore(t *testing.T) {
	backend, err := sqlite.NewStore(filepath.Join(t.TempDir(), "animus.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	testStoreContract(t, NewSQLStore(backend.DB(), DialectSQLite))
}

func TestSQLStore_KeysAreIndependent(t *testing.T) {
	backend, err := sqlite.NewStore(filepath.Join(t.TempDir(), "animus.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	store := NewSQLStore(backend.DB(), DialectSQLite)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "synthesis:a:run-1", runState{Stage: "gate"}))
	require.NoError(t, store.Save(ctx, "synthesis:b:run-1", runState{Stage: "persist"}))

	var out runState
	found, err := store.Load(ctx, "synthesis:a:run-1", &out)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "gate", out.Stage)
}
