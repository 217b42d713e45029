package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/animus/internal/storage/sqlite"
	"github.com/scrypster/animus/pkg/types"
)

func newIngestStore(t *testing.T) (*sqlite.Store, *types.Anima) {
	t.Helper()
	store, err := sqlite.NewStore(filepath.Join(t.TempDir(), "animus.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	anima := &types.Anima{Name: "Echo"}
	require.NoError(t, store.CreateAnima(context.Background(), anima))
	return store, anima
}

func waitForEvents(t *testing.T, store *sqlite.Store, animaID string, want int) []*types.Event {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		events, err := store.ListEventsSince(context.Background(), animaID, time.Time{})
		require.NoError(t, err)
		if len(events) >= want {
			return events
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d ingested events", want)
	return nil
}

func TestWatcher_IngestsDroppedFile(t *testing.T) {
	store, anima := newIngestStore(t)
	dataPath := t.TempDir()

	watcher := NewWatcher(dataPath, store)
	require.NoError(t, watcher.Start())
	t.Cleanup(watcher.Stop)

	writer := NewWriter(dataPath)
	require.NoError(t, writer.Write(FileEvent{
		AnimaID: anima.ID,
		Role:    "user",
		Author:  "alice",
		Content: "dropped through the inbox",
	}))

	events := waitForEvents(t, store, anima.ID, 1)
	assert.Equal(t, "dropped through the inbox", events[0].Content)
	assert.Equal(t, "alice", events[0].Author)
	assert.Contains(t, events[0].DedupeKey, "file:", "the filename becomes the dedupe key")

	// The consumed file is removed from the inbox.
	deadline := time.Now().Add(5 * time.Second)
	for {
		entries, err := os.ReadDir(filepath.Join(dataPath, "inbox"))
		require.NoError(t, err)
		if len(entries) == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("ingested file was not removed")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestWatcher_DrainsExistingFilesOnStart(t *testing.T) {
	store, anima := newIngestStore(t)
	dataPath := t.TempDir()

	// File dropped before the watcher exists, e.g. while the daemon was down.
	writer := NewWriter(dataPath)
	require.NoError(t, writer.Write(FileEvent{AnimaID: anima.ID, Content: "left over"}))

	watcher := NewWatcher(dataPath, store)
	require.NoError(t, watcher.Start())
	t.Cleanup(watcher.Stop)

	events := waitForEvents(t, store, anima.ID, 1)
	assert.Equal(t, "left over", events[0].Content)
}

func TestIngest_ReplayIsNoOp(t *testing.T) {
	store, anima := newIngestStore(t)
	watcher := NewWatcher(t.TempDir(), store)

	payload := []byte(`{"anima_id": "` + anima.ID + `", "content": "once only"}`)
	require.NoError(t, watcher.ingest("123.event", payload))
	require.NoError(t, watcher.ingest("123.event", payload), "a replayed file resolves as already ingested")

	events, err := store.ListEventsSince(context.Background(), anima.ID, time.Time{})
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestIngest_RejectsIncompletePayload(t *testing.T) {
	store, _ := newIngestStore(t)
	watcher := NewWatcher(t.TempDir(), store)

	assert.Error(t, watcher.ingest("bad.event", []byte(`{"content": "no anima"}`)))
	assert.Error(t, watcher.ingest("bad.event", []byte(`not json`)))
}
