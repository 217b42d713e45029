package curation

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/animus/internal/llm"
	"github.com/scrypster/animus/internal/storage/sqlite"
	"github.com/scrypster/animus/pkg/types"
)

// stubClient returns a canned response and counts calls.
type stubClient struct {
	mu       sync.Mutex
	calls    int
	response string
}

func (s *stubClient) Complete(_ context.Context, _ string, _ ...llm.CallOption) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.response, nil
}

func (s *stubClient) GetModel() string { return "stub" }

func newCurationStore(t *testing.T) (*sqlite.Store, *types.Anima) {
	t.Helper()
	store, err := sqlite.NewStore(filepath.Join(t.TempDir(), "animus.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	anima := &types.Anima{Name: "Echo"}
	require.NoError(t, store.CreateAnima(context.Background(), anima))
	return store, anima
}

func seedMemory(t *testing.T, store *sqlite.Store, animaID, summary string) string {
	t.Helper()
	id, _, err := store.CreateMemoryWithProvenance(context.Background(), &types.Memory{
		AnimaID: animaID,
		Summary: summary,
		State:   types.MemoryStateActive,
	}, nil, nil)
	require.NoError(t, err)
	return id
}

func TestMergePass_MergesAndArchivesSources(t *testing.T) {
	store, anima := newCurationStore(t)
	ctx := context.Background()

	a := seedMemory(t, store, anima.ID, "long chat with alice about jazz records")
	b := seedMemory(t, store, anima.ID, "another chat with alice about jazz music")

	client := &stubClient{response: `{"should_merge": true, "merged_summary": "ongoing jazz conversations with alice", "importance": 0.7}`}
	engine := NewEngine(store, client, nil, nil)

	report, err := engine.MergePass(ctx, anima.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Scanned)
	assert.Equal(t, 1, report.Merged)
	assert.Equal(t, 1, client.calls, "the consumed candidate must not get its own merge prompt")

	active, err := store.ListActiveMemories(ctx, anima.ID, []string{types.MemoryStateActive}, 10)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "ongoing jazz conversations with alice", active[0].Summary)

	for _, id := range []string{a, b} {
		m, err := store.GetMemory(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, types.MemoryStateArchived, m.State, "merge sources are archived, not deleted")
	}
}

func TestMergePass_DeclinedMergeLeavesMemoriesAlone(t *testing.T) {
	store, anima := newCurationStore(t)
	ctx := context.Background()

	seedMemory(t, store, anima.ID, "long chat with alice about jazz records")
	seedMemory(t, store, anima.ID, "another chat with alice about jazz music")

	client := &stubClient{response: `{"should_merge": false, "reasoning": "distinct sessions"}`}
	engine := NewEngine(store, client, nil, nil)

	report, err := engine.MergePass(ctx, anima.ID)
	require.NoError(t, err)
	assert.Zero(t, report.Merged)

	active, err := store.ListActiveMemories(ctx, anima.ID, []string{types.MemoryStateActive}, 10)
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

func TestMergePass_UnparseableDecisionIsSkipped(t *testing.T) {
	store, anima := newCurationStore(t)
	ctx := context.Background()

	seedMemory(t, store, anima.ID, "long chat with alice about jazz records")
	seedMemory(t, store, anima.ID, "another chat with alice about jazz music")

	client := &stubClient{response: "I would rather not say."}
	engine := NewEngine(store, client, nil, nil)

	report, err := engine.MergePass(ctx, anima.ID)
	require.NoError(t, err, "a bad per-group decision must not fail the pass")
	assert.Zero(t, report.Merged)
}

func TestReviewPass_Update(t *testing.T) {
	store, anima := newCurationStore(t)
	ctx := context.Background()
	id := seedMemory(t, store, anima.ID, "rough first draft of a memory")

	client := &stubClient{response: `[{"index": 0, "action": "UPDATE", "new_summary": "polished memory", "new_importance": 0.8}]`}
	engine := NewEngine(store, client, nil, nil)

	report, err := engine.ReviewPass(ctx, anima.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Updated)

	m, err := store.GetMemory(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "polished memory", m.Summary)
	require.NotNil(t, m.Importance)
	assert.Equal(t, 0.8, *m.Importance)
}

func TestReviewPass_DeleteIsSoft(t *testing.T) {
	store, anima := newCurationStore(t)
	ctx := context.Background()
	id := seedMemory(t, store, anima.ID, "a memory not worth keeping")

	client := &stubClient{response: `[{"index": 0, "action": "DELETE", "reasoning": "worthless"}]`}
	engine := NewEngine(store, client, nil, nil)

	report, err := engine.ReviewPass(ctx, anima.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Deleted)

	active, err := store.ListActiveMemories(ctx, anima.ID, []string{types.MemoryStateActive}, 10)
	require.NoError(t, err)
	assert.Empty(t, active)

	// Soft delete: restore brings it back.
	require.NoError(t, store.RestoreMemory(ctx, id))
	m, err := store.GetMemory(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, m.DeletedAt)
}

func TestReviewPass_SplitCreatesPartsWithProvenance(t *testing.T) {
	store, anima := newCurationStore(t)
	ctx := context.Background()
	id := seedMemory(t, store, anima.ID, "met alice and also fixed the heating")

	client := &stubClient{response: `[{"index": 0, "action": "SPLIT", "split_into": ["met alice", "fixed the heating"]}]`}
	engine := NewEngine(store, client, nil, nil)

	report, err := engine.ReviewPass(ctx, anima.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Split)

	original, err := store.GetMemory(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, types.MemoryStateArchived, original.State)

	active, err := store.ListActiveMemories(ctx, anima.ID, []string{types.MemoryStateActive}, 10)
	require.NoError(t, err)
	require.Len(t, active, 2)
	summaries := []string{active[0].Summary, active[1].Summary}
	assert.ElementsMatch(t, []string{"met alice", "fixed the heating"}, summaries)
}

func TestReviewPass_OutOfRangeIndexIsIgnored(t *testing.T) {
	store, anima := newCurationStore(t)
	ctx := context.Background()
	seedMemory(t, store, anima.ID, "an ordinary memory")

	client := &stubClient{response: `[{"index": 7, "action": "DELETE"}, {"index": 0, "action": "KEEP"}]`}
	engine := NewEngine(store, client, nil, nil)

	report, err := engine.ReviewPass(ctx, anima.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Kept)
	assert.Zero(t, report.Deleted)
}

func TestCandidateFinder_LexicalOverlap(t *testing.T) {
	store, anima := newCurationStore(t)
	ctx := context.Background()

	targetID := seedMemory(t, store, anima.ID, "walking the dog in the park")
	seedMemory(t, store, anima.ID, "walking the dog near the river")
	seedMemory(t, store, anima.ID, "quarterly tax filing deadline")

	target, err := store.GetMemory(ctx, targetID)
	require.NoError(t, err)

	finder := NewCandidateFinder(store, nil, nil, 3)
	candidates, err := finder.Find(ctx, target)
	require.NoError(t, err)

	require.Len(t, candidates, 1, "memories with no shared words are not candidates")
	assert.Equal(t, "walking the dog near the river", candidates[0].Summary)
}
