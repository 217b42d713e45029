package synthesis

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/animus/internal/checkpoint"
	"github.com/scrypster/animus/internal/llm"
	"github.com/scrypster/animus/internal/storage"
	"github.com/scrypster/animus/internal/storage/sqlite"
	"github.com/scrypster/animus/pkg/types"
)

// fakeClient counts calls and returns a canned response.
type fakeClient struct {
	mu       sync.Mutex
	calls    int
	response string
	err      error
}

func (f *fakeClient) Complete(_ context.Context, _ string, _ ...llm.CallOption) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func (f *fakeClient) GetModel() string { return "fake" }

func (f *fakeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// flakyStore fails CreateMemoryWithProvenance a set number of times before
// delegating, to simulate a transient write failure at the persist stage.
type flakyStore struct {
	storage.Store
	failures int
}

func (s *flakyStore) CreateMemoryWithProvenance(ctx context.Context, memory *types.Memory, eventIDs, memoryIDs []string) (string, []string, error) {
	if s.failures > 0 {
		s.failures--
		return "", nil, errors.New("write hiccup")
	}
	return s.Store.CreateMemoryWithProvenance(ctx, memory, eventIDs, memoryIDs)
}

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.NewStore(filepath.Join(t.TempDir(), "animus.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// seedAnima creates an anima with n events after it.
func seedAnima(t *testing.T, store storage.Store, n int) *types.Anima {
	t.Helper()
	ctx := context.Background()
	anima := &types.Anima{Name: "Echo"}
	require.NoError(t, store.CreateAnima(ctx, anima))
	time.Sleep(10 * time.Millisecond) // events must land strictly after the baseline

	for i := 0; i < n; i++ {
		require.NoError(t, store.CreateEvent(ctx, &types.Event{
			AnimaID: anima.ID,
			Role:    "user",
			Author:  "alice",
			Content: "hello there",
		}))
	}
	return anima
}

// eventOnlyConfig makes scoring deterministic: 0.5 per event, nothing else.
func eventOnlyConfig(threshold float64) Config {
	return Config{
		Threshold: threshold,
		Weights:   Weights{Event: 0.5},
	}
}

func TestPipeline_EndToEnd(t *testing.T) {
	store := newTestStore(t)
	anima := seedAnima(t, store, 2)
	client := &fakeClient{response: `{"summary": "met alice and said hello", "importance": 0.6}`}

	// Two events at 0.5 each land exactly on the threshold; the gate is
	// inclusive.
	p := NewPipeline(store, client, checkpoint.NewMemoryStore(), nil, eventOnlyConfig(1.0))
	state, err := p.Run(context.Background(), anima.ID, "run-1")
	require.NoError(t, err)

	assert.True(t, state.SynthesisTriggered)
	assert.Empty(t, state.Error)
	assert.True(t, state.Completed())
	assert.Equal(t, 2, state.EventCount)
	assert.Equal(t, 1.0, state.AccumulationScore)
	require.NotEmpty(t, state.MemoryID)
	assert.Len(t, state.ProvenanceLinks, 2, "one provenance link per source event")
	assert.Equal(t, 1, client.callCount())

	memory, err := store.GetMemory(context.Background(), state.MemoryID)
	require.NoError(t, err)
	assert.Equal(t, "met alice and said hello", memory.Summary)
	assert.Equal(t, types.MemoryStateActive, memory.State)
	require.NotNil(t, memory.Importance)
	assert.Equal(t, 0.6, *memory.Importance)
	assert.NotNil(t, memory.TimeStart)
	assert.NotNil(t, memory.TimeEnd)
}

func TestPipeline_BelowThresholdSkips(t *testing.T) {
	store := newTestStore(t)
	anima := seedAnima(t, store, 2)
	client := &fakeClient{response: `{"summary": "should never be called"}`}

	p := NewPipeline(store, client, checkpoint.NewMemoryStore(), nil, eventOnlyConfig(100))
	state, err := p.Run(context.Background(), anima.ID, "run-1")
	require.NoError(t, err)

	assert.False(t, state.SynthesisTriggered)
	assert.Equal(t, SkipBelowThreshold, state.SkipReason)
	assert.Empty(t, state.MemoryID)
	assert.Empty(t, state.ProvenanceLinks)
	assert.True(t, state.Completed())
	assert.Equal(t, 0, client.callCount(), "skipped runs must not call the LLM")
}

func TestPipeline_NoEventsShortCircuits(t *testing.T) {
	store := newTestStore(t)
	anima := seedAnima(t, store, 0)
	client := &fakeClient{}

	p := NewPipeline(store, client, checkpoint.NewMemoryStore(), nil, eventOnlyConfig(1.0))
	state, err := p.Run(context.Background(), anima.ID, "run-1")
	require.NoError(t, err)

	assert.False(t, state.SynthesisTriggered)
	assert.Equal(t, SkipNoEvents, state.SkipReason)
	assert.Zero(t, state.AccumulationScore)
	assert.Zero(t, state.TimeFactor)
	assert.Zero(t, state.TokenFactor)
	assert.Equal(t, 0, client.callCount())
}

func TestPipeline_MissingSummaryIsFatal(t *testing.T) {
	store := newTestStore(t)
	anima := seedAnima(t, store, 2)
	client := &fakeClient{response: `{"content": "no summary here"}`}

	p := NewPipeline(store, client, checkpoint.NewMemoryStore(), nil, eventOnlyConfig(1.0))
	state, err := p.Run(context.Background(), anima.ID, "run-1")
	require.NoError(t, err, "fatal conditions resolve to a terminal state, not an error")

	assert.NotEmpty(t, state.Error)
	assert.Empty(t, state.MemoryID)
	assert.True(t, state.Completed())

	memories, err := store.ListActiveMemories(context.Background(), anima.ID, nil, 10)
	require.NoError(t, err)
	assert.Empty(t, memories, "a failed run must not persist a memory")
}

func TestPipeline_ResumeDoesNotRepeatLLMCall(t *testing.T) {
	store := newTestStore(t)
	anima := seedAnima(t, store, 2)
	client := &fakeClient{response: `{"summary": "resumable memory"}`}
	flaky := &flakyStore{Store: store, failures: 1}
	checkpoints := checkpoint.NewMemoryStore()

	p := NewPipeline(flaky, client, checkpoints, nil, eventOnlyConfig(1.0))

	// First invocation gets through the LLM call, then fails at persist.
	state, err := p.Run(context.Background(), anima.ID, "run-1")
	require.Error(t, err)
	assert.False(t, state.Completed())
	assert.Equal(t, 1, client.callCount())

	// Retried with the same run ID: resumes at persist, no second LLM call.
	state, err = p.Run(context.Background(), anima.ID, "run-1")
	require.NoError(t, err)
	assert.True(t, state.Completed())
	assert.Empty(t, state.Error)
	require.NotEmpty(t, state.MemoryID)
	assert.Equal(t, 1, client.callCount(), "resume must not re-invoke the LLM")
}

func TestPipeline_CompletedRunIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	anima := seedAnima(t, store, 2)
	client := &fakeClient{response: `{"summary": "first and only"}`}

	p := NewPipeline(store, client, checkpoint.NewMemoryStore(), nil, eventOnlyConfig(1.0))
	first, err := p.Run(context.Background(), anima.ID, "run-1")
	require.NoError(t, err)

	second, err := p.Run(context.Background(), anima.ID, "run-1")
	require.NoError(t, err)

	assert.Equal(t, first.MemoryID, second.MemoryID)
	assert.Equal(t, 1, client.callCount())

	memories, err := store.ListActiveMemories(context.Background(), anima.ID, nil, 10)
	require.NoError(t, err)
	assert.Len(t, memories, 1, "re-invoking a completed run must not duplicate the memory")
}
