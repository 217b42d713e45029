package synthesis

import (
	"context"
	"fmt"
	"time"

	"github.com/scrypster/animus/internal/storage"
	"github.com/scrypster/animus/pkg/types"
)

// Persister writes the synthesized memory and its provenance links in one
// atomic transaction, so an interrupted run never leaves a memory without
// its event citations.
type Persister struct {
	memories storage.MemoryStore
}

// NewPersister creates a persister over the memory store.
func NewPersister(memories storage.MemoryStore) *Persister {
	return &Persister{memories: memories}
}

// Persist creates the memory from the validated decision with one
// provenance link per source event. The memory's time span covers the
// earliest and latest event timestamps of the batch.
func (p *Persister) Persist(ctx context.Context, animaID string, decision *Decision, events []*types.Event) (string, []string, error) {
	memory := &types.Memory{
		AnimaID:    animaID,
		Summary:    decision.Summary,
		Importance: decision.Importance,
		Confidence: decision.Confidence,
		State:      types.MemoryStateActive,
	}
	if decision.Content != nil {
		memory.Content = *decision.Content
	}
	if start, end, ok := eventSpan(events); ok {
		memory.TimeStart = &start
		memory.TimeEnd = &end
	}

	eventIDs := make([]string, len(events))
	for i, e := range events {
		eventIDs[i] = e.ID
	}

	memoryID, linkIDs, err := p.memories.CreateMemoryWithProvenance(ctx, memory, eventIDs, nil)
	if err != nil {
		return "", nil, fmt.Errorf("failed to persist memory: %w", err)
	}
	return memoryID, linkIDs, nil
}

// eventSpan returns the earliest and latest event timestamps in the batch.
func eventSpan(events []*types.Event) (time.Time, time.Time, bool) {
	if len(events) == 0 {
		return time.Time{}, time.Time{}, false
	}
	start := eventTimestamp(events[0])
	end := start
	for _, e := range events[1:] {
		ts := eventTimestamp(e)
		if ts.Before(start) {
			start = ts
		}
		if ts.After(end) {
			end = ts
		}
	}
	return start, end, true
}
