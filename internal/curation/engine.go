package curation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/scrypster/animus/internal/llm"
	"github.com/scrypster/animus/internal/notify"
	"github.com/scrypster/animus/internal/storage"
	"github.com/scrypster/animus/pkg/types"
)

const (
	// mergeScanLimit caps how many active memories one merge pass considers.
	mergeScanLimit = 50

	// reviewBatchSize caps how many memories go into one review prompt.
	reviewBatchSize = 20

	// knowledgeContextItems is how much knowledge context is fetched for
	// prompts; the prompt itself truncates further.
	knowledgeContextItems = 25
)

// Report summarizes what a curation pass did.
type Report struct {
	Scanned int
	Merged  int
	Updated int
	Split   int
	Deleted int
	Kept    int
}

// Engine runs the deep curation passes over an anima's persisted memories.
// Per-memory LLM or parse failures are logged and skipped, not fatal: the
// pass is bulk work that can always run again.
type Engine struct {
	store     storage.Store
	client    llm.Client
	finder    *CandidateFinder
	publisher notify.Publisher
}

// NewEngine wires a curation engine. finder may be nil, in which case merge
// candidates come from lexical overlap only.
func NewEngine(store storage.Store, client llm.Client, finder *CandidateFinder, publisher notify.Publisher) *Engine {
	if finder == nil {
		finder = NewCandidateFinder(store, nil, nil, 0)
	}
	if publisher == nil {
		publisher = notify.NopPublisher{}
	}
	return &Engine{store: store, client: client, finder: finder, publisher: publisher}
}

// curationContext loads the identity and knowledge rendered into prompts.
// Both are optional context: a missing identity is not an error.
func (e *Engine) curationContext(ctx context.Context, animaID string) (*types.Identity, []*types.Knowledge, error) {
	identity, err := e.store.GetIdentity(ctx, animaID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, nil, fmt.Errorf("failed to load identity context: %w", err)
	}
	knowledge, err := e.store.ListRecentKnowledge(ctx, animaID, knowledgeContextItems)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load knowledge context: %w", err)
	}
	return identity, knowledge, nil
}

// MergePass scans the anima's active memories, finds merge candidates for
// each, and asks the model for a binary merge decision per candidate group.
// Approved merges create a new memory with provenance links back to every
// source memory, then archive the sources.
func (e *Engine) MergePass(ctx context.Context, animaID string) (*Report, error) {
	identity, knowledge, err := e.curationContext(ctx, animaID)
	if err != nil {
		return nil, err
	}
	memories, err := e.store.ListActiveMemories(ctx, animaID, []string{types.MemoryStateActive}, mergeScanLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list memories: %w", err)
	}

	report := &Report{Scanned: len(memories)}
	consumed := make(map[string]bool)

	for _, target := range memories {
		if consumed[target.ID] {
			continue
		}
		candidates, err := e.finder.Find(ctx, target)
		if err != nil {
			return report, fmt.Errorf("failed to find merge candidates: %w", err)
		}
		group := []*types.Memory{target}
		for _, c := range candidates {
			if !consumed[c.ID] {
				group = append(group, c)
			}
		}
		if len(group) < 2 {
			continue
		}

		raw, err := e.client.Complete(ctx, BuildMergePrompt(group, identity, knowledge))
		if err != nil {
			log.Printf("curation: merge LLM call failed for memory %s: %v", target.ID, err)
			continue
		}
		decision, err := ParseMergeDecision(raw)
		if err != nil {
			log.Printf("curation: unusable merge decision for memory %s: %v", target.ID, err)
			continue
		}
		if !decision.ShouldMerge {
			continue
		}

		mergedID, err := e.applyMerge(ctx, animaID, group, decision)
		if err != nil {
			return report, err
		}
		for _, m := range group {
			consumed[m.ID] = true
		}
		report.Merged++
		e.publisher.Publish(notify.RunEvent{
			Type: notify.EventMemoryMerged, AnimaID: animaID, MemoryID: mergedID,
		})
	}
	return report, nil
}

// applyMerge creates the merged memory with memory-to-memory provenance and
// archives the sources. The merged memory's time span covers the union of
// the sources' spans.
func (e *Engine) applyMerge(ctx context.Context, animaID string, group []*types.Memory, decision *MergeDecision) (string, error) {
	merged := &types.Memory{
		AnimaID:    animaID,
		Summary:    decision.MergedSummary,
		Importance: &decision.Importance,
		Confidence: &decision.Confidence,
		State:      types.MemoryStateActive,
	}
	merged.TimeStart, merged.TimeEnd = groupSpan(group)

	sourceIDs := make([]string, len(group))
	for i, m := range group {
		sourceIDs[i] = m.ID
	}
	mergedID, _, err := e.store.CreateMemoryWithProvenance(ctx, merged, nil, sourceIDs)
	if err != nil {
		return "", fmt.Errorf("failed to persist merged memory: %w", err)
	}

	for _, m := range group {
		m.State = types.MemoryStateArchived
		if err := e.store.UpdateMemory(ctx, m); err != nil {
			return "", fmt.Errorf("failed to archive merged source %s: %w", m.ID, err)
		}
	}
	return mergedID, nil
}

// ReviewPass sends one batch of active memories through the review prompt
// and applies the per-memory verdicts.
func (e *Engine) ReviewPass(ctx context.Context, animaID string) (*Report, error) {
	identity, knowledge, err := e.curationContext(ctx, animaID)
	if err != nil {
		return nil, err
	}
	memories, err := e.store.ListActiveMemories(ctx, animaID, []string{types.MemoryStateActive}, reviewBatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list memories: %w", err)
	}
	report := &Report{Scanned: len(memories)}
	if len(memories) == 0 {
		return report, nil
	}

	raw, err := e.client.Complete(ctx, BuildReviewPrompt(memories, identity, knowledge))
	if err != nil {
		return report, fmt.Errorf("review LLM call failed: %w", err)
	}
	decisions, err := ParseReviewDecisions(raw)
	if err != nil {
		return report, fmt.Errorf("failed to parse review decisions: %w", err)
	}

	for _, d := range decisions {
		if d.Index < 0 || d.Index >= len(memories) {
			log.Printf("curation: review decision index %d out of range, skipping", d.Index)
			continue
		}
		if err := e.applyReview(ctx, memories[d.Index], d, report); err != nil {
			return report, err
		}
	}
	return report, nil
}

// applyReview applies one review verdict to its memory.
func (e *Engine) applyReview(ctx context.Context, memory *types.Memory, d *ReviewDecision, report *Report) error {
	switch d.Action {
	case ActionKeep:
		report.Kept++
		return nil

	case ActionUpdate:
		if d.Summary != nil {
			memory.Summary = *d.Summary
		}
		if d.Importance != nil {
			memory.Importance = d.Importance
		}
		if d.Confidence != nil {
			memory.Confidence = d.Confidence
		}
		if err := e.store.UpdateMemory(ctx, memory); err != nil {
			return fmt.Errorf("failed to update memory %s: %w", memory.ID, err)
		}
		report.Updated++
		return nil

	case ActionDelete:
		if err := e.store.DeleteMemory(ctx, memory.ID); err != nil {
			return fmt.Errorf("failed to delete memory %s: %w", memory.ID, err)
		}
		report.Deleted++
		return nil

	case ActionSplit:
		for _, summary := range d.SplitSummaries {
			part := &types.Memory{
				AnimaID:    memory.AnimaID,
				Summary:    summary,
				Importance: memory.Importance,
				Confidence: memory.Confidence,
				State:      types.MemoryStateActive,
				TimeStart:  memory.TimeStart,
				TimeEnd:    memory.TimeEnd,
			}
			if _, _, err := e.store.CreateMemoryWithProvenance(ctx, part, nil, []string{memory.ID}); err != nil {
				return fmt.Errorf("failed to persist split memory: %w", err)
			}
		}
		memory.State = types.MemoryStateArchived
		if err := e.store.UpdateMemory(ctx, memory); err != nil {
			return fmt.Errorf("failed to archive split memory %s: %w", memory.ID, err)
		}
		report.Split++
		return nil
	}
	return nil
}

// groupSpan returns the union of the group's time spans.
func groupSpan(group []*types.Memory) (*time.Time, *time.Time) {
	var start, end *time.Time
	for _, m := range group {
		if m.TimeStart != nil && (start == nil || m.TimeStart.Before(*start)) {
			t := *m.TimeStart
			start = &t
		}
		if m.TimeEnd != nil && (end == nil || m.TimeEnd.After(*end)) {
			t := *m.TimeEnd
			end = &t
		}
	}
	return start, end
}
