package synthesis

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/scrypster/animus/internal/checkpoint"
	"github.com/scrypster/animus/internal/llm"
	"github.com/scrypster/animus/internal/notify"
	"github.com/scrypster/animus/internal/storage"
)

// Config holds the pipeline tuning knobs.
type Config struct {
	Weights   Weights
	Threshold float64
}

// Pipeline is the checkpointed synthesis state machine. One instance serves
// many runs; each run is identified by (anima, run id) and checkpointed
// after every stage, so a torn down process resumes from the last completed
// stage without repeating the LLM call or the persistence write.
//
// The pipeline does not deduplicate concurrent runs for the same anima;
// callers must serialize runs per anima (the dreamer daemon holds a
// per-anima lock).
type Pipeline struct {
	store       storage.Store
	scorer      *Scorer
	gate        *Gate
	collector   *Collector
	executor    *Executor
	persister   *Persister
	checkpoints checkpoint.Store
	publisher   notify.Publisher
}

// NewPipeline wires the pipeline stages over the given collaborators. A nil
// publisher disables run-event broadcasting.
func NewPipeline(store storage.Store, client llm.Client, checkpoints checkpoint.Store, publisher notify.Publisher, cfg Config) *Pipeline {
	if publisher == nil {
		publisher = notify.NopPublisher{}
	}
	if cfg.Weights == (Weights{}) {
		cfg.Weights = DefaultWeights()
	}
	return &Pipeline{
		store:       store,
		scorer:      NewScorer(store, store, store, NewTokenEstimator(), cfg.Weights),
		gate:        NewGate(cfg.Threshold),
		collector:   NewCollector(store),
		executor:    NewExecutor(client),
		persister:   NewPersister(store),
		checkpoints: checkpoints,
		publisher:   publisher,
	}
}

// checkpointKey derives the checkpoint identity for a run.
func checkpointKey(animaID, runID string) string {
	return "synthesis:" + animaID + ":" + runID
}

// Run executes (or resumes) one synthesis run for the anima. A non-nil
// error means an infrastructure failure (storage or checkpointing) the
// caller may retry with the same run ID; every other failure resolves to a
// terminal RunState with Error populated and no error returned. Re-invoking
// a completed run returns its stored final state without side effects.
func (p *Pipeline) Run(ctx context.Context, animaID, runID string) (*RunState, error) {
	if runID == "" {
		runID = uuid.NewString()
	}
	key := checkpointKey(animaID, runID)

	state := newRunState(animaID, runID)
	found, err := p.checkpoints.Load(ctx, key, state)
	if err != nil {
		return state, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if found && state.Completed() {
		return state, nil
	}
	if found {
		log.Printf("synthesis: resuming run %s for anima %s (completed stages: %v)",
			runID, animaID, state.CompletedStages)
	} else {
		p.publisher.Publish(notify.RunEvent{Type: notify.EventRunStarted, AnimaID: animaID, RunID: runID})
	}

	for _, stage := range stageOrder {
		if state.stageDone(stage) {
			continue
		}
		final, err := p.runStage(ctx, stage, state)
		if err != nil {
			// Transient infrastructure failure: leave the checkpoint as is
			// so a retried invocation resumes here.
			return state, err
		}
		state.markDone(stage)
		if final {
			state.complete()
		}
		if err := p.checkpoints.Save(ctx, key, state); err != nil {
			return state, fmt.Errorf("failed to save checkpoint: %w", err)
		}
		p.publisher.Publish(notify.RunEvent{
			Type: notify.EventRunStage, AnimaID: animaID, RunID: runID, Stage: string(stage),
		})
		if state.Completed() {
			break
		}
	}

	if !state.Completed() {
		state.complete()
		if err := p.checkpoints.Save(ctx, key, state); err != nil {
			return state, fmt.Errorf("failed to save checkpoint: %w", err)
		}
	}
	p.publishTerminal(state)
	return state, nil
}

// runStage executes one stage against the state. It returns final=true when
// the run should terminate after this stage (skip or fatal error). A non-nil
// error is a retryable infrastructure failure; fatal conditions are recorded
// in state.Error instead.
func (p *Pipeline) runStage(ctx context.Context, stage Stage, state *RunState) (final bool, err error) {
	switch stage {
	case StageScore:
		result, err := p.scorer.Score(ctx, state.AnimaID)
		if err != nil {
			return false, err
		}
		state.AccumulationScore = result.Score
		state.TimeFactor = result.TimeFactor
		state.EventFactor = result.EventFactor
		state.TokenFactor = result.TokenFactor
		state.EventCount = result.EventCount
		state.Baseline = result.Baseline
		state.SkipReason = result.SkipReason
		return false, nil

	case StageGate:
		triggered, reason := p.gate.Decide(&ScoreResult{
			Score:      state.AccumulationScore,
			SkipReason: state.SkipReason,
		})
		state.SynthesisTriggered = triggered
		state.SkipReason = reason
		return !triggered, nil

	case StageCollect:
		events, err := p.collector.Collect(ctx, state.AnimaID, state.Baseline)
		if errors.Is(err, ErrEmptyCollection) {
			state.Error = err.Error()
			return true, nil
		}
		if err != nil {
			return false, err
		}
		state.PendingEvents = events
		return false, nil

	case StageSynthesize:
		anima, err := p.store.GetAnima(ctx, state.AnimaID)
		if err != nil {
			return false, err
		}
		decision, err := p.executor.Synthesize(ctx, anima, state.PendingEvents)
		if err != nil {
			// LLM transport exhaustion, parse, and validation failures are
			// all fatal for the run; the caller re-triggers with a new run.
			state.Error = err.Error()
			return true, nil
		}
		state.LLMResponse = decision
		return false, nil

	case StagePersist:
		memoryID, linkIDs, err := p.persister.Persist(ctx, state.AnimaID, state.LLMResponse, state.PendingEvents)
		if err != nil {
			return false, err
		}
		state.MemoryID = memoryID
		state.ProvenanceLinks = linkIDs
		return true, nil

	default:
		return false, fmt.Errorf("unknown pipeline stage: %s", stage)
	}
}

// publishTerminal broadcasts the run's terminal event.
func (p *Pipeline) publishTerminal(state *RunState) {
	switch {
	case state.Error != "":
		p.publisher.Publish(notify.RunEvent{
			Type: notify.EventRunFailed, AnimaID: state.AnimaID, RunID: state.RunID, Error: state.Error,
		})
	case !state.SynthesisTriggered:
		p.publisher.Publish(notify.RunEvent{
			Type: notify.EventRunSkipped, AnimaID: state.AnimaID, RunID: state.RunID, Stage: state.SkipReason,
		})
	default:
		p.publisher.Publish(notify.RunEvent{
			Type: notify.EventRunCompleted, AnimaID: state.AnimaID, RunID: state.RunID, MemoryID: state.MemoryID,
		})
		p.publisher.Publish(notify.RunEvent{
			Type: notify.EventMemoryCreated, AnimaID: state.AnimaID, MemoryID: state.MemoryID,
		})
	}
}

func newRunState(animaID, runID string) *RunState {
	return &RunState{AnimaID: animaID, RunID: runID, StartedAt: time.Now().UTC()}
}
