// Package synthesis implements the checkpointed memory synthesis pipeline:
// score accumulated events, gate on a threshold, collect the pending batch,
// synthesize a memory via the LLM, and persist it with provenance.
package synthesis

import (
	"time"

	"github.com/scrypster/animus/pkg/types"
)

// Stage identifies a pipeline stage. Stages run in declaration order; the
// checkpoint records which stages completed so a resumed run never repeats a
// side-effecting stage (the LLM call, the persistence write).
type Stage string

const (
	StageScore      Stage = "score"
	StageGate       Stage = "gate"
	StageCollect    Stage = "collect"
	StageSynthesize Stage = "synthesize"
	StagePersist    Stage = "persist"
)

// stageOrder is the execution sequence.
var stageOrder = []Stage{StageScore, StageGate, StageCollect, StageSynthesize, StagePersist}

// Skip reasons for runs that exit before the LLM call.
const (
	SkipNone           = ""
	SkipNoEvents       = "no_events"
	SkipBelowThreshold = "below_threshold"
)

// Decision is the validated structured output of a synthesis LLM call.
// Summary is required; the optional fields stay nil when the model omits
// them so persistence has a stable contract.
type Decision struct {
	Summary    string   `json:"summary"`
	Content    *string  `json:"content"`
	Importance *float64 `json:"importance"`
	Confidence *float64 `json:"confidence"`
}

// RunState is the full serializable state of one pipeline run for one anima.
// It is checkpointed after every stage.
type RunState struct {
	AnimaID string `json:"anima_id"`
	RunID   string `json:"run_id"`

	// Scoring results.
	AccumulationScore float64 `json:"accumulation_score"`
	TimeFactor        float64 `json:"time_factor"`
	EventFactor       float64 `json:"event_factor"`
	TokenFactor       float64 `json:"token_factor"`
	EventCount        int     `json:"event_count"`

	// Baseline is the accumulation start point computed by the scorer; the
	// collector reuses it so both stages see the same batch boundary.
	Baseline time.Time `json:"baseline"`

	// Gate results.
	SynthesisTriggered bool   `json:"synthesis_triggered"`
	SkipReason         string `json:"skip_reason,omitempty"`

	// Collected batch, in chronological order.
	PendingEvents []*types.Event `json:"pending_events,omitempty"`

	// Synthesis and persistence results.
	LLMResponse     *Decision `json:"llm_response,omitempty"`
	MemoryID        string    `json:"memory_id,omitempty"`
	ProvenanceLinks []string  `json:"provenance_links,omitempty"`

	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// CompletedStages records checkpoint progress.
	CompletedStages []Stage `json:"completed_stages,omitempty"`
}

// stageDone reports whether a stage already completed in a previous
// invocation of this run.
func (s *RunState) stageDone(stage Stage) bool {
	for _, done := range s.CompletedStages {
		if done == stage {
			return true
		}
	}
	return false
}

// markDone records stage completion.
func (s *RunState) markDone(stage Stage) {
	if !s.stageDone(stage) {
		s.CompletedStages = append(s.CompletedStages, stage)
	}
}

// Completed reports whether the run reached a terminal state.
func (s *RunState) Completed() bool {
	return s.CompletedAt != nil
}

// complete stamps the terminal timestamp.
func (s *RunState) complete() {
	now := time.Now().UTC()
	s.CompletedAt = &now
}
