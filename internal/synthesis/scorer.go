package synthesis

import (
	"context"
	"fmt"
	"time"

	"github.com/scrypster/animus/internal/storage"
)

// Default scoring weights and gate threshold. A weight of zero disables its
// factor.
const (
	DefaultTimeWeight  = 1.0
	DefaultEventWeight = 0.5
	DefaultTokenWeight = 0.0003
	DefaultThreshold   = 10.0
)

// Weights configure the accumulation score components.
type Weights struct {
	Time  float64
	Event float64
	Token float64
}

// DefaultWeights returns the standard scoring weights.
func DefaultWeights() Weights {
	return Weights{Time: DefaultTimeWeight, Event: DefaultEventWeight, Token: DefaultTokenWeight}
}

// ScoreResult holds the accumulation score and its component factors.
type ScoreResult struct {
	Score       float64
	TimeFactor  float64
	EventFactor float64
	TokenFactor float64
	EventCount  int

	// Baseline is the timestamp events accumulate from: the most recent
	// memory's creation time, or the anima's creation time when no memory
	// exists yet.
	Baseline time.Time

	// SkipReason is SkipNoEvents when no events exist past the baseline;
	// the factors are left at zero in that case.
	SkipReason string
}

// Scorer computes the accumulation score deciding whether enough raw
// experience has piled up to justify a synthesis LLM call. Scoring is a pure
// read with no side effects.
type Scorer struct {
	animas   storage.AnimaStore
	events   storage.EventStore
	memories storage.MemoryStore
	tokens   TokenEstimator
	weights  Weights
}

// NewScorer creates a scorer over the given stores.
func NewScorer(animas storage.AnimaStore, events storage.EventStore, memories storage.MemoryStore, tokens TokenEstimator, weights Weights) *Scorer {
	if tokens == nil {
		tokens = heuristicEstimator{}
	}
	return &Scorer{animas: animas, events: events, memories: memories, tokens: tokens, weights: weights}
}

// Score computes the accumulation score for an anima:
//
//	score = hours_since_baseline*W_time + event_count*W_event + est_tokens*W_token
//
// With zero pending events the result short-circuits to a zero score with
// SkipNoEvents; the time and token factors are not computed.
func (s *Scorer) Score(ctx context.Context, animaID string) (*ScoreResult, error) {
	baseline, err := s.baseline(ctx, animaID)
	if err != nil {
		return nil, err
	}

	count, err := s.events.CountEventsSince(ctx, animaID, baseline)
	if err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}
	if count == 0 {
		return &ScoreResult{Baseline: baseline, SkipReason: SkipNoEvents}, nil
	}

	events, err := s.events.ListEventsSince(ctx, animaID, baseline)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	result := &ScoreResult{
		TimeFactor:  time.Since(baseline).Hours() * s.weights.Time,
		EventFactor: float64(count) * s.weights.Event,
		TokenFactor: float64(estimateEventTokens(s.tokens, events)) * s.weights.Token,
		EventCount:  count,
		Baseline:    baseline,
	}
	result.Score = result.TimeFactor + result.EventFactor + result.TokenFactor
	return result, nil
}

// baseline returns the accumulation start point for the anima.
func (s *Scorer) baseline(ctx context.Context, animaID string) (time.Time, error) {
	latest, err := s.memories.LatestMemoryTime(ctx, animaID)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get latest memory time: %w", err)
	}
	if latest != nil {
		return *latest, nil
	}
	anima, err := s.animas.GetAnima(ctx, animaID)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get anima: %w", err)
	}
	return anima.CreatedAt, nil
}
