// Package curation implements deep curation: the batch merge and review
// passes that consolidate, refine, or prune already-persisted memories using
// the same LLM prompt/parse contract as synthesis.
//
// Curation is a bulk, human-reviewable process, so parsing is deliberately
// forgiving: a malformed per-item decision downgrades to KEEP with a
// reasoning note instead of failing the pass. A missed optimization is far
// cheaper than a destructive misapplication.
package curation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/scrypster/animus/internal/llm"
)

// ReviewAction is the per-memory verdict of a review pass.
type ReviewAction string

const (
	ActionKeep   ReviewAction = "KEEP"
	ActionUpdate ReviewAction = "UPDATE"
	ActionSplit  ReviewAction = "SPLIT"
	ActionDelete ReviewAction = "DELETE"
)

// MergeDecision is the parsed outcome of a merge prompt.
type MergeDecision struct {
	ShouldMerge   bool
	MergedSummary string
	Importance    float64
	Confidence    float64
	Reasoning     string
}

// ReviewDecision is one parsed item of a review response, matched to a
// memory by index.
type ReviewDecision struct {
	Index          int
	Action         ReviewAction
	Summary        *string
	Importance     *float64
	Confidence     *float64
	SplitSummaries []string
	Reasoning      string
}

// rawMergeDecision mirrors the JSON shape the merge prompt requests.
type rawMergeDecision struct {
	ShouldMerge   bool     `json:"should_merge"`
	MergedSummary string   `json:"merged_summary"`
	Importance    *float64 `json:"importance"`
	Confidence    *float64 `json:"confidence"`
	Reasoning     string   `json:"reasoning"`
}

// ParseMergeDecision parses a merge response. should_merge defaults to
// false; when true, merged_summary is required and its absence is an error,
// and importance/confidence default to 0.5 and are clamped to [0,1]. When not
// merging the scores are meaningless and stay zero.
func ParseMergeDecision(raw string) (*MergeDecision, error) {
	extracted, err := llm.ExtractJSON(raw)
	if err != nil {
		return nil, err
	}

	var parsed rawMergeDecision
	if err := json.Unmarshal(extracted, &parsed); err != nil {
		return nil, fmt.Errorf("merge decision is not an object: %w", err)
	}

	decision := &MergeDecision{
		ShouldMerge:   parsed.ShouldMerge,
		MergedSummary: strings.TrimSpace(parsed.MergedSummary),
		Reasoning:     parsed.Reasoning,
	}
	if decision.ShouldMerge {
		if decision.MergedSummary == "" {
			return nil, fmt.Errorf("merge decision has should_merge=true but no merged_summary")
		}
		decision.Importance = clamp01(valueOr(parsed.Importance, 0.5))
		decision.Confidence = clamp01(valueOr(parsed.Confidence, 0.5))
	}
	return decision, nil
}

// rawReviewDecision mirrors the JSON shape the review prompt requests.
type rawReviewDecision struct {
	Index          int      `json:"index"`
	Action         string   `json:"action"`
	Summary        *string  `json:"new_summary"`
	Importance     *float64 `json:"new_importance"`
	Confidence     *float64 `json:"new_confidence"`
	SplitSummaries []string `json:"split_into"`
	Reasoning      string   `json:"reasoning"`
}

// ParseReviewDecisions parses a review response: a JSON array with one item
// per memory, matched by index. Malformed items downgrade to KEEP with a
// reasoning note rather than failing the pass.
func ParseReviewDecisions(raw string) ([]*ReviewDecision, error) {
	extracted, err := llm.ExtractJSON(raw)
	if err != nil {
		return nil, err
	}

	var parsed []rawReviewDecision
	if err := json.Unmarshal(extracted, &parsed); err != nil {
		// Some models wrap the array in an object.
		var wrapper struct {
			Decisions []rawReviewDecision `json:"decisions"`
		}
		if err2 := json.Unmarshal(extracted, &wrapper); err2 != nil || wrapper.Decisions == nil {
			return nil, fmt.Errorf("review decisions are not an array: %w", err)
		}
		parsed = wrapper.Decisions
	}

	decisions := make([]*ReviewDecision, 0, len(parsed))
	for _, item := range parsed {
		decisions = append(decisions, normalizeReviewDecision(item))
	}
	return decisions, nil
}

// normalizeReviewDecision applies the per-item downgrade rules.
func normalizeReviewDecision(item rawReviewDecision) *ReviewDecision {
	d := &ReviewDecision{
		Index:     item.Index,
		Reasoning: item.Reasoning,
	}

	switch ReviewAction(strings.ToUpper(strings.TrimSpace(item.Action))) {
	case ActionKeep:
		d.Action = ActionKeep

	case ActionDelete:
		d.Action = ActionDelete

	case ActionUpdate:
		if item.Summary == nil && item.Importance == nil && item.Confidence == nil {
			d.Action = ActionKeep
			d.Reasoning = "Update with no changed fields, keeping as-is"
			return d
		}
		d.Action = ActionUpdate
		d.Summary = item.Summary
		if item.Importance != nil {
			v := clamp01(*item.Importance)
			d.Importance = &v
		}
		if item.Confidence != nil {
			v := clamp01(*item.Confidence)
			d.Confidence = &v
		}

	case ActionSplit:
		if len(item.SplitSummaries) < 2 {
			d.Action = ActionKeep
			d.Reasoning = "Invalid split (need 2+ summaries)"
			return d
		}
		d.Action = ActionSplit
		d.SplitSummaries = item.SplitSummaries

	default:
		d.Action = ActionKeep
		d.Reasoning = fmt.Sprintf("Unknown action %q, keeping as-is", item.Action)
	}
	return d
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func valueOr(p *float64, fallback float64) float64 {
	if p == nil {
		return fallback
	}
	return *p
}
