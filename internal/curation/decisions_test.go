package curation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/animus/internal/llm"
)

func TestParseMergeDecision_Defaults(t *testing.T) {
	d, err := ParseMergeDecision(`{}`)
	require.NoError(t, err)

	assert.False(t, d.ShouldMerge, "should_merge defaults to false")
	assert.Zero(t, d.Importance, "scores only apply to a merge")
	assert.Zero(t, d.Confidence)

	d, err = ParseMergeDecision(`{"should_merge": true, "merged_summary": "combined"}`)
	require.NoError(t, err)
	assert.Equal(t, 0.5, d.Importance)
	assert.Equal(t, 0.5, d.Confidence)
}

func TestParseMergeDecision_MergeRequiresSummary(t *testing.T) {
	_, err := ParseMergeDecision(`{"should_merge": true, "merged_summary": "  "}`)
	require.Error(t, err)

	d, err := ParseMergeDecision(`{"should_merge": true, "merged_summary": "one combined memory"}`)
	require.NoError(t, err)
	assert.True(t, d.ShouldMerge)
	assert.Equal(t, "one combined memory", d.MergedSummary)
}

func TestParseMergeDecision_ClampsScores(t *testing.T) {
	d, err := ParseMergeDecision(`{"should_merge": true, "merged_summary": "m", "importance": 1.7, "confidence": -0.3}`)
	require.NoError(t, err)
	assert.Equal(t, 1.0, d.Importance)
	assert.Equal(t, 0.0, d.Confidence)
}

func TestParseMergeDecision_FencedResponse(t *testing.T) {
	d, err := ParseMergeDecision("Here you go:\n```json\n{\"should_merge\": false, \"reasoning\": \"distinct topics\"}\n```")
	require.NoError(t, err)
	assert.False(t, d.ShouldMerge)
	assert.Equal(t, "distinct topics", d.Reasoning)
}

func TestParseMergeDecision_NoJSON(t *testing.T) {
	_, err := ParseMergeDecision("These look unrelated to me.")
	var parseErr *llm.ParseError
	require.True(t, errors.As(err, &parseErr))
}

func TestParseReviewDecisions_AllActions(t *testing.T) {
	decisions, err := ParseReviewDecisions(`[
		{"index": 0, "action": "KEEP"},
		{"index": 1, "action": "update", "new_summary": "sharper summary", "new_importance": 0.9},
		{"index": 2, "action": "SPLIT", "split_into": ["first part", "second part"]},
		{"index": 3, "action": "DELETE", "reasoning": "duplicate"}
	]`)
	require.NoError(t, err)
	require.Len(t, decisions, 4)

	assert.Equal(t, ActionKeep, decisions[0].Action)

	assert.Equal(t, ActionUpdate, decisions[1].Action, "action matching is case-insensitive")
	require.NotNil(t, decisions[1].Summary)
	assert.Equal(t, "sharper summary", *decisions[1].Summary)
	require.NotNil(t, decisions[1].Importance)
	assert.Equal(t, 0.9, *decisions[1].Importance)
	assert.Nil(t, decisions[1].Confidence)

	assert.Equal(t, ActionSplit, decisions[2].Action)
	assert.Equal(t, []string{"first part", "second part"}, decisions[2].SplitSummaries)

	assert.Equal(t, ActionDelete, decisions[3].Action)
	assert.Equal(t, "duplicate", decisions[3].Reasoning)
}

func TestParseReviewDecisions_UnknownActionKeeps(t *testing.T) {
	decisions, err := ParseReviewDecisions(`[{"index": 0, "action": "ARCHIVE"}]`)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.Equal(t, ActionKeep, decisions[0].Action)
	assert.Contains(t, decisions[0].Reasoning, "Unknown action")
}

func TestParseReviewDecisions_EmptyUpdateKeeps(t *testing.T) {
	decisions, err := ParseReviewDecisions(`[{"index": 0, "action": "UPDATE"}]`)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.Equal(t, ActionKeep, decisions[0].Action)
	assert.Contains(t, decisions[0].Reasoning, "no changed fields")
}

func TestParseReviewDecisions_ShortSplitKeeps(t *testing.T) {
	decisions, err := ParseReviewDecisions(`[{"index": 0, "action": "SPLIT", "split_into": ["only one"]}]`)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.Equal(t, ActionKeep, decisions[0].Action)
	assert.Equal(t, "Invalid split (need 2+ summaries)", decisions[0].Reasoning)
}

func TestParseReviewDecisions_ClampsUpdateScores(t *testing.T) {
	decisions, err := ParseReviewDecisions(`[{"index": 0, "action": "UPDATE", "new_importance": 5, "new_confidence": -1}]`)
	require.NoError(t, err)
	require.NotNil(t, decisions[0].Importance)
	assert.Equal(t, 1.0, *decisions[0].Importance)
	require.NotNil(t, decisions[0].Confidence)
	assert.Equal(t, 0.0, *decisions[0].Confidence)
}

func TestParseReviewDecisions_ObjectWrapperTolerated(t *testing.T) {
	decisions, err := ParseReviewDecisions(`{"decisions": [{"index": 0, "action": "KEEP"}]}`)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.Equal(t, ActionKeep, decisions[0].Action)
}
