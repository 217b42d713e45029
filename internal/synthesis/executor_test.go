package synthesis

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/animus/internal/llm"
)

func TestParseDecision_Valid(t *testing.T) {
	d, err := ParseDecision(`{"summary": "met alice", "content": "a long chat", "importance": 0.8}`)
	require.NoError(t, err)
	assert.Equal(t, "met alice", d.Summary)
	require.NotNil(t, d.Content)
	assert.Equal(t, "a long chat", *d.Content)
	require.NotNil(t, d.Importance)
	assert.Equal(t, 0.8, *d.Importance)
	assert.Nil(t, d.Confidence, "absent optional fields stay nil")
}

func TestParseDecision_MissingSummaryIsFatal(t *testing.T) {
	_, err := ParseDecision(`{"content": "no summary here"}`)
	require.Error(t, err)

	var valErr *ValidationError
	require.True(t, errors.As(err, &valErr))
	assert.Contains(t, valErr.Raw, "no summary here")
}

func TestParseDecision_BlankSummaryIsFatal(t *testing.T) {
	_, err := ParseDecision(`{"summary": "   "}`)
	var valErr *ValidationError
	require.True(t, errors.As(err, &valErr))
}

func TestParseDecision_FencedResponse(t *testing.T) {
	d, err := ParseDecision("```json\n{\"summary\": \"fenced\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, "fenced", d.Summary)
}

func TestParseDecision_NoJSONCarriesRawText(t *testing.T) {
	_, err := ParseDecision("I refuse to answer in JSON.")
	var parseErr *llm.ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Contains(t, parseErr.Raw, "I refuse")
}
