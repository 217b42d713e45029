package llm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON_BareObject(t *testing.T) {
	raw, err := ExtractJSON(`  {"a": 1}  `)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a": 1}`, string(raw))
}

func TestExtractJSON_BareArray(t *testing.T) {
	raw, err := ExtractJSON(`[{"a": 1}, {"b": 2}]`)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"a": 1}, {"b": 2}]`, string(raw))
}

func TestExtractJSON_JSONFence(t *testing.T) {
	raw, err := ExtractJSON("Here you go:\n```json\n{\"a\":1}\n```\nHope that helps!")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(raw))
}

func TestExtractJSON_PlainFence(t *testing.T) {
	raw, err := ExtractJSON("```\n{\"a\":1}\n```")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(raw))
}

func TestExtractJSON_BracketMatching(t *testing.T) {
	raw, err := ExtractJSON(`prefix {"a":1} suffix`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(raw))
}

func TestExtractJSON_BracketMatchingArray(t *testing.T) {
	raw, err := ExtractJSON(`The decisions are: [{"action":"KEEP"}] as requested.`)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"action":"KEEP"}]`, string(raw))
}

func TestExtractJSON_NoJSON(t *testing.T) {
	_, err := ExtractJSON("I'm sorry, I cannot produce that output.")
	require.Error(t, err)

	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Contains(t, parseErr.Raw, "I'm sorry")
}

func TestExtractJSON_EmptyResponse(t *testing.T) {
	_, err := ExtractJSON("   ")
	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
}

func TestExtractJSON_InvalidJSONInsideFence(t *testing.T) {
	// Fenced but truncated output with no closing bracket anywhere.
	_, err := ExtractJSON("```json\n{not json\n```")
	require.Error(t, err)
}
