package synthesis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGate_ExactThresholdTriggers(t *testing.T) {
	gate := NewGate(10.0)
	triggered, reason := gate.Decide(&ScoreResult{Score: 10.0})
	assert.True(t, triggered, "score exactly at threshold must trigger")
	assert.Equal(t, SkipNone, reason)
}

func TestGate_BelowThresholdSkips(t *testing.T) {
	gate := NewGate(10.0)
	triggered, reason := gate.Decide(&ScoreResult{Score: 9.999})
	assert.False(t, triggered)
	assert.Equal(t, SkipBelowThreshold, reason)
}

func TestGate_NoEventsSkipsRegardlessOfScore(t *testing.T) {
	gate := NewGate(0.0) // default threshold kicks in
	assert.Equal(t, DefaultThreshold, gate.Threshold)

	triggered, reason := gate.Decide(&ScoreResult{Score: 100, SkipReason: SkipNoEvents})
	assert.False(t, triggered)
	assert.Equal(t, SkipNoEvents, reason)
}
