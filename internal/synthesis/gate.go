package synthesis

// Gate decides whether an accumulation score justifies a synthesis run.
type Gate struct {
	Threshold float64
}

// NewGate creates a gate. A non-positive threshold falls back to the
// default.
func NewGate(threshold float64) *Gate {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Gate{Threshold: threshold}
}

// Decide returns whether synthesis fires, and the skip reason when it does
// not. The comparison is inclusive: a score exactly at the threshold
// triggers.
func (g *Gate) Decide(result *ScoreResult) (bool, string) {
	if result.SkipReason == SkipNoEvents {
		return false, SkipNoEvents
	}
	if result.Score >= g.Threshold {
		return true, SkipNone
	}
	return false, SkipBelowThreshold
}
