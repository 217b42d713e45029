package synthesis

import (
	"log"

	"github.com/pkoukk/tiktoken-go"

	"github.com/scrypster/animus/pkg/types"
)

// TokenEstimator estimates the token cost of text for accumulation scoring.
// Estimates feed a weighted score, not a billing meter, so precision matters
// less than stability.
type TokenEstimator interface {
	Estimate(text string) int
}

// tiktokenEstimator counts tokens with the cl100k_base encoding.
type tiktokenEstimator struct {
	enc *tiktoken.Tiktoken
}

func (e *tiktokenEstimator) Estimate(text string) int {
	return len(e.enc.Encode(text, nil, nil))
}

// heuristicEstimator approximates tokens as bytes/4, the usual rule of thumb
// for English prose.
type heuristicEstimator struct{}

func (heuristicEstimator) Estimate(text string) int {
	return len(text) / 4
}

// NewTokenEstimator returns a cl100k_base estimator, falling back to the
// bytes/4 heuristic when the encoding cannot be loaded (offline environments
// without a cached BPE file).
func NewTokenEstimator() TokenEstimator {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		log.Printf("synthesis: tiktoken unavailable, using heuristic token estimate: %v", err)
		return heuristicEstimator{}
	}
	return &tiktokenEstimator{enc: enc}
}

// estimateEventTokens sums the estimated tokens of the text that will be
// rendered into the prompt for each event.
func estimateEventTokens(est TokenEstimator, events []*types.Event) int {
	total := 0
	for _, e := range events {
		total += est.Estimate(eventText(e))
	}
	return total
}
