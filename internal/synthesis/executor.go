package synthesis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/scrypster/animus/internal/llm"
	"github.com/scrypster/animus/pkg/types"
)

// ValidationError indicates the LLM returned parseable JSON that violates
// the decision contract (for synthesis: a missing or empty summary). It is
// fatal for the run and not retried: a malformed-but-received response is
// not a transport failure.
type ValidationError struct {
	Reason string
	Raw    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid synthesis decision: %s", e.Reason)
}

// Executor invokes the LLM with the synthesis prompt and validates the
// structured result.
type Executor struct {
	client llm.Client
}

// NewExecutor creates an executor over the LLM client.
func NewExecutor(client llm.Client) *Executor {
	return &Executor{client: client}
}

// Synthesize builds the prompt, calls the model, and parses and validates
// the decision. Transport-level retry lives inside the client; parse and
// validation failures surface here as fatal errors carrying the raw text.
func (e *Executor) Synthesize(ctx context.Context, anima *types.Anima, events []*types.Event) (*Decision, error) {
	prompt := BuildSynthesisPrompt(anima, events)

	raw, err := e.client.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("synthesis LLM call failed: %w", err)
	}

	return ParseDecision(raw)
}

// ParseDecision extracts and validates a synthesis decision from raw LLM
// response text. Optional fields absent from the response stay nil.
func ParseDecision(raw string) (*Decision, error) {
	extracted, err := llm.ExtractJSON(raw)
	if err != nil {
		return nil, err
	}

	var d Decision
	if err := json.Unmarshal(extracted, &d); err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("decision is not an object: %v", err), Raw: raw}
	}
	if strings.TrimSpace(d.Summary) == "" {
		return nil, &ValidationError{Reason: "missing required field: summary", Raw: raw}
	}
	return &d, nil
}
