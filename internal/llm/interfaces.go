// Package llm provides the provider-abstracted text generation client used
// by the synthesis pipeline and the curation engine.
//
// Providers are hand-rolled HTTP clients (no vendor SDKs) sharing a common
// retry policy, a circuit breaker, and a rate limiter. Every provider is
// instructed to emit JSON-only output, but callers must still run responses
// through ExtractJSON: models return markdown fences and leading prose often
// enough that tolerant extraction is part of the contract.
package llm

import "context"

// Client is the interface for LLM text completion. All synthesis and
// curation prompts use single-string completion style (not chat history).
type Client interface {
	// Complete sends the prompt and returns the raw response text. Options
	// override the configured temperature and max-token defaults per call.
	Complete(ctx context.Context, prompt string, opts ...CallOption) (string, error)

	// GetModel returns the provider model identifier in use.
	GetModel() string
}

// EmbeddingGenerator is the optional interface for generating vector
// embeddings, used to back pgvector similarity search for merge candidates.
type EmbeddingGenerator interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	GetModel() string
}

// callSettings are the per-call knobs resolvable from options.
type callSettings struct {
	temperature *float64
	maxTokens   *int
}

// CallOption overrides a configured default for a single Complete call.
type CallOption func(*callSettings)

// WithTemperature overrides the configured sampling temperature.
func WithTemperature(t float64) CallOption {
	return func(s *callSettings) { s.temperature = &t }
}

// WithMaxTokens overrides the configured completion token limit.
func WithMaxTokens(n int) CallOption {
	return func(s *callSettings) { s.maxTokens = &n }
}

func resolveSettings(temperature float64, maxTokens int, opts []CallOption) (float64, int) {
	var s callSettings
	for _, opt := range opts {
		opt(&s)
	}
	if s.temperature != nil {
		temperature = *s.temperature
	}
	if s.maxTokens != nil {
		maxTokens = *s.maxTokens
	}
	return temperature, maxTokens
}
