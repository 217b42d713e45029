package llm

import (
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Config selects and configures a provider.
type Config struct {
	Provider    string  // "anthropic", "openai", or "ollama" (default)
	APIKey      string
	Model       string
	BaseURL     string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration

	// RequestsPerSecond caps outbound request rate across all calls made
	// through the returned client. Zero means unlimited.
	RequestsPerSecond float64
}

// New creates the Client for the configured provider.
func New(cfg Config) (Client, error) {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	switch cfg.Provider {
	case "anthropic":
		return NewAnthropicClient(AnthropicConfig{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
			Limiter:     limiter,
		}), nil
	case "openai":
		return NewOpenAIClient(OpenAIConfig{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			BaseURL:     cfg.BaseURL,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
			Limiter:     limiter,
		}), nil
	case "ollama", "":
		return NewOllamaClient(OllamaConfig{
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
			Limiter:     limiter,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %q", cfg.Provider)
	}
}

// NewEmbeddingGenerator creates the EmbeddingGenerator for the configured
// provider. Returns (nil, nil) for providers without an embeddings API
// (Anthropic); callers treat a nil generator as "similarity search off".
func NewEmbeddingGenerator(cfg Config, embeddingModel string) (EmbeddingGenerator, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIEmbeddingClient(OpenAIEmbeddingConfig{
			APIKey:  cfg.APIKey,
			Model:   embeddingModel,
			BaseURL: cfg.BaseURL,
		}), nil
	case "ollama", "":
		model := embeddingModel
		if model == "" {
			model = "nomic-embed-text"
		}
		return NewOllamaClient(OllamaConfig{BaseURL: cfg.BaseURL, Model: model}), nil
	default:
		return nil, nil
	}
}
