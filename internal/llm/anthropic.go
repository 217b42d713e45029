package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// jsonOnlySystem is the shared system instruction demanding bare JSON.
// Anthropic has no response-format flag, so the instruction is the only
// lever; callers still run the result through ExtractJSON.
const jsonOnlySystem = "You are a precise assistant that responds only with valid JSON. Never include markdown fences, explanations, or any text outside the JSON value."

// AnthropicConfig holds configuration for the Anthropic client.
type AnthropicConfig struct {
	APIKey      string
	Model       string        // default: claude-3-5-sonnet-20241022
	MaxTokens   int           // default: 1024
	Temperature float64       // default: 0.7
	Timeout     time.Duration // default: 60s
	Limiter     *rate.Limiter // optional shared request limiter
}

// AnthropicClient implements Client using the Anthropic Messages API.
type AnthropicClient struct {
	cfg            AnthropicConfig
	client         *http.Client
	limiter        *rate.Limiter
	circuitBreaker *CircuitBreaker
}

// NewAnthropicClient creates a new Anthropic client with the given configuration.
func NewAnthropicClient(cfg AnthropicConfig) *AnthropicClient {
	if cfg.Model == "" {
		cfg.Model = "claude-3-5-sonnet-20241022"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1024
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	limiter := cfg.Limiter
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 0)
	}
	return &AnthropicClient{
		cfg:            cfg,
		client:         &http.Client{Timeout: cfg.Timeout},
		limiter:        limiter,
		circuitBreaker: NewCircuitBreaker("anthropic"),
	}
}

// anthropicMessagesRequest is the request body for POST /v1/messages.
type anthropicMessagesRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// anthropicMessagesResponse is the response body from POST /v1/messages.
type anthropicMessagesResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

// Complete sends a single-turn completion to Anthropic and returns the raw
// response text. Rate limits, timeouts, and server errors (including the
// 529 overloaded status) are retried with exponential backoff.
func (c *AnthropicClient) Complete(ctx context.Context, prompt string, opts ...CallOption) (string, error) {
	temperature, maxTokens := resolveSettings(c.cfg.Temperature, c.cfg.MaxTokens, opts)
	return withRetry(ctx, func() (string, error) {
		return c.circuitBreaker.Execute(func() (string, error) {
			return c.complete(ctx, prompt, temperature, maxTokens)
		})
	})
}

func (c *AnthropicClient) complete(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	reqBody := anthropicMessagesRequest{
		Model:       c.cfg.Model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		System:      jsonOnlySystem,
		Messages: []anthropicMessage{
			{Role: "user", Content: prompt},
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", "https://api.anthropic.com/v1/messages", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("content-type", "application/json")
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", &APIError{Provider: "anthropic", StatusCode: resp.StatusCode, Body: string(body)}
	}

	var respData anthropicMessagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&respData); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if len(respData.Content) == 0 {
		return "", fmt.Errorf("anthropic returned empty content")
	}

	return respData.Content[0].Text, nil
}

// GetModel returns the configured model name.
func (c *AnthropicClient) GetModel() string {
	return c.cfg.Model
}

// Compile-time assertion.
var _ Client = (*AnthropicClient)(nil)
