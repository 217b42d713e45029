// Package config provides configuration management for Animus. Settings
// load from an optional YAML file, then environment variables with the
// ANIMUS_ prefix override file values, with sensible defaults throughout.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration settings for the Animus services.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	LLM       LLMConfig       `yaml:"llm"`
	Synthesis SynthesisConfig `yaml:"synthesis"`
	Curation  CurationConfig  `yaml:"curation"`
}

// ServerConfig contains the run-event hub HTTP listener settings.
type ServerConfig struct {
	Port int    `yaml:"port"` // default: 6464
	Host string `yaml:"host"` // default: 127.0.0.1
}

// StorageConfig contains database configuration.
type StorageConfig struct {
	Engine      string `yaml:"engine"`       // sqlite or postgres (default: sqlite)
	DataPath    string `yaml:"data_path"`    // sqlite data directory (default: ./data)
	PostgresDSN string `yaml:"postgres_dsn"` // required when engine=postgres
}

// LLMConfig contains LLM provider configuration.
type LLMConfig struct {
	Provider          string  `yaml:"provider"`            // ollama, openai, anthropic (default: ollama)
	OllamaURL         string  `yaml:"ollama_url"`          // default: http://localhost:11434
	OllamaModel       string  `yaml:"ollama_model"`        // default: qwen2.5:7b
	OpenAIAPIKey      string  `yaml:"openai_api_key"`
	OpenAIModel       string  `yaml:"openai_model"`        // default: gpt-4o
	AnthropicAPIKey   string  `yaml:"anthropic_api_key"`
	AnthropicModel    string  `yaml:"anthropic_model"`     // default: claude-3-5-sonnet-20241022
	EmbeddingModel    string  `yaml:"embedding_model"`     // default: provider-specific
	MaxTokens         int     `yaml:"max_tokens"`          // default: 1024
	Temperature       float64 `yaml:"temperature"`         // default: 0.7
	RequestsPerSecond float64 `yaml:"requests_per_second"` // default: 0 (unlimited)
}

// SynthesisConfig contains the accumulation scoring weights and gate
// threshold.
type SynthesisConfig struct {
	Threshold   float64 `yaml:"threshold"`    // default: 10.0
	TimeWeight  float64 `yaml:"time_weight"`  // default: 1.0
	EventWeight float64 `yaml:"event_weight"` // default: 0.5
	TokenWeight float64 `yaml:"token_weight"` // default: 0.0003
	// ScanInterval is how often the dreamer daemon re-scores animas.
	ScanInterval time.Duration `yaml:"scan_interval"` // default: 5m
}

// CurationConfig contains the deep curation schedule.
type CurationConfig struct {
	Enabled bool `yaml:"enabled"` // default: true
	// Interval is how often the dreamer runs merge and review passes.
	Interval time.Duration `yaml:"interval"` // default: 24h
}

// LoadConfig loads configuration from ANIMUS_CONFIG_FILE (when set and the
// file exists) and environment variables, env vars winning.
func LoadConfig() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("ANIMUS_CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if cfg.Storage.Engine == "postgres" && cfg.Storage.PostgresDSN == "" {
		return nil, fmt.Errorf("config: ANIMUS_POSTGRES_DSN is required when storage engine is postgres")
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 6464,
			Host: "127.0.0.1",
		},
		Storage: StorageConfig{
			Engine:   "sqlite",
			DataPath: "./data",
		},
		LLM: LLMConfig{
			Provider:       "ollama",
			OllamaURL:      "http://localhost:11434",
			OllamaModel:    "qwen2.5:7b",
			OpenAIModel:    "gpt-4o",
			AnthropicModel: "claude-3-5-sonnet-20241022",
			MaxTokens:      1024,
			Temperature:    0.7,
		},
		Synthesis: SynthesisConfig{
			Threshold:    10.0,
			TimeWeight:   1.0,
			EventWeight:  0.5,
			TokenWeight:  0.0003,
			ScanInterval: 5 * time.Minute,
		},
		Curation: CurationConfig{
			Enabled:  true,
			Interval: 24 * time.Hour,
		},
	}
}

// applyEnv overlays ANIMUS_* environment variables onto cfg.
func applyEnv(cfg *Config) {
	cfg.Server.Port = getEnvInt("ANIMUS_PORT", cfg.Server.Port)
	cfg.Server.Host = getEnv("ANIMUS_HOST", cfg.Server.Host)

	cfg.Storage.Engine = getEnv("ANIMUS_STORAGE_ENGINE", cfg.Storage.Engine)
	cfg.Storage.DataPath = getEnv("ANIMUS_DATA_PATH", cfg.Storage.DataPath)
	cfg.Storage.PostgresDSN = getEnv("ANIMUS_POSTGRES_DSN", cfg.Storage.PostgresDSN)

	cfg.LLM.Provider = getEnv("ANIMUS_LLM_PROVIDER", cfg.LLM.Provider)
	cfg.LLM.OllamaURL = getEnv("ANIMUS_OLLAMA_URL", cfg.LLM.OllamaURL)
	cfg.LLM.OllamaModel = getEnv("ANIMUS_OLLAMA_MODEL", cfg.LLM.OllamaModel)
	cfg.LLM.OpenAIAPIKey = getEnv("ANIMUS_OPENAI_API_KEY", cfg.LLM.OpenAIAPIKey)
	cfg.LLM.OpenAIModel = getEnv("ANIMUS_OPENAI_MODEL", cfg.LLM.OpenAIModel)
	cfg.LLM.AnthropicAPIKey = getEnv("ANIMUS_ANTHROPIC_API_KEY", cfg.LLM.AnthropicAPIKey)
	cfg.LLM.AnthropicModel = getEnv("ANIMUS_ANTHROPIC_MODEL", cfg.LLM.AnthropicModel)
	cfg.LLM.EmbeddingModel = getEnv("ANIMUS_EMBEDDING_MODEL", cfg.LLM.EmbeddingModel)
	cfg.LLM.MaxTokens = getEnvInt("ANIMUS_LLM_MAX_TOKENS", cfg.LLM.MaxTokens)
	cfg.LLM.Temperature = getEnvFloat("ANIMUS_LLM_TEMPERATURE", cfg.LLM.Temperature)
	cfg.LLM.RequestsPerSecond = getEnvFloat("ANIMUS_LLM_REQUESTS_PER_SECOND", cfg.LLM.RequestsPerSecond)

	cfg.Synthesis.Threshold = getEnvFloat("ANIMUS_SYNTHESIS_THRESHOLD", cfg.Synthesis.Threshold)
	cfg.Synthesis.TimeWeight = getEnvFloat("ANIMUS_TIME_WEIGHT", cfg.Synthesis.TimeWeight)
	cfg.Synthesis.EventWeight = getEnvFloat("ANIMUS_EVENT_WEIGHT", cfg.Synthesis.EventWeight)
	cfg.Synthesis.TokenWeight = getEnvFloat("ANIMUS_TOKEN_WEIGHT", cfg.Synthesis.TokenWeight)
	cfg.Synthesis.ScanInterval = getEnvDuration("ANIMUS_SCAN_INTERVAL", cfg.Synthesis.ScanInterval)

	cfg.Curation.Enabled = getEnvBool("ANIMUS_CURATION_ENABLED", cfg.Curation.Enabled)
	cfg.Curation.Interval = getEnvDuration("ANIMUS_CURATION_INTERVAL", cfg.Curation.Interval)
}

// Model returns the configured model for the active provider.
func (c *LLMConfig) Model() string {
	switch c.Provider {
	case "openai":
		return c.OpenAIModel
	case "anthropic":
		return c.AnthropicModel
	default:
		return c.OllamaModel
	}
}

// APIKey returns the configured API key for the active provider.
func (c *LLMConfig) APIKey() string {
	switch c.Provider {
	case "openai":
		return c.OpenAIAPIKey
	case "anthropic":
		return c.AnthropicAPIKey
	default:
		return ""
	}
}

// BaseURL returns the provider base URL, which only Ollama configures.
func (c *LLMConfig) BaseURL() string {
	if c.Provider == "ollama" || c.Provider == "" {
		return c.OllamaURL
	}
	return ""
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default
// value. Unparseable values fall back to the default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat retrieves a float environment variable or returns a default
// value. Unparseable values fall back to the default.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default
// value. It recognizes "true", "1", "yes" and "false", "0", "no".
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch value {
		case "true", "1", "yes", "True", "TRUE", "Yes", "YES":
			return true
		case "false", "0", "no", "False", "FALSE", "No", "NO":
			return false
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable or returns a
// default value. Unparseable values fall back to the default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
