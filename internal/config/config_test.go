package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/animus/internal/config"
)

func TestLoadConfig_Defaults(t *testing.T) {
	_ = os.Unsetenv("ANIMUS_CONFIG_FILE")
	_ = os.Unsetenv("ANIMUS_HOST")

	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host,
		"Default host must be 127.0.0.1 for security")
	assert.Equal(t, "sqlite", cfg.Storage.Engine)
	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, 10.0, cfg.Synthesis.Threshold)
	assert.Equal(t, 1.0, cfg.Synthesis.TimeWeight)
	assert.Equal(t, 0.5, cfg.Synthesis.EventWeight)
	assert.Equal(t, 0.0003, cfg.Synthesis.TokenWeight)
	assert.Equal(t, 1024, cfg.LLM.MaxTokens)
	assert.Equal(t, 0.7, cfg.LLM.Temperature)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("ANIMUS_HOST", "0.0.0.0")
	t.Setenv("ANIMUS_SYNTHESIS_THRESHOLD", "25.5")
	t.Setenv("ANIMUS_LLM_PROVIDER", "anthropic")
	t.Setenv("ANIMUS_SCAN_INTERVAL", "30s")

	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 25.5, cfg.Synthesis.Threshold)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, 30*time.Second, cfg.Synthesis.ScanInterval)
}

func TestLoadConfig_YAMLFileWithEnvPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "animus.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
synthesis:
  threshold: 42
  event_weight: 2.0
llm:
  provider: openai
`), 0o600))

	t.Setenv("ANIMUS_CONFIG_FILE", path)
	t.Setenv("ANIMUS_SYNTHESIS_THRESHOLD", "7")

	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	// Env wins over file; file wins over defaults.
	assert.Equal(t, 7.0, cfg.Synthesis.Threshold)
	assert.Equal(t, 2.0, cfg.Synthesis.EventWeight)
	assert.Equal(t, "openai", cfg.LLM.Provider)
}

func TestLoadConfig_PostgresRequiresDSN(t *testing.T) {
	t.Setenv("ANIMUS_STORAGE_ENGINE", "postgres")
	_ = os.Unsetenv("ANIMUS_POSTGRES_DSN")

	_, err := config.LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfig_UnparseableEnvFallsBack(t *testing.T) {
	t.Setenv("ANIMUS_SYNTHESIS_THRESHOLD", "not-a-number")
	t.Setenv("ANIMUS_LLM_MAX_TOKENS", "also-not")

	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 10.0, cfg.Synthesis.Threshold)
	assert.Equal(t, 1024, cfg.LLM.MaxTokens)
}

func TestLLMConfig_ProviderAccessors(t *testing.T) {
	cfg := config.LLMConfig{
		Provider:        "anthropic",
		AnthropicModel:  "claude-3-5-sonnet-20241022",
		AnthropicAPIKey: "sk-ant-test",
		OpenAIModel:     "gpt-4o",
	}
	assert.Equal(t, "claude-3-5-sonnet-20241022", cfg.Model())
	assert.Equal(t, "sk-ant-test", cfg.APIKey())
	assert.Equal(t, "", cfg.BaseURL())

	cfg.Provider = "ollama"
	cfg.OllamaURL = "http://localhost:11434"
	assert.Equal(t, "http://localhost:11434", cfg.BaseURL())
}
