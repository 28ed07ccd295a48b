package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "formsmith", cfg.Name)
	assert.Equal(t, 4, cfg.Pipeline.MaxConcurrentCalls)
	assert.Equal(t, 1, cfg.LLM.MaxRetries)
	assert.Equal(t, 8000, cfg.Reference.MaxLength)
	assert.False(t, cfg.Logging.DebugMode)
	assert.False(t, cfg.Consensus.EmbeddingMatcher, "embedding matcher is opt-in")
	require.NoError(t, cfg.Validate())
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, Default().Pipeline, cfg.Pipeline)
}

func TestLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
		"llm": {"timeout": "30s", "max_retries": 2, "retry_backoff": "1s"},
		"pipeline": {"max_concurrent_calls": 2, "stage_deadline": "60s", "optional_stage_reserve": "10s"},
		"consensus": {"embedding_matcher": true, "similarity_threshold": 0.9},
		"logging": {"debug_mode": true, "level": "debug"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.GetLLMTimeout())
	assert.Equal(t, 2, cfg.LLM.MaxRetries)
	assert.Equal(t, 2, cfg.Pipeline.MaxConcurrentCalls)
	assert.Equal(t, 60*time.Second, cfg.GetStageDeadline())
	assert.True(t, cfg.Logging.DebugMode)
	assert.True(t, cfg.Consensus.EmbeddingMatcher)
	assert.Equal(t, 0.9, cfg.Consensus.SimilarityThreshold)

	// Omitted sections keep their defaults.
	assert.Equal(t, 8000, cfg.Reference.MaxLength)
	assert.NotEmpty(t, cfg.Roster.Balanced)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "roster:\n  fast: test-fast\n  balanced: test-balanced\n  max: test-max\n  secondary: test-secondary\npipeline:\n  max_concurrent_calls: 8\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "test-balanced", cfg.Roster.Balanced)
	assert.Equal(t, 8, cfg.Pipeline.MaxConcurrentCalls)
}

func TestLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FORMSMITH_DEBUG", "true")
	t.Setenv("FORMSMITH_MAX_CONCURRENT", "7")
	t.Setenv("FORMSMITH_BALANCED_MODEL", "env-balanced")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)

	assert.True(t, cfg.Logging.DebugMode)
	assert.Equal(t, 7, cfg.Pipeline.MaxConcurrentCalls)
	assert.Equal(t, "env-balanced", cfg.Roster.Balanced)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".formsmith", "config.json")

	cfg := Default()
	cfg.Pipeline.MaxConcurrentCalls = 3
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.Pipeline.MaxConcurrentCalls)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero concurrency", func(c *Config) { c.Pipeline.MaxConcurrentCalls = 0 }},
		{"negative retries", func(c *Config) { c.LLM.MaxRetries = -1 }},
		{"zero reference cap", func(c *Config) { c.Reference.MaxLength = 0 }},
		{"empty roster tier", func(c *Config) { c.Roster.Balanced = "" }},
		{"similarity threshold above 1", func(c *Config) { c.Consensus.SimilarityThreshold = 1.5 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDurationFallbacks(t *testing.T) {
	cfg := Default()
	cfg.LLM.Timeout = "garbage"
	cfg.LLM.RetryBackoff = ""
	cfg.Pipeline.StageDeadline = "soon"
	cfg.Pipeline.OptionalStageReserve = "later"

	assert.Equal(t, 90*time.Second, cfg.GetLLMTimeout())
	assert.Equal(t, 2*time.Second, cfg.GetRetryBackoff())
	assert.Equal(t, 120*time.Second, cfg.GetStageDeadline())
	assert.Equal(t, 30*time.Second, cfg.GetOptionalStageReserve())
}
