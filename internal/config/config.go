// Package config holds all formsmith configuration. Configuration lives in
// .formsmith/config.json (or a YAML file passed via --config); missing files
// yield defaults so the tool works out of the box with only API keys set.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"formsmith/internal/roster"
)

// Config holds all formsmith configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name" json:"name"`
	Version string `yaml:"version" json:"version"`

	// Completion service settings
	LLM LLMConfig `yaml:"llm" json:"llm"`

	// Model roster per capability tier
	Roster roster.Roster `yaml:"roster" json:"roster"`

	// Pipeline orchestration settings
	Pipeline PipelineConfig `yaml:"pipeline" json:"pipeline"`

	// Ensemble field matching settings
	Consensus ConsensusConfig `yaml:"consensus" json:"consensus"`

	// Reference material handling
	Reference ReferenceConfig `yaml:"reference" json:"reference"`

	// Logging
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// LLMConfig configures the completion clients.
type LLMConfig struct {
	Timeout      string `yaml:"timeout" json:"timeout"`
	MaxRetries   int    `yaml:"max_retries" json:"max_retries"`
	RetryBackoff string `yaml:"retry_backoff" json:"retry_backoff"`

	// Base URL overrides, mainly for proxies and tests.
	AnthropicBaseURL string `yaml:"anthropic_base_url,omitempty" json:"anthropic_base_url,omitempty"`
	OpenAIBaseURL    string `yaml:"openai_base_url,omitempty" json:"openai_base_url,omitempty"`
	GeminiBaseURL    string `yaml:"gemini_base_url,omitempty" json:"gemini_base_url,omitempty"`
}

// PipelineConfig configures stage orchestration.
type PipelineConfig struct {
	// MaxConcurrentCalls bounds simultaneous completion requests across
	// all stages of one invocation.
	MaxConcurrentCalls int `yaml:"max_concurrent_calls" json:"max_concurrent_calls"`

	// StageDeadline is the budget for the whole pipeline run. When the
	// remaining time drops below OptionalStageReserve, optional stages
	// are skipped rather than started.
	StageDeadline        string `yaml:"stage_deadline" json:"stage_deadline"`
	OptionalStageReserve string `yaml:"optional_stage_reserve" json:"optional_stage_reserve"`

	// Default toggles for the optional stages; per-invocation options
	// override these.
	EnableEnsemble   bool `yaml:"enable_ensemble" json:"enable_ensemble"`
	EnableValidation bool `yaml:"enable_validation" json:"enable_validation"`
	EnableRefinement bool `yaml:"enable_refinement" json:"enable_refinement"`
}

// ConsensusConfig configures how the ensemble pass matches fields across
// analyses.
type ConsensusConfig struct {
	// EmbeddingMatcher switches field matching from normalized string
	// comparison to semantic similarity via the Gemini embedding API.
	// Requires GEMINI_API_KEY.
	EmbeddingMatcher bool `yaml:"embedding_matcher" json:"embedding_matcher"`

	// SimilarityThreshold is the cosine similarity above which two labels
	// count as the same field; 0 uses the matcher's default.
	SimilarityThreshold float64 `yaml:"similarity_threshold,omitempty" json:"similarity_threshold,omitempty"`
}

// ReferenceConfig configures reference material sanitization.
type ReferenceConfig struct {
	// MaxLength caps sanitized reference text in characters.
	MaxLength int `yaml:"max_length" json:"max_length"`
}

// LoggingConfig configures the category logger. The json tags match what
// the logging package reads from .formsmith/config.json.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode" json:"debug_mode"`
	Categories map[string]bool `yaml:"categories,omitempty" json:"categories,omitempty"`
	Level      string          `yaml:"level" json:"level"` // debug, info, warn, error
	JSONFormat bool            `yaml:"json_format" json:"json_format"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Name:    "formsmith",
		Version: "1.0.0",

		LLM: LLMConfig{
			Timeout:      "90s",
			MaxRetries:   1,
			RetryBackoff: "2s",
		},

		Roster: roster.Default(),

		Pipeline: PipelineConfig{
			MaxConcurrentCalls:   4,
			StageDeadline:        "120s",
			OptionalStageReserve: "30s",
			EnableEnsemble:       true,
			EnableValidation:     true,
			EnableRefinement:     true,
		},

		Reference: ReferenceConfig{
			MaxLength: 8000,
		},

		Logging: LoggingConfig{
			DebugMode: false,
			Level:     "info",
		},
	}
}

// DefaultPath returns the default config path under the current directory.
func DefaultPath() string {
	cwd, err := os.Getwd()
	if err != nil {
		return filepath.Join(".formsmith", "config.json")
	}
	return filepath.Join(cwd, ".formsmith", "config.json")
}

// Load loads configuration from a JSON or YAML file, applying defaults for
// anything the file omits. A missing file returns pure defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration, JSON or YAML by extension.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("FORMSMITH_DEBUG"); v != "" {
		c.Logging.DebugMode = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("FORMSMITH_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("FORMSMITH_MAX_CONCURRENT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Pipeline.MaxConcurrentCalls = n
		}
	}

	// Roster overrides for quick experiments without editing the file.
	if m := os.Getenv("FORMSMITH_FAST_MODEL"); m != "" {
		c.Roster.Fast = m
	}
	if m := os.Getenv("FORMSMITH_BALANCED_MODEL"); m != "" {
		c.Roster.Balanced = m
	}
	if m := os.Getenv("FORMSMITH_MAX_MODEL"); m != "" {
		c.Roster.Max = m
	}
	if m := os.Getenv("FORMSMITH_SECONDARY_MODEL"); m != "" {
		c.Roster.Secondary = m
	}
}

// GetLLMTimeout returns the completion timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 90 * time.Second
	}
	return d
}

// GetRetryBackoff returns the retry backoff as a duration.
func (c *Config) GetRetryBackoff() time.Duration {
	d, err := time.ParseDuration(c.LLM.RetryBackoff)
	if err != nil {
		return 2 * time.Second
	}
	return d
}

// GetStageDeadline returns the whole-pipeline budget as a duration.
func (c *Config) GetStageDeadline() time.Duration {
	d, err := time.ParseDuration(c.Pipeline.StageDeadline)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// GetOptionalStageReserve returns the minimum remaining time required to
// start an optional stage.
func (c *Config) GetOptionalStageReserve() time.Duration {
	d, err := time.ParseDuration(c.Pipeline.OptionalStageReserve)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Roster.Validate(); err != nil {
		return fmt.Errorf("invalid roster: %w", err)
	}
	if c.Pipeline.MaxConcurrentCalls < 1 {
		return fmt.Errorf("max_concurrent_calls must be at least 1, got %d", c.Pipeline.MaxConcurrentCalls)
	}
	if c.LLM.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative, got %d", c.LLM.MaxRetries)
	}
	if t := c.Consensus.SimilarityThreshold; t < 0 || t > 1 {
		return fmt.Errorf("similarity_threshold must be in [0,1], got %v", t)
	}
	if c.Reference.MaxLength < 1 {
		return fmt.Errorf("reference max_length must be positive, got %d", c.Reference.MaxLength)
	}
	return nil
}
