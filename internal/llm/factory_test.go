package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderForModel(t *testing.T) {
	tests := []struct {
		model string
		want  Provider
	}{
		{"claude-sonnet-4-5", ProviderAnthropic},
		{"claude-opus-4-1", ProviderAnthropic},
		{"gpt-4o", ProviderOpenAI},
		{"o3-mini", ProviderOpenAI},
		{"gemini-2.5-flash", ProviderGemini},
		{"llama-3-70b", Provider("")},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.want, ProviderForModel(tt.model))
		})
	}
}

func TestNewRouter_RequiresAKey(t *testing.T) {
	_, err := NewRouter(Credentials{})
	require.Error(t, err)

	var confErr *ConfigurationError
	assert.True(t, errors.As(err, &confErr))
}

func TestRouter_UnconfiguredProviderErrors(t *testing.T) {
	r, err := NewRouter(Credentials{Anthropic: "key"})
	require.NoError(t, err)

	// gpt-4o is recognized as openai, which has no key here; it must not be
	// silently routed to anthropic.
	_, err = r.Complete(context.Background(), Request{Model: "gpt-4o", UserPrompt: "hi"})
	var confErr *ConfigurationError
	require.True(t, errors.As(err, &confErr))
}

func TestNewRouterWithOptions_AppliesOverrides(t *testing.T) {
	r, err := NewRouterWithOptions(Credentials{Anthropic: "a"}, RouterOptions{
		MaxRetries:       3,
		AnthropicBaseURL: "http://localhost:9999/v1",
	})
	require.NoError(t, err)

	c, err := r.clientFor("claude-haiku-4-5")
	require.NoError(t, err)
	ac, ok := c.(*AnthropicClient)
	require.True(t, ok)
	assert.Equal(t, "http://localhost:9999/v1", ac.baseURL)
	assert.Equal(t, 3, ac.maxRetries)
}

func TestRouter_ClientFor(t *testing.T) {
	r, err := NewRouter(Credentials{Anthropic: "a", OpenAI: "o", Gemini: "g"})
	require.NoError(t, err)

	c, err := r.clientFor("claude-haiku-4-5")
	require.NoError(t, err)
	assert.IsType(t, &AnthropicClient{}, c)

	c, err = r.clientFor("gpt-4o")
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, c)

	c, err = r.clientFor("gemini-2.5-flash")
	require.NoError(t, err)
	assert.IsType(t, &GeminiClient{}, c)

	// Unrecognized models go to the fallback (first configured provider).
	c, err = r.clientFor("mystery-model")
	require.NoError(t, err)
	assert.IsType(t, &AnthropicClient{}, c)
}
