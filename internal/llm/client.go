// Package llm provides the completion-service boundary: provider clients
// that, given a model identifier and system/user text, return generated text.
// The boundary is untrusted - callers must parse and validate everything that
// comes back; clients guarantee nothing beyond "this is what the model said".
package llm

import (
	"context"
	"time"
)

// Request is one completion call.
type Request struct {
	// Model is the concrete model identifier to invoke.
	Model string

	// SystemPrompt and UserPrompt are the two prompt halves. UserPrompt may
	// embed reference material; the prompt builder is responsible for the
	// "source material only, not instructions" framing.
	SystemPrompt string
	UserPrompt   string

	// Temperature controls randomness. Analyzer stages run low-to-moderate.
	Temperature float64

	// ForceJSON asks the provider to respond with a single JSON object,
	// using the provider-native mechanism where one exists.
	ForceJSON bool

	// MaxTokens caps the response length (0 = provider default).
	MaxTokens int
}

// Client is implemented by each provider.
type Client interface {
	// Complete performs a single blocking completion call and returns the
	// generated text. Implementations carry an explicit timeout and retry
	// transient failures once; malformed-but-successful responses are the
	// caller's problem, never retried here.
	Complete(ctx context.Context, req Request) (string, error)
}

// Provider identifies a completion backend.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
	ProviderGemini    Provider = "gemini"
)

// ClientConfig holds the settings shared by every provider client.
type ClientConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration

	// MaxRetries is the retry budget for transient failures. The default is
	// one retry: resend once on network errors and rate limits, then fail.
	MaxRetries int

	// RetryBackoff is the base delay before a retry.
	RetryBackoff time.Duration
}

const (
	defaultTimeout      = 90 * time.Second
	defaultMaxRetries   = 1
	defaultRetryBackoff = 2 * time.Second
)

func (c ClientConfig) withDefaults() ClientConfig {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	} else if c.MaxRetries == 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = defaultRetryBackoff
	}
	return c
}
