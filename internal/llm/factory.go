package llm

import (
	"context"
	"os"
	"strings"
	"time"
)

// Credentials holds API keys per provider. Empty keys disable the provider.
type Credentials struct {
	Anthropic string
	OpenAI    string
	Gemini    string
}

// CredentialsFromEnv reads keys from the conventional environment variables.
func CredentialsFromEnv() Credentials {
	return Credentials{
		Anthropic: os.Getenv("ANTHROPIC_API_KEY"),
		OpenAI:    os.Getenv("OPENAI_API_KEY"),
		Gemini:    os.Getenv("GEMINI_API_KEY"),
	}
}

// HasAny reports whether at least one provider is usable.
func (c Credentials) HasAny() bool {
	return c.Anthropic != "" || c.OpenAI != "" || c.Gemini != ""
}

// Router dispatches completion requests to the provider that serves the
// requested model, so a roster can mix model families (e.g. a Claude primary
// with a GPT second opinion).
type Router struct {
	anthropic Client
	openai    Client
	gemini    Client
	fallback  Client
}

// RouterOptions tunes every provider client built by the router. Zero
// values mean provider defaults.
type RouterOptions struct {
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration

	// Base URL overrides, mainly for proxies and tests.
	AnthropicBaseURL string
	OpenAIBaseURL    string
	GeminiBaseURL    string
}

// NewRouter builds a Router from credentials with default client settings.
func NewRouter(creds Credentials) (*Router, error) {
	return NewRouterWithOptions(creds, RouterOptions{})
}

// NewRouterWithOptions builds a Router from credentials, applying the given
// settings to every provider client. Providers without a key are left nil;
// the first configured provider (anthropic > openai > gemini) becomes the
// fallback for unrecognized model names.
func NewRouterWithOptions(creds Credentials, opts RouterOptions) (*Router, error) {
	if !creds.HasAny() {
		return nil, &ConfigurationError{Reason: "no provider API key configured (set ANTHROPIC_API_KEY, OPENAI_API_KEY, or GEMINI_API_KEY)"}
	}

	tune := func(def ClientConfig, baseURL string) ClientConfig {
		def.Timeout = opts.Timeout
		def.MaxRetries = opts.MaxRetries
		def.RetryBackoff = opts.RetryBackoff
		if baseURL != "" {
			def.BaseURL = baseURL
		}
		return def
	}

	r := &Router{}
	if creds.Anthropic != "" {
		r.anthropic = NewAnthropicClientWithConfig(tune(DefaultAnthropicConfig(creds.Anthropic), opts.AnthropicBaseURL))
	}
	if creds.OpenAI != "" {
		r.openai = NewOpenAIClientWithConfig(tune(DefaultOpenAIConfig(creds.OpenAI), opts.OpenAIBaseURL))
	}
	if creds.Gemini != "" {
		r.gemini = NewGeminiClientWithConfig(tune(DefaultGeminiConfig(creds.Gemini), opts.GeminiBaseURL))
	}

	switch {
	case r.anthropic != nil:
		r.fallback = r.anthropic
	case r.openai != nil:
		r.fallback = r.openai
	default:
		r.fallback = r.gemini
	}
	return r, nil
}

// ProviderForModel maps a model identifier to its provider by name prefix.
func ProviderForModel(model string) Provider {
	m := strings.ToLower(model)
	switch {
	case strings.HasPrefix(m, "claude"):
		return ProviderAnthropic
	case strings.HasPrefix(m, "gpt"), strings.HasPrefix(m, "o1"), strings.HasPrefix(m, "o3"), strings.HasPrefix(m, "o4"):
		return ProviderOpenAI
	case strings.HasPrefix(m, "gemini"):
		return ProviderGemini
	}
	return ""
}

// clientFor returns the client serving the model. A model whose provider is
// recognized but has no key returns a ConfigurationError rather than being
// silently sent to a different provider; unrecognized model names go to the
// fallback provider.
func (r *Router) clientFor(model string) (Client, error) {
	provider := ProviderForModel(model)
	if provider == "" {
		return r.fallback, nil
	}

	var c Client
	switch provider {
	case ProviderAnthropic:
		c = r.anthropic
	case ProviderOpenAI:
		c = r.openai
	case ProviderGemini:
		c = r.gemini
	}
	if c == nil {
		return nil, &ConfigurationError{Reason: "no API key configured for provider " + string(provider) + " (model " + model + ")"}
	}
	return c, nil
}

// Complete implements Client by routing on the request's model identifier.
func (r *Router) Complete(ctx context.Context, req Request) (string, error) {
	c, err := r.clientFor(req.Model)
	if err != nil {
		return "", err
	}
	return c.Complete(ctx, req)
}
