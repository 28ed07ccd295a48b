package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"formsmith/internal/logging"
)

// AnthropicClient implements Client for the Anthropic Messages API.
type AnthropicClient struct {
	apiKey       string
	baseURL      string
	maxRetries   int
	retryBackoff time.Duration
	httpClient   *http.Client
}

// DefaultAnthropicConfig returns sensible defaults.
func DefaultAnthropicConfig(apiKey string) ClientConfig {
	return ClientConfig{
		APIKey:  apiKey,
		BaseURL: "https://api.anthropic.com/v1",
	}
}

// NewAnthropicClient creates a client with default config.
func NewAnthropicClient(apiKey string) *AnthropicClient {
	return NewAnthropicClientWithConfig(DefaultAnthropicConfig(apiKey))
}

// NewAnthropicClientWithConfig creates a client with custom config.
func NewAnthropicClientWithConfig(config ClientConfig) *AnthropicClient {
	config = config.withDefaults()
	return &AnthropicClient{
		apiKey:       config.APIKey,
		baseURL:      config.BaseURL,
		maxRetries:   config.MaxRetries,
		retryBackoff: config.RetryBackoff,
		httpClient:   &http.Client{Timeout: config.Timeout},
	}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete implements Client.
func (c *AnthropicClient) Complete(ctx context.Context, req Request) (string, error) {
	if c.apiKey == "" {
		return "", &ConfigurationError{Reason: "anthropic API key not set"}
	}

	system := req.SystemPrompt
	if req.ForceJSON {
		// No native JSON mode; the directive rides in the system text.
		system += "\n\nRespond with a single valid JSON object and nothing else."
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 8192
	}

	body := anthropicRequest{
		Model:       req.Model,
		System:      system,
		Messages:    []anthropicMessage{{Role: "user", Content: req.UserPrompt}},
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			logging.APIDebug("[anthropic] retrying after transient failure: %v", lastErr)
			select {
			case <-time.After(c.retryBackoff * time.Duration(attempt)):
			case <-ctx.Done():
				return "", &TransientError{Provider: ProviderAnthropic, Cause: ctx.Err()}
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(jsonData))
		if err != nil {
			return "", fmt.Errorf("failed to create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-api-key", c.apiKey)
		httpReq.Header.Set("anthropic-version", "2023-06-01")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			lastErr = err
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("status %d: %s", resp.StatusCode, respBody)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			logging.APIError("[anthropic] status %d for model %s", resp.StatusCode, req.Model)
			return "", fmt.Errorf("anthropic API returned status %d: %s", resp.StatusCode, respBody)
		}

		var parsed anthropicResponse
		if err := json.Unmarshal(respBody, &parsed); err != nil {
			return "", fmt.Errorf("failed to parse anthropic response: %w", err)
		}
		if parsed.Error != nil {
			return "", fmt.Errorf("anthropic API error: %s", parsed.Error.Message)
		}
		if len(parsed.Content) == 0 {
			return "", fmt.Errorf("anthropic response contained no content")
		}

		logging.APIDebug("[anthropic] completion via %s: %d chars", req.Model, len(parsed.Content[0].Text))
		return parsed.Content[0].Text, nil
	}

	return "", &TransientError{Provider: ProviderAnthropic, Cause: lastErr}
}
