package llm

import "fmt"

// ConfigurationError reports a missing credential or misconfigured client.
// Fatal, never retried.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "llm configuration error: " + e.Reason
}

// TransientError reports a network or rate-limit failure. Clients retry these
// once before giving up; if the budget is exhausted the TransientError
// surfaces to the caller.
type TransientError struct {
	Provider Provider
	Cause    error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient %s failure: %v", e.Provider, e.Cause)
}

func (e *TransientError) Unwrap() error { return e.Cause }
