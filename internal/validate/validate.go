// Package validate audits an Analysis without improving it. A fast model
// critiques the primary result against the original request; the findings
// gate the refiner but never mutate the analysis they describe.
package validate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"formsmith/internal/analysis"
	"formsmith/internal/llm"
	"formsmith/internal/logging"
)

const validateTemperature = 0.1

// Result is the validator's verdict on an Analysis.
type Result struct {
	IsValid     bool     `json:"isValid"`
	Issues      []string `json:"issues,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
	// Confidence is always in [0,1] after normalization.
	Confidence float64 `json:"confidence"`
}

const systemPrompt = `You are a meticulous form-design reviewer. Audit the proposed analysis against the original request. You do NOT fix anything - you only report findings.

Check for:
- missing critical fields the request clearly needs
- wrong field type choices
- biased or leading question wording
- redundant or overlapping questions
- logical flow problems (e.g. a follow-up before its trigger)
- accessibility concerns (jargon, ambiguous labels)

Respond with a single JSON object:
{"isValid": true, "issues": ["..."], "suggestions": ["..."], "confidence": 0.0}
Set isValid to false when any issue is significant enough to warrant repair.`

// Validator critiques analyses via the completion service.
type Validator struct {
	client llm.Client
}

// New creates a Validator.
func New(client llm.Client) *Validator {
	return &Validator{client: client}
}

// Validate audits the analysis against the original request text using the
// given (fast/cheap) model. The analysis is read, never written.
func (v *Validator) Validate(ctx context.Context, request string, a *analysis.Analysis, model string) (*Result, error) {
	timer := logging.StartTimer(logging.CategoryValidation, "validation")
	defer timer.Stop()

	serialized, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize analysis: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("Original request:\n")
	sb.WriteString(request)
	sb.WriteString("\n\nProposed analysis:\n")
	sb.Write(serialized)

	response, err := v.client.Complete(ctx, llm.Request{
		Model:        model,
		SystemPrompt: systemPrompt,
		UserPrompt:   sb.String(),
		Temperature:  validateTemperature,
		ForceJSON:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("validation call failed: %w", err)
	}

	result, err := parseResult(response)
	if err != nil {
		return nil, err
	}

	logging.Validation("validation verdict: valid=%v issues=%d confidence=%.2f",
		result.IsValid, len(result.Issues), result.Confidence)
	return result, nil
}

// parseResult maps the untrusted validator response into a Result.
func parseResult(response string) (*Result, error) {
	jsonStr := analysis.ExtractJSONObject(response)
	if jsonStr == "" {
		return nil, &analysis.MalformedOutputError{Stage: "validate", Reason: "no JSON object found in response"}
	}

	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(jsonStr), &raw); err != nil {
		return nil, &analysis.MalformedOutputError{Stage: "validate", Reason: "invalid JSON: " + err.Error()}
	}

	r := &Result{Confidence: 0.5}
	if v, ok := raw["isValid"].(bool); ok {
		r.IsValid = v
	}
	if c, ok := raw["confidence"].(float64); ok {
		r.Confidence = clampUnit(c)
	}
	r.Issues = stringSlice(raw["issues"])
	r.Suggestions = stringSlice(raw["suggestions"])

	// A verdict that flags issues but claims validity is contradictory;
	// trust the issues.
	if len(r.Issues) > 0 && r.IsValid {
		r.IsValid = false
	}
	return r, nil
}

func clampUnit(f float64) float64 {
	if f != f || f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func stringSlice(v interface{}) []string {
	items, _ := v.([]interface{})
	var out []string
	for _, it := range items {
		if s, ok := it.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}
