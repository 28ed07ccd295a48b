// Package analyzer runs the model passes that produce an Analysis: the
// primary first-pass understanding of a request, and the refiner that repairs
// an analysis using validator feedback. Both share one output schema and one
// parse-and-normalize discipline.
package analyzer

import (
	"context"
	"fmt"

	"formsmith/internal/analysis"
	"formsmith/internal/llm"
	"formsmith/internal/logging"
	"formsmith/internal/registry"
)

// Stage temperatures. Analysis wants structure, not creativity.
const (
	primaryTemperature = 0.3
	refineTemperature  = 0.2
)

// Analyzer produces Analyses via the completion service.
type Analyzer struct {
	client       llm.Client
	reg          *registry.Registry
	systemPrompt string
}

// New creates an Analyzer. The registry is embedded into the system prompt
// once at construction; it is immutable for the process lifetime.
func New(client llm.Client, reg *registry.Registry) *Analyzer {
	return &Analyzer{
		client:       client,
		reg:          reg,
		systemPrompt: BuildSystemPrompt(reg),
	}
}

// Request carries the inputs for a primary analysis pass.
type Request struct {
	// Request is the literal user request text.
	Request string

	// ReferenceData is pre-sanitized source material (may be empty).
	ReferenceData string

	// UserContext describes the requester (may be empty).
	UserContext string

	// TargetCount, when set, becomes a hard instruction to produce exactly
	// that many questions.
	TargetCount *int

	// Model is the identifier chosen by the model selector.
	Model string
}

// Analyze runs the primary analysis pass. A completion that returns but
// cannot be parsed is a MalformedOutputError - never retried with the same
// prompt, fatal for this stage.
func (a *Analyzer) Analyze(ctx context.Context, req Request) (*analysis.Analysis, error) {
	timer := logging.StartTimer(logging.CategoryAnalysis, "primary analysis")
	defer timer.Stop()

	logging.Analysis("primary analysis via %s (%d chars of request)", req.Model, len(req.Request))

	response, err := a.client.Complete(ctx, llm.Request{
		Model:        req.Model,
		SystemPrompt: a.systemPrompt,
		UserPrompt:   BuildUserPrompt(req.Request, req.ReferenceData, req.UserContext, req.TargetCount),
		Temperature:  primaryTemperature,
		ForceJSON:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("primary analysis call failed: %w", err)
	}

	result, err := analysis.Parse("primary", response)
	if err != nil {
		logging.AnalysisError("primary analysis returned unparseable output: %v", err)
		return nil, err
	}

	logging.Analysis("primary analysis produced %d questions (confidence %.2f)",
		len(result.Questions), result.Metadata.Confidence)
	return result, nil
}

// RefineRequest carries the inputs for a refinement pass.
type RefineRequest struct {
	Request     string
	Current     *analysis.Analysis
	Issues      []string
	Suggestions []string
	Model       string
}

// Refine repairs an analysis using validator findings. It expects an
// improved Analysis conforming to the same schema as the primary pass and
// applies the same parse-and-normalize discipline. The refined output is
// accepted as final without re-validation.
func (a *Analyzer) Refine(ctx context.Context, req RefineRequest) (*analysis.Analysis, error) {
	timer := logging.StartTimer(logging.CategoryAnalysis, "refinement")
	defer timer.Stop()

	logging.Analysis("refining analysis via %s (%d issues)", req.Model, len(req.Issues))

	response, err := a.client.Complete(ctx, llm.Request{
		Model:        req.Model,
		SystemPrompt: a.systemPrompt,
		UserPrompt:   BuildRefinerPrompt(req.Request, req.Current, req.Issues, req.Suggestions),
		Temperature:  refineTemperature,
		ForceJSON:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("refinement call failed: %w", err)
	}

	result, err := analysis.Parse("refine", response)
	if err != nil {
		logging.AnalysisError("refinement returned unparseable output: %v", err)
		return nil, err
	}

	logging.Analysis("refinement produced %d questions", len(result.Questions))
	return result, nil
}
