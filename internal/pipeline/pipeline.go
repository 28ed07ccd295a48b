// Package pipeline orchestrates the full request-to-form flow: classify,
// select a model, run the primary analysis, fan out the optional ensemble
// and validation passes, optionally refine, then synthesize the final form.
//
// Stage failure policy: the primary analysis and the synthesizer are
// load-bearing - their errors abort the run. The ensemble, validator, and
// refiner are quality enhancements - their errors degrade the run to a
// less-checked result with a warning, never abort it.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"formsmith/internal/analysis"
	"formsmith/internal/analyzer"
	"formsmith/internal/classify"
	"formsmith/internal/config"
	"formsmith/internal/consensus"
	"formsmith/internal/llm"
	"formsmith/internal/logging"
	"formsmith/internal/reference"
	"formsmith/internal/registry"
	"formsmith/internal/roster"
	"formsmith/internal/synthesis"
	"formsmith/internal/validate"
)

// Options carries per-invocation settings.
type Options struct {
	// QuestionCount overrides the count extracted from the request text.
	QuestionCount *int

	// ReferenceData is raw source material (text or HTML); it is sanitized
	// before reaching any prompt.
	ReferenceData string

	// UserContext describes the requester (may be empty).
	UserContext string

	// Quality selects the speed/quality tradeoff. QualityQuick skips every
	// optional stage and QualityHigh runs them all, regardless of the
	// toggles below; the default quality defers to the toggles.
	Quality roster.Quality

	// Toggles for the optional stages at the default quality.
	EnableEnsemble   bool
	EnableValidation bool
	EnableRefinement bool
}

// stageEnabled resolves an optional-stage toggle against the quality level.
func (o Options) stageEnabled(toggle bool) bool {
	switch o.Quality {
	case roster.QualityQuick:
		return false
	case roster.QualityHigh:
		return true
	}
	return toggle
}

// OptionsFromConfig returns Options with stage toggles taken from config
// defaults.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		EnableEnsemble:   cfg.Pipeline.EnableEnsemble,
		EnableValidation: cfg.Pipeline.EnableValidation,
		EnableRefinement: cfg.Pipeline.EnableRefinement,
	}
}

// EnhancedAnalysis is the full record of what each stage produced. Optional
// stages that were skipped or failed leave nil entries.
type EnhancedAnalysis struct {
	PrimaryAnalysis  *analysis.Analysis  `json:"primaryAnalysis"`
	ValidationResult *validate.Result    `json:"validationResult,omitempty"`
	RefinedAnalysis  *analysis.Analysis  `json:"refinedAnalysis,omitempty"`
	Consensus        *consensus.Result   `json:"consensus,omitempty"`
	ModelConfidence  map[string]float64  `json:"modelConfidence"`
	SelectedModel    string              `json:"selectedModel"`
	Complexity       classify.Complexity `json:"complexity"`
}

// Best returns the analysis the synthesizer should consume: the refined one
// when refinement ran, else the primary.
func (e *EnhancedAnalysis) Best() *analysis.Analysis {
	if e.RefinedAnalysis != nil {
		return e.RefinedAnalysis
	}
	return e.PrimaryAnalysis
}

// Result is one completed pipeline run.
type Result struct {
	ID        string           `json:"id"`
	Request   string           `json:"request"`
	CreatedAt time.Time        `json:"createdAt"`
	Elapsed   time.Duration    `json:"elapsed"`
	Form      *synthesis.Form  `json:"form"`
	Enhanced  EnhancedAnalysis `json:"enhanced"`
}

// Pipeline wires the stages together around one shared, concurrency-bounded
// completion client.
type Pipeline struct {
	cfg   *config.Config
	ros   roster.Roster
	an    *analyzer.Analyzer
	val   *validate.Validator
	ens   *consensus.Builder
	synth *synthesis.Synthesizer
}

// New builds a Pipeline. The matcher may be nil, in which case the ensemble
// falls back to normalized-label matching.
func New(client llm.Client, reg *registry.Registry, cfg *config.Config, matcher consensus.Matcher) *Pipeline {
	limited := LimitClient(client, cfg.Pipeline.MaxConcurrentCalls)
	return &Pipeline{
		cfg:   cfg,
		ros:   cfg.Roster,
		an:    analyzer.New(limited, reg),
		val:   validate.New(limited),
		ens:   consensus.New(limited, matcher),
		synth: synthesis.New(reg),
	}
}

// Generate runs the full pipeline for one request.
func (p *Pipeline) Generate(ctx context.Context, request string, opts Options) (*Result, error) {
	if strings.TrimSpace(request) == "" {
		return nil, fmt.Errorf("request must not be empty")
	}

	start := time.Now()
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.GetStageDeadline())
		defer cancel()
	}

	// Classification and count extraction are pure and cheap; they run
	// before any model call.
	tier := classify.Classify(request)
	count := classify.ExtractQuestionCount(request, opts.QuestionCount)
	model := p.ros.SelectForQuality(tier, opts.Quality)

	logging.Pipeline("generate: complexity=%s model=%s quality=%s count=%v",
		tier, model, opts.Quality, countLabel(count))

	// Sanitized only; the analyzer wraps it in the source-material framing
	// when it assembles the prompt.
	refData := ""
	if strings.TrimSpace(opts.ReferenceData) != "" {
		refData = reference.Sanitize(opts.ReferenceData, p.cfg.Reference.MaxLength)
	}

	primary, err := p.an.Analyze(ctx, analyzer.Request{
		Request:       request,
		ReferenceData: refData,
		UserContext:   opts.UserContext,
		TargetCount:   count,
		Model:         model,
	})
	if err != nil {
		return nil, err
	}

	enhanced := EnhancedAnalysis{
		PrimaryAnalysis: primary,
		SelectedModel:   model,
		Complexity:      tier,
		ModelConfidence: map[string]float64{model: primary.Metadata.Confidence},
	}

	p.runOptionalStages(ctx, request, primary, opts, &enhanced)
	p.maybeRefine(ctx, request, opts, &enhanced)

	form, err := p.synth.Synthesize(synthesis.Input{
		Request:     request,
		Analysis:    enhanced.Best(),
		TargetCount: count,
	})
	if err != nil {
		return nil, err
	}

	elapsed := time.Since(start)
	logging.Pipeline("generate finished in %v (%d fields)", elapsed, len(form.Fields))

	return &Result{
		ID:        uuid.NewString(),
		Request:   request,
		CreatedAt: start,
		Elapsed:   elapsed,
		Form:      form,
		Enhanced:  enhanced,
	}, nil
}

// runOptionalStages fans out the ensemble pass and the validator
// concurrently. Either stage failing leaves its slot nil with a warning.
func (p *Pipeline) runOptionalStages(ctx context.Context, request string, primary *analysis.Analysis, opts Options, enhanced *EnhancedAnalysis) {
	runEnsemble := opts.stageEnabled(opts.EnableEnsemble)
	runValidation := opts.stageEnabled(opts.EnableValidation)

	if !runEnsemble && !runValidation {
		return
	}
	if !p.deadlineAllows(ctx) {
		logging.PipelineWarn("deadline too close, skipping optional stages")
		return
	}

	var (
		consensusRes  *consensus.Result
		validationRes *validate.Result
	)
	secondary := p.ros.SecondaryModel()
	validator := p.ros.ValidatorModel()

	g, gctx := errgroup.WithContext(ctx)

	if runEnsemble {
		g.Go(func() error {
			res, err := p.ens.Build(gctx, request, primary, secondary)
			if err != nil {
				logging.ConsensusWarn("ensemble pass failed, continuing without it: %v", err)
				return nil
			}
			consensusRes = res
			return nil
		})
	}

	if runValidation {
		g.Go(func() error {
			res, err := p.val.Validate(gctx, request, primary, validator)
			if err != nil {
				logging.ValidationWarn("validation failed, continuing without it: %v", err)
				return nil
			}
			validationRes = res
			return nil
		})
	}

	// The goroutines swallow their own errors, so Wait only synchronizes;
	// enhanced is written only after it returns.
	_ = g.Wait()

	if consensusRes != nil {
		enhanced.Consensus = consensusRes
		enhanced.ModelConfidence[secondary] = consensusRes.ConfidenceScore
	}
	if validationRes != nil {
		enhanced.ValidationResult = validationRes
		enhanced.ModelConfidence[validator] = validationRes.Confidence
	}
}

// maybeRefine runs the refiner when validation ran and found the analysis
// invalid. A refiner failure keeps the primary analysis.
func (p *Pipeline) maybeRefine(ctx context.Context, request string, opts Options, enhanced *EnhancedAnalysis) {
	if !opts.stageEnabled(opts.EnableRefinement) {
		return
	}
	vr := enhanced.ValidationResult
	if vr == nil || vr.IsValid {
		return
	}
	if !p.deadlineAllows(ctx) {
		logging.PipelineWarn("deadline too close, skipping refinement despite %d issues", len(vr.Issues))
		return
	}

	refined, err := p.an.Refine(ctx, analyzer.RefineRequest{
		Request:     request,
		Current:     enhanced.PrimaryAnalysis,
		Issues:      vr.Issues,
		Suggestions: vr.Suggestions,
		Model:       p.ros.RefinerModel(),
	})
	if err != nil {
		logging.PipelineWarn("refinement failed, keeping primary analysis: %v", err)
		return
	}
	enhanced.RefinedAnalysis = refined
}

// deadlineAllows reports whether enough budget remains to start an optional
// stage.
func (p *Pipeline) deadlineAllows(ctx context.Context) bool {
	deadline, ok := ctx.Deadline()
	if !ok {
		return true
	}
	return time.Until(deadline) >= p.cfg.GetOptionalStageReserve()
}

func countLabel(n *int) string {
	if n == nil {
		return "auto"
	}
	return fmt.Sprintf("%d", *n)
}
