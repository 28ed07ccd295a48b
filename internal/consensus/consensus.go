// Package consensus implements the ensemble second-opinion stage: an
// architecturally different model independently analyzes the same request,
// and the two question lists are reconciled into a ConsensusResult.
package consensus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"formsmith/internal/analysis"
	"formsmith/internal/llm"
	"formsmith/internal/logging"
)

const ensembleTemperature = 0.4

// agreementThreshold is the fixed agreement rate above which the primary
// analysis is recommended as-is. Not learned, not configurable.
const agreementThreshold = 0.7

// ConflictDetail records one disagreement between the two models.
type ConflictDetail struct {
	Field         string `json:"field"`
	Model1Opinion string `json:"model1Opinion"`
	Model2Opinion string `json:"model2Opinion"`
	Resolution    string `json:"resolution"`
}

// Result is the reconciliation of two independent analyses.
type Result struct {
	// AgreedFields are primary questions the second model also proposed.
	AgreedFields []analysis.CandidateQuestion `json:"agreedFields"`
	Conflicts    []ConflictDetail             `json:"conflicts,omitempty"`
	// RecommendedApproach is "use primary analysis" or "review both carefully".
	RecommendedApproach string `json:"recommendedApproach"`
	// ConfidenceScore is the agreement rate, always in [0,1] and exactly 0
	// (never NaN) when the primary question list is empty.
	ConfidenceScore float64 `json:"confidenceScore"`
}

const systemPrompt = `You are an independent form-design reviewer giving a second opinion. You are shown a request and another model's analysis of it. Independently decide what questions the form should have. Do not simply copy the other analysis - assess the request on its own merits, then note where you agree and disagree.

Respond with a single JSON object in the same schema as the analysis you were shown (understanding / questions / metadata).`

// Builder runs the ensemble stage.
type Builder struct {
	client  llm.Client
	matcher Matcher
}

// New creates a Builder. A nil matcher gets the default NormalizedMatcher.
func New(client llm.Client, matcher Matcher) *Builder {
	if matcher == nil {
		matcher = NormalizedMatcher{}
	}
	return &Builder{client: client, matcher: matcher}
}

// Build obtains the second opinion from the given secondary model and
// reconciles it with the primary analysis.
func (b *Builder) Build(ctx context.Context, request string, primary *analysis.Analysis, model string) (*Result, error) {
	timer := logging.StartTimer(logging.CategoryConsensus, "ensemble")
	defer timer.Stop()

	serialized, err := json.MarshalIndent(primary, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize primary analysis: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("Original request:\n")
	sb.WriteString(request)
	sb.WriteString("\n\nOther model's analysis (for comparison after you form your own view):\n")
	sb.Write(serialized)

	response, err := b.client.Complete(ctx, llm.Request{
		Model:        model,
		SystemPrompt: systemPrompt,
		UserPrompt:   sb.String(),
		Temperature:  ensembleTemperature,
		ForceJSON:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("ensemble call failed: %w", err)
	}

	secondary, err := analysis.Parse("ensemble", response)
	if err != nil {
		return nil, err
	}

	result, err := b.Reconcile(ctx, primary, secondary)
	if err != nil {
		return nil, err
	}

	logging.Consensus("ensemble via %s: %d/%d agreed (%.2f), %d conflicts -> %s",
		model, len(result.AgreedFields), len(primary.Questions),
		result.ConfidenceScore, len(result.Conflicts), result.RecommendedApproach)
	return result, nil
}

// Reconcile computes agreement between the two question lists. Exported
// separately from Build so the agreement computation is testable without a
// completion service.
func (b *Builder) Reconcile(ctx context.Context, primary, secondary *analysis.Analysis) (*Result, error) {
	result := &Result{}

	for _, pq := range primary.Questions {
		match, err := b.findMatch(ctx, pq.Question, secondary.Questions)
		if err != nil {
			return nil, fmt.Errorf("label matching failed: %w", err)
		}

		if match == nil {
			result.Conflicts = append(result.Conflicts, ConflictDetail{
				Field:         pq.Question,
				Model1Opinion: fmt.Sprintf("include as %s", pq.SuggestedFieldType),
				Model2Opinion: "did not propose this question",
				Resolution:    "keep primary question",
			})
			continue
		}

		result.AgreedFields = append(result.AgreedFields, pq)

		if match.SuggestedFieldType != pq.SuggestedFieldType {
			result.Conflicts = append(result.Conflicts, ConflictDetail{
				Field:         pq.Question,
				Model1Opinion: pq.SuggestedFieldType,
				Model2Opinion: match.SuggestedFieldType,
				Resolution:    "use primary field type",
			})
		}
	}

	// Agreement rate over the primary list; defined as 0 for an empty
	// primary so the score is never NaN.
	if n := len(primary.Questions); n > 0 {
		result.ConfidenceScore = float64(len(result.AgreedFields)) / float64(n)
	}

	if result.ConfidenceScore > agreementThreshold {
		result.RecommendedApproach = "use primary analysis"
	} else {
		result.RecommendedApproach = "review both carefully"
	}

	return result, nil
}

func (b *Builder) findMatch(ctx context.Context, label string, candidates []analysis.CandidateQuestion) (*analysis.CandidateQuestion, error) {
	for i := range candidates {
		same, err := b.matcher.Same(ctx, label, candidates[i].Question)
		if err != nil {
			return nil, err
		}
		if same {
			return &candidates[i], nil
		}
	}
	return nil, nil
}
