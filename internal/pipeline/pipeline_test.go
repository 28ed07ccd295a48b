package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"formsmith/internal/config"
	"formsmith/internal/llm"
	"formsmith/internal/registry"
)

func TestMain(m *testing.M) {
	// go.opencensus.io (via google.golang.org/genai) starts a worker
	// goroutine in its package init that never exits.
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

// stageFor identifies the stage of a completion request by its temperature;
// each stage runs at a distinct one.
func stageFor(req llm.Request) string {
	switch req.Temperature {
	case 0.3:
		return "primary"
	case 0.4:
		return "ensemble"
	case 0.1:
		return "validate"
	case 0.2:
		return "refine"
	}
	return "unknown"
}

// scriptedClient serves canned responses per stage and records every request.
type scriptedClient struct {
	mu        sync.Mutex
	responses map[string]string
	errs      map[string]error
	requests  []llm.Request
}

func newScriptedClient() *scriptedClient {
	return &scriptedClient{
		responses: make(map[string]string),
		errs:      make(map[string]error),
	}
}

func (c *scriptedClient) Complete(_ context.Context, req llm.Request) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)

	stage := stageFor(req)
	if err := c.errs[stage]; err != nil {
		return "", err
	}
	resp, ok := c.responses[stage]
	if !ok {
		return "", fmt.Errorf("no scripted response for stage %s", stage)
	}
	return resp, nil
}

func (c *scriptedClient) stages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, req := range c.requests {
		out = append(out, stageFor(req))
	}
	return out
}

func (c *scriptedClient) countStage(stage string) int {
	n := 0
	for _, s := range c.stages() {
		if s == stage {
			n++
		}
	}
	return n
}

// analysisJSON builds a minimal valid analysis payload with n questions.
func analysisJSON(contentType string, n int) string {
	var qs []string
	for i := 0; i < n; i++ {
		if contentType == "quiz" {
			qs = append(qs, fmt.Sprintf(`{
				"question": "Quiz question %d?",
				"suggestedFieldType": "multiple_choice",
				"options": ["A", "B", "C"],
				"correctAnswer": "A",
				"required": true
			}`, i+1))
		} else {
			qs = append(qs, fmt.Sprintf(`{
				"question": "Survey question %d?",
				"suggestedFieldType": "short_text",
				"required": true
			}`, i+1))
		}
	}
	return fmt.Sprintf(`{
		"understanding": {"purpose": "test %s", "keyTopics": ["topic one", "topic two"]},
		"questions": [%s],
		"metadata": {"contentType": %q, "confidence": 0.9}
	}`, contentType, strings.Join(qs, ","), contentType)
}

func verdictJSON(valid bool, issues ...string) string {
	quoted := make([]string, len(issues))
	for i, s := range issues {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return fmt.Sprintf(`{"isValid": %v, "issues": [%s], "suggestions": ["tighten wording"], "confidence": 0.8}`,
		valid, strings.Join(quoted, ","))
}

func newTestPipeline(client llm.Client) *Pipeline {
	return New(client, registry.New(), config.Default(), nil)
}

func fullOptions() Options {
	return Options{EnableEnsemble: true, EnableValidation: true, EnableRefinement: true}
}

func TestGenerateSurveyQuickMode(t *testing.T) {
	client := newScriptedClient()
	client.responses["primary"] = analysisJSON("survey", 5)
	p := newTestPipeline(client)

	res, err := p.Generate(context.Background(), "Make a 5-question survey about coffee habits", Options{
		Quality:          "quick",
		EnableEnsemble:   true,
		EnableValidation: true,
		EnableRefinement: true,
	})
	require.NoError(t, err)

	// Exactly the extracted count, in a dense zero-based order.
	require.Len(t, res.Form.Fields, 5)
	for i, f := range res.Form.Fields {
		assert.Equal(t, i, f.Order)
	}
	assert.Nil(t, res.Form.QuizMode)
	for _, f := range res.Form.Fields {
		assert.Nil(t, f.QuizConfig)
	}

	// Quick mode makes exactly one model call, regardless of the toggles.
	assert.Equal(t, []string{"primary"}, client.stages())
	assert.Nil(t, res.Enhanced.ValidationResult)
	assert.Nil(t, res.Enhanced.Consensus)
	assert.Nil(t, res.Enhanced.RefinedAnalysis)

	// A short request classifies simple; the roster's fast model serves it.
	assert.Equal(t, config.Default().Roster.Fast, res.Enhanced.SelectedModel)
	client.mu.Lock()
	assert.Equal(t, res.Enhanced.SelectedModel, client.requests[0].Model)
	client.mu.Unlock()
}

func TestGenerateTriviaQuizWithCount(t *testing.T) {
	// The analysis proposes fewer questions than requested; padding must
	// still honor every quiz invariant.
	client := newScriptedClient()
	client.responses["primary"] = analysisJSON("quiz", 6)
	p := newTestPipeline(client)

	res, err := p.Generate(context.Background(), "10-question trivia quiz about world capitals", Options{
		Quality: "quick",
	})
	require.NoError(t, err)

	require.NotNil(t, res.Form.QuizMode)
	assert.True(t, res.Form.QuizMode.Enabled)
	require.Len(t, res.Form.Fields, 10)

	reg := registry.New()
	for i, f := range res.Form.Fields {
		assert.Equal(t, i, f.Order)
		assert.True(t, reg.IsChoice(f.Type), "field %q must be a choice type", f.Label)
		require.NotNil(t, f.QuizConfig)
		assert.NotEmpty(t, f.QuizConfig.CorrectAnswer)
		assert.GreaterOrEqual(t, f.QuizConfig.Points, 0)
	}
}

func TestGenerateQuiz(t *testing.T) {
	client := newScriptedClient()
	client.responses["primary"] = analysisJSON("quiz", 3)
	client.responses["ensemble"] = analysisJSON("quiz", 3)
	client.responses["validate"] = verdictJSON(true)
	p := newTestPipeline(client)

	res, err := p.Generate(context.Background(), "Quiz me on world capitals", fullOptions())
	require.NoError(t, err)

	require.NotNil(t, res.Form.QuizMode)
	assert.True(t, res.Form.QuizMode.Enabled)

	reg := registry.New()
	for _, f := range res.Form.Fields {
		assert.True(t, reg.IsChoice(f.Type), "quiz field %q must be a choice type", f.Label)
		require.NotNil(t, f.QuizConfig)
		assert.NotEmpty(t, f.QuizConfig.CorrectAnswer)
	}
}

// rendezvousClient fails an optional-stage call unless the other optional
// stage arrives while it is still in flight.
type rendezvousClient struct {
	*scriptedClient
	arrivals atomic.Int32
	meet     chan struct{}
	once     sync.Once
}

func newRendezvousClient(inner *scriptedClient) *rendezvousClient {
	return &rendezvousClient{scriptedClient: inner, meet: make(chan struct{})}
}

func (c *rendezvousClient) Complete(ctx context.Context, req llm.Request) (string, error) {
	switch stageFor(req) {
	case "ensemble", "validate":
		if c.arrivals.Add(1) == 2 {
			c.once.Do(func() { close(c.meet) })
		}
		select {
		case <-c.meet:
		case <-time.After(2 * time.Second):
			return "", errors.New("peer stage never arrived")
		}
	}
	return c.scriptedClient.Complete(ctx, req)
}

func TestGenerateRunsOptionalStagesConcurrently(t *testing.T) {
	client := newScriptedClient()
	client.responses["primary"] = analysisJSON("survey", 3)
	client.responses["ensemble"] = analysisJSON("survey", 3)
	client.responses["validate"] = verdictJSON(true)
	// Each optional stage blocks until the other is in flight; if the
	// pipeline ran them sequentially, both would fail and degrade.
	p := newTestPipeline(newRendezvousClient(client))

	// Five sentences classify moderate, so the primary (balanced), validator
	// (fast), and secondary models are three distinct identifiers.
	request := "Create a feedback form for our workshop. Ask about the venue. " +
		"Ask about the catering. Ask about the speakers. Ask about overall satisfaction."
	res, err := p.Generate(context.Background(), request, fullOptions())
	require.NoError(t, err)

	assert.Equal(t, 1, client.countStage("primary"))
	assert.Equal(t, 1, client.countStage("ensemble"))
	assert.Equal(t, 1, client.countStage("validate"))
	assert.Equal(t, 0, client.countStage("refine"))

	require.NotNil(t, res.Enhanced.Consensus)
	require.NotNil(t, res.Enhanced.ValidationResult)
	assert.True(t, res.Enhanced.ValidationResult.IsValid)

	// Confidence recorded per participating model.
	assert.Len(t, res.Enhanced.ModelConfidence, 3)
}

func TestGenerateHighQualityEnablesOptionalStages(t *testing.T) {
	// High quality runs the ensemble, validator, and refiner even when the
	// caller leaves every toggle off.
	client := newScriptedClient()
	client.responses["primary"] = analysisJSON("survey", 3)
	client.responses["ensemble"] = analysisJSON("survey", 3)
	client.responses["validate"] = verdictJSON(false, "missing a closing question")
	client.responses["refine"] = analysisJSON("survey", 4)
	p := newTestPipeline(client)

	res, err := p.Generate(context.Background(), "Create a feedback form", Options{Quality: "high"})
	require.NoError(t, err)

	assert.Equal(t, 1, client.countStage("ensemble"))
	assert.Equal(t, 1, client.countStage("validate"))
	assert.Equal(t, 1, client.countStage("refine"))
	require.NotNil(t, res.Enhanced.Consensus)
	require.NotNil(t, res.Enhanced.ValidationResult)
	require.NotNil(t, res.Enhanced.RefinedAnalysis)
}

func TestGenerateRefinesOnInvalidVerdict(t *testing.T) {
	client := newScriptedClient()
	client.responses["primary"] = analysisJSON("survey", 3)
	client.responses["validate"] = verdictJSON(false, "missing an email field")
	client.responses["refine"] = analysisJSON("survey", 4)
	p := newTestPipeline(client)

	res, err := p.Generate(context.Background(), "Create a signup form", Options{
		EnableValidation: true,
		EnableRefinement: true,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, client.countStage("refine"))
	require.NotNil(t, res.Enhanced.RefinedAnalysis)

	// The synthesizer consumes the refined analysis, not the primary.
	assert.Len(t, res.Form.Fields, 4)
	assert.Same(t, res.Enhanced.RefinedAnalysis, res.Enhanced.Best())
}

func TestGenerateSkipsRefinerWhenValid(t *testing.T) {
	client := newScriptedClient()
	client.responses["primary"] = analysisJSON("survey", 3)
	client.responses["validate"] = verdictJSON(true)
	p := newTestPipeline(client)

	res, err := p.Generate(context.Background(), "Create a signup form", Options{
		EnableValidation: true,
		EnableRefinement: true,
	})
	require.NoError(t, err)

	assert.Equal(t, 0, client.countStage("refine"))
	assert.Nil(t, res.Enhanced.RefinedAnalysis)
	assert.Same(t, res.Enhanced.PrimaryAnalysis, res.Enhanced.Best())
}

func TestGenerateSkipsRefinerWhenValidationDisabled(t *testing.T) {
	// Refinement is gated on a validator verdict; without one it never runs.
	client := newScriptedClient()
	client.responses["primary"] = analysisJSON("survey", 3)
	p := newTestPipeline(client)

	res, err := p.Generate(context.Background(), "Create a signup form", Options{
		EnableRefinement: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, client.countStage("refine"))
	assert.Nil(t, res.Enhanced.RefinedAnalysis)
}

func TestGenerateDegradesOnOptionalStageFailure(t *testing.T) {
	client := newScriptedClient()
	client.responses["primary"] = analysisJSON("survey", 3)
	client.responses["validate"] = verdictJSON(true)
	client.errs["ensemble"] = errors.New("secondary provider down")
	p := newTestPipeline(client)

	res, err := p.Generate(context.Background(), "Create a feedback form", fullOptions())
	require.NoError(t, err)

	assert.Nil(t, res.Enhanced.Consensus)
	require.NotNil(t, res.Enhanced.ValidationResult)
	require.NotNil(t, res.Form)
}

func TestGenerateRefinerFailureKeepsPrimary(t *testing.T) {
	client := newScriptedClient()
	client.responses["primary"] = analysisJSON("survey", 3)
	client.responses["validate"] = verdictJSON(false, "labels too vague")
	client.errs["refine"] = errors.New("timeout")
	p := newTestPipeline(client)

	res, err := p.Generate(context.Background(), "Create a feedback form", Options{
		EnableValidation: true,
		EnableRefinement: true,
	})
	require.NoError(t, err)

	assert.Nil(t, res.Enhanced.RefinedAnalysis)
	assert.Same(t, res.Enhanced.PrimaryAnalysis, res.Enhanced.Best())
	assert.Len(t, res.Form.Fields, 3)
}

func TestGeneratePrimaryFailureIsFatal(t *testing.T) {
	client := newScriptedClient()
	client.errs["primary"] = errors.New("provider unreachable")
	p := newTestPipeline(client)

	_, err := p.Generate(context.Background(), "Create a survey", fullOptions())
	require.Error(t, err)
}

func TestGenerateEmptyRequest(t *testing.T) {
	p := newTestPipeline(newScriptedClient())

	_, err := p.Generate(context.Background(), "   ", Options{})
	require.Error(t, err)
}

func TestGenerateCountOverride(t *testing.T) {
	client := newScriptedClient()
	client.responses["primary"] = analysisJSON("survey", 3)
	p := newTestPipeline(client)

	n := 7
	res, err := p.Generate(context.Background(), "Make a 10-question survey", Options{
		Quality:       "quick",
		QuestionCount: &n,
	})
	require.NoError(t, err)
	// The explicit override beats the count found in the request text.
	assert.Len(t, res.Form.Fields, 7)
}

func TestGenerateSkipsOptionalStagesNearDeadline(t *testing.T) {
	client := newScriptedClient()
	client.responses["primary"] = analysisJSON("survey", 3)
	p := newTestPipeline(client)

	// Reserve is 30s by default; a 5s deadline leaves no optional budget.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := p.Generate(ctx, "Create a feedback form", fullOptions())
	require.NoError(t, err)

	assert.Equal(t, []string{"primary"}, client.stages())
	assert.Nil(t, res.Enhanced.Consensus)
	assert.Nil(t, res.Enhanced.ValidationResult)
}

func TestGenerateReferenceDataIsFramed(t *testing.T) {
	client := newScriptedClient()
	client.responses["primary"] = analysisJSON("survey", 2)
	p := newTestPipeline(client)

	_, err := p.Generate(context.Background(), "Make a survey from this article", Options{
		Quality:       "quick",
		ReferenceData: "<html><body><p>Coffee production basics.</p></body></html>",
	})
	require.NoError(t, err)

	client.mu.Lock()
	prompt := client.requests[0].UserPrompt
	client.mu.Unlock()

	assert.Contains(t, prompt, "Coffee production basics.")
	assert.Contains(t, prompt, "REFERENCE MATERIAL")
	assert.NotContains(t, prompt, "<html>")
}

// blockingClient tracks the number of in-flight calls.
type blockingClient struct {
	mu       sync.Mutex
	inflight int
	max      int
	release  chan struct{}
}

func (c *blockingClient) Complete(ctx context.Context, _ llm.Request) (string, error) {
	c.mu.Lock()
	c.inflight++
	if c.inflight > c.max {
		c.max = c.inflight
	}
	c.mu.Unlock()

	select {
	case <-c.release:
	case <-ctx.Done():
	}

	c.mu.Lock()
	c.inflight--
	c.mu.Unlock()
	return "{}", nil
}

func TestLimitClientBoundsConcurrency(t *testing.T) {
	inner := &blockingClient{release: make(chan struct{})}
	limited := LimitClient(inner, 2)

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = limited.Complete(context.Background(), llm.Request{})
		}()
	}

	// Let the first wave of calls land before releasing everyone.
	time.Sleep(50 * time.Millisecond)
	close(inner.release)
	wg.Wait()

	inner.mu.Lock()
	defer inner.mu.Unlock()
	assert.LessOrEqual(t, inner.max, 2)
	assert.Equal(t, 2, inner.max)
}
