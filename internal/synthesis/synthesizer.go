package synthesis

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"formsmith/internal/analysis"
	"formsmith/internal/logging"
	"formsmith/internal/registry"
)

// RegistryViolationError reports a synthesized field type that is not in the
// field type registry. Fatal for the whole pipeline: letting it through
// would corrupt the output contract.
type RegistryViolationError struct {
	FieldLabel string
	Type       string
}

func (e *RegistryViolationError) Error() string {
	return fmt.Sprintf("field %q uses type %q which is not in the field type registry", e.FieldLabel, e.Type)
}

// quizKeywords signal a knowledge assessment in the request text.
var quizKeywords = []string{"quiz", "test", "exam", "trivia"}

// typeAliases maps common model vocabulary onto registry identifiers.
// Suggested types that survive neither the registry nor this table are
// registry violations.
var typeAliases = map[string]registry.FieldType{
	"text":        registry.TypeShortText,
	"string":      registry.TypeShortText,
	"textarea":    registry.TypeLongText,
	"paragraph":   registry.TypeLongText,
	"select":      registry.TypeDropdown,
	"radio":       registry.TypeMultipleChoice,
	"choice":      registry.TypeMultipleChoice,
	"checkbox":    registry.TypeCheckboxes,
	"multiselect": registry.TypeCheckboxes,
	"boolean":     registry.TypeYesNo,
	"scale":       registry.TypeLinearScale,
	"stars":       registry.TypeRating,
	"tel":         registry.TypePhone,
	"datetime":    registry.TypeDate,
	"section":     registry.TypeSectionHeader,
	"info":        registry.TypeStatement,
}

const defaultPassingScore = 70

// Synthesizer builds Forms from Analyses. Pure and local: no network calls.
type Synthesizer struct {
	reg *registry.Registry
}

// New creates a Synthesizer over the given registry.
func New(reg *registry.Registry) *Synthesizer {
	return &Synthesizer{reg: reg}
}

// Input carries everything the synthesizer consumes.
type Input struct {
	// Request is the original request text, used for quiz keyword detection
	// and title fallback.
	Request string

	// Analysis is the best available analysis (refined if present, else primary).
	Analysis *analysis.Analysis

	// TargetCount, when set, is a hard requirement: the form has exactly
	// this many fields.
	TargetCount *int
}

// Synthesize produces the final Form. On success every field type is a
// registry key, order values are dense and zero-based, and quiz invariants
// hold whenever quiz mode is enabled.
func (s *Synthesizer) Synthesize(in Input) (*Form, error) {
	timer := logging.StartTimer(logging.CategorySynthesis, "synthesis")
	defer timer.Stop()

	if in.Analysis == nil || len(in.Analysis.Questions) == 0 {
		return nil, fmt.Errorf("cannot synthesize a form from an empty analysis")
	}

	quiz := s.isQuiz(in)

	form := &Form{Title: s.title(in)}
	for _, q := range in.Analysis.Questions {
		field, err := s.buildField(q, quiz)
		if err != nil {
			return nil, err
		}
		form.Fields = append(form.Fields, *field)
	}

	if in.TargetCount != nil {
		s.enforceCount(form, *in.TargetCount, quiz, in.Analysis)
	}

	// Dense zero-based order across the final list.
	for i := range form.Fields {
		form.Fields[i].Order = i
	}

	if quiz {
		form.QuizMode = &QuizMode{
			Enabled:              true,
			ShowScoreImmediately: true,
			ShowCorrectAnswers:   true,
			ShowExplanations:     true,
			PassingScore:         defaultPassingScore,
		}
	}

	if err := s.verify(form); err != nil {
		return nil, err
	}

	logging.Synthesis("synthesized %q: %d fields, quiz=%v", form.Title, len(form.Fields), quiz)
	return form, nil
}

// isQuiz combines request keyword detection with the analysis's own signal.
// Keywords match whole words only, so "latest" does not read as "test".
func (s *Synthesizer) isQuiz(in Input) bool {
	words := strings.FieldsFunc(strings.ToLower(in.Request), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		for _, kw := range quizKeywords {
			if w == kw {
				return true
			}
		}
	}
	return in.Analysis.IsQuizLike()
}

func (s *Synthesizer) buildField(q analysis.CandidateQuestion, quiz bool) (*Field, error) {
	ft, err := s.resolveType(q)
	if err != nil {
		return nil, err
	}

	field := &Field{
		ID:          uuid.NewString(),
		Label:       q.Question,
		Type:        ft,
		Required:    q.Required,
		Placeholder: q.Placeholder,
		HelpText:    q.HelpText,
	}
	if len(q.Options) > 0 {
		field.Options = append([]string(nil), q.Options...)
	}

	if quiz {
		s.applyQuizRules(field, q)
	}

	return field, nil
}

// resolveType maps the suggested type onto the registry, via aliases when
// needed. An empty suggestion defaults to short_text (or multiple_choice
// when options are present).
func (s *Synthesizer) resolveType(q analysis.CandidateQuestion) (registry.FieldType, error) {
	suggested := strings.ToLower(strings.TrimSpace(q.SuggestedFieldType))
	if suggested == "" {
		if len(q.Options) > 0 {
			return registry.TypeMultipleChoice, nil
		}
		return registry.TypeShortText, nil
	}

	ft := registry.FieldType(suggested)
	if s.reg.Has(ft) {
		return ft, nil
	}
	if alias, ok := typeAliases[suggested]; ok {
		return alias, nil
	}
	return "", &RegistryViolationError{FieldLabel: q.Question, Type: q.SuggestedFieldType}
}

// applyQuizRules forces the field into quiz shape: a choice type, at least
// two options, and a non-empty correct answer with points defaulting to 1.
func (s *Synthesizer) applyQuizRules(field *Field, q analysis.CandidateQuestion) {
	if !s.reg.IsChoice(field.Type) {
		field.Type = registry.TypeMultipleChoice
	}

	if len(field.Options) < 2 {
		// The model gave no usable options; fall back to a binary choice so
		// the quiz contract still holds structurally.
		field.Type = registry.TypeYesNo
		field.Options = []string{"True", "False"}
	}

	correct := q.CorrectAnswer
	if correct == "" || !containsString(field.Options, correct) {
		correct = field.Options[0]
	}

	points := q.Points
	if points <= 0 {
		points = 1
	}

	field.Required = true
	field.QuizConfig = &QuizConfig{
		CorrectAnswer: correct,
		Points:        points,
		Explanation:   q.Explanation,
	}
}

// enforceCount trims or pads the field list to exactly n entries.
func (s *Synthesizer) enforceCount(form *Form, n int, quiz bool, a *analysis.Analysis) {
	if len(form.Fields) > n {
		logging.Synthesis("trimming %d fields to requested %d", len(form.Fields), n)
		form.Fields = form.Fields[:n]
		return
	}

	for len(form.Fields) < n {
		idx := len(form.Fields)
		topic := "this topic"
		if ts := a.Understanding.KeyTopics; len(ts) > 0 {
			topic = ts[idx%len(ts)]
		}

		if quiz {
			label := fmt.Sprintf("True or false: %s is covered by this assessment.", topic)
			form.Fields = append(form.Fields, Field{
				ID:       uuid.NewString(),
				Label:    label,
				Type:     registry.TypeYesNo,
				Required: true,
				Options:  []string{"True", "False"},
				QuizConfig: &QuizConfig{
					CorrectAnswer: "True",
					Points:        1,
				},
			})
		} else {
			form.Fields = append(form.Fields, Field{
				ID:       uuid.NewString(),
				Label:    fmt.Sprintf("Anything else you would like to share about %s?", topic),
				Type:     registry.TypeLongText,
				Required: false,
			})
		}
	}
}

// verify asserts the output contract before the form leaves the pipeline.
func (s *Synthesizer) verify(form *Form) error {
	for _, f := range form.Fields {
		if !s.reg.Has(f.Type) {
			return &RegistryViolationError{FieldLabel: f.Label, Type: string(f.Type)}
		}
	}
	return nil
}

// title picks the form title: the analysis purpose when present, else the
// first sentence of the request.
func (s *Synthesizer) title(in Input) string {
	if p := strings.TrimSpace(in.Analysis.Understanding.Purpose); p != "" {
		return capitalize(p)
	}

	req := strings.TrimSpace(in.Request)
	if i := strings.IndexAny(req, ".!?\n"); i > 0 {
		req = req[:i]
	}
	if req == "" {
		return "Generated Form"
	}
	return capitalize(req)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func containsString(list []string, s string) bool {
	for _, e := range list {
		if strings.EqualFold(e, s) {
			return true
		}
	}
	return false
}
