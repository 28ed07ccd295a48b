package analyzer

import (
	"encoding/json"
	"fmt"
	"strings"

	"formsmith/internal/analysis"
	"formsmith/internal/reference"
	"formsmith/internal/registry"
)

// analysisSchema documents the JSON shape every analysis stage must return.
// It is embedded verbatim in the system prompts for the primary analyzer and
// the refiner so both stages share one output contract.
const analysisSchema = `{
  "understanding": {
    "purpose": "why this form exists",
    "audience": "who fills it in",
    "context": "relevant situation or setting",
    "keyTopics": ["ordered", "topics"],
    "dataPoints": [
      {
        "name": "snake_case_name",
        "description": "what this datum is",
        "alreadyPresent": false,
        "dataType": "inferred type",
        "importance": "critical|important|optional",
        "reasoning": "why it matters"
      }
    ],
    "tone": "professional|casual|academic|medical|..."
  },
  "questions": [
    {
      "question": "the prompt text shown to the respondent",
      "rationale": "why this question exists",
      "suggestedFieldType": "one registry identifier",
      "validationSuggestions": ["optional validation hints"],
      "placeholder": "optional placeholder",
      "helpText": "optional help text",
      "options": ["only for choice types"],
      "required": true,
      "reasoning": "field type reasoning",
      "relatesTo": ["other question texts for conditional logic"],
      "category": "grouping label",
      "correctAnswer": "quiz only: the correct option, verbatim from options",
      "explanation": "quiz only: why that answer is correct",
      "points": 1
    }
  ],
  "metadata": {
    "contentType": "quiz|survey|form|...",
    "domain": "subject area",
    "confidence": 0.0,
    "complexity": "simple|moderate|complex",
    "estimatedFieldCount": 0,
    "suggestions": ["improvement ideas"]
  }
}`

// quizHeuristics are the domain rules for knowledge assessments. They are
// stated in the system prompt because the synthesizer enforces them
// mechanically afterwards - a model that follows them avoids repair work.
const quizHeuristics = `Knowledge assessment rules (quizzes, tests, exams, trivia):
- Use ONLY choice field types (multiple_choice, dropdown, checkboxes, yes_no).
- Every question must include a correctAnswer that appears verbatim in its options, plus an explanation.
- Never ask self-reflective questions ("How confident are you?") in a quiz.
- Distractor options must be plausible but clearly wrong.`

// BuildSystemPrompt assembles the analyzer system instruction: output schema,
// the full field type registry as decision guidance, and domain heuristics.
func BuildSystemPrompt(reg *registry.Registry) string {
	var sb strings.Builder
	sb.WriteString("You are an expert form designer. Analyze the user's request and produce a structured plan for a form.\n\n")
	sb.WriteString("Respond with a single JSON object exactly matching this schema:\n")
	sb.WriteString(analysisSchema)
	sb.WriteString("\n\n")
	sb.WriteString(reg.PromptGuidance())
	sb.WriteString("\n")
	sb.WriteString(quizHeuristics)
	sb.WriteString("\n\nGeneral rules:\n")
	sb.WriteString("- Ask one thing per question; avoid leading or biased wording.\n")
	sb.WriteString("- suggestedFieldType must be one of the registry identifiers above.\n")
	sb.WriteString("- Provide options only for choice types, with at least 2 entries.\n")
	return sb.String()
}

// BuildUserPrompt assembles the analyzer user instruction. Reference material
// arrives pre-sanitized and is wrapped in the source-material-only framing;
// it is never presented as instructions.
func BuildUserPrompt(request, referenceData, userContext string, targetCount *int) string {
	var sb strings.Builder
	sb.WriteString("Request:\n")
	sb.WriteString(request)

	if userContext != "" {
		sb.WriteString("\n\nRequester context: ")
		sb.WriteString(userContext)
	}

	if targetCount != nil {
		sb.WriteString(fmt.Sprintf("\n\nProduce exactly %d questions.", *targetCount))
	}

	if referenceData != "" {
		sb.WriteString("\n\n")
		sb.WriteString(reference.Frame(referenceData))
	}

	return sb.String()
}

// BuildRefinerPrompt assembles the refiner user instruction: the original
// request, the current analysis serialized for inspection, and the
// validator's findings.
func BuildRefinerPrompt(request string, current *analysis.Analysis, issues, suggestions []string) string {
	serialized, _ := json.MarshalIndent(current, "", "  ")

	var sb strings.Builder
	sb.WriteString("The analysis below was produced for this request but failed review. Produce an improved analysis in the same JSON schema, fixing every issue.\n\n")
	sb.WriteString("Original request:\n")
	sb.WriteString(request)
	sb.WriteString("\n\nCurrent analysis:\n")
	sb.Write(serialized)
	if len(issues) > 0 {
		sb.WriteString("\n\nIssues found:\n")
		for _, issue := range issues {
			sb.WriteString("- " + issue + "\n")
		}
	}
	if len(suggestions) > 0 {
		sb.WriteString("\nSuggestions:\n")
		for _, s := range suggestions {
			sb.WriteString("- " + s + "\n")
		}
	}
	return sb.String()
}
