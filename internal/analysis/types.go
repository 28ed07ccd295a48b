// Package analysis defines the structured understanding a model pass produces
// for one request, and the parse/normalize discipline that turns untrusted
// completion text into those types. Every value here is created fresh per
// pipeline invocation and is immutable once its stage completes.
package analysis

// Importance grades how critical a data point is to the form's purpose.
type Importance string

const (
	ImportanceCritical  Importance = "critical"
	ImportanceImportant Importance = "important"
	ImportanceOptional  Importance = "optional"
)

// ContentUnderstanding captures the model's reading of the request itself.
type ContentUnderstanding struct {
	Purpose    string      `json:"purpose"`
	Audience   string      `json:"audience"`
	Context    string      `json:"context"`
	KeyTopics  []string    `json:"keyTopics"`
	DataPoints []DataPoint `json:"dataPoints"`
	// Tone is enum-like: professional, casual, academic, medical, ...
	Tone string `json:"tone"`
}

// DataPoint is one datum the form should (or already does) capture.
type DataPoint struct {
	Name           string     `json:"name"`
	Description    string     `json:"description"`
	AlreadyPresent bool       `json:"alreadyPresent"`
	DataType       string     `json:"dataType"`
	Importance     Importance `json:"importance"`
	Reasoning      string     `json:"reasoning"`
}

// CandidateQuestion is one proposed form question. SuggestedFieldType must
// eventually validate against the field type registry; that check happens in
// the synthesizer, not here.
type CandidateQuestion struct {
	Question              string   `json:"question"`
	Rationale             string   `json:"rationale"`
	SuggestedFieldType    string   `json:"suggestedFieldType"`
	ValidationSuggestions []string `json:"validationSuggestions,omitempty"`
	Placeholder           string   `json:"placeholder,omitempty"`
	HelpText              string   `json:"helpText,omitempty"`
	Options               []string `json:"options,omitempty"`
	Required              bool     `json:"required"`
	Reasoning             string   `json:"reasoning,omitempty"`
	// RelatesTo references other questions for conditional-logic hints.
	RelatesTo []string `json:"relatesTo,omitempty"`
	Category  string   `json:"category"`

	// Quiz hints from the model; only meaningful for knowledge assessments.
	CorrectAnswer string `json:"correctAnswer,omitempty"`
	Explanation   string `json:"explanation,omitempty"`
	Points        int    `json:"points,omitempty"`
}

// Metadata summarizes the analysis as a whole.
type Metadata struct {
	// ContentType is free text: quiz, survey, form, ...
	ContentType string `json:"contentType"`
	Domain      string `json:"domain"`
	// Confidence is always in [0,1] after normalization.
	Confidence          float64  `json:"confidence"`
	Complexity          string   `json:"complexity"` // simple, moderate, complex
	EstimatedFieldCount int      `json:"estimatedFieldCount"`
	Suggestions         []string `json:"suggestions,omitempty"`
}

// Analysis is the full output of one model pass over a request.
type Analysis struct {
	Understanding ContentUnderstanding `json:"understanding"`
	Questions     []CandidateQuestion  `json:"questions"`
	Metadata      Metadata             `json:"metadata"`
}

// IsQuizLike reports whether the analysis itself signals a knowledge
// assessment. The synthesizer combines this with request keyword detection.
func (a *Analysis) IsQuizLike() bool {
	switch a.Metadata.ContentType {
	case "quiz", "test", "exam", "trivia", "assessment":
		return true
	}
	return false
}
