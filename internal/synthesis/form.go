// Package synthesis turns the best available Analysis into the final typed
// form artifact. This is the terminal pipeline stage and the schema contract
// with downstream consumers: the grading routine relies on quizConfig having
// exactly this shape.
package synthesis

import (
	"formsmith/internal/registry"
)

// QuizConfig carries the graded-answer configuration for one field.
type QuizConfig struct {
	CorrectAnswer string `json:"correctAnswer"`
	// Points is >= 0; defaults to 1 when the analysis gave none.
	Points      int    `json:"points"`
	Explanation string `json:"explanation,omitempty"`
}

// Field is one synthesized form field.
type Field struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	// Type is always a key in the field type registry.
	Type        registry.FieldType `json:"type"`
	Required    bool               `json:"required"`
	Options     []string           `json:"options,omitempty"`
	Placeholder string             `json:"placeholder,omitempty"`
	HelpText    string             `json:"helpText,omitempty"`
	QuizConfig  *QuizConfig        `json:"quizConfig,omitempty"`
	// Order values form a contiguous 0..n-1 sequence within a form.
	Order int `json:"order"`
}

// QuizMode configures quiz behavior for the whole form.
type QuizMode struct {
	Enabled              bool `json:"enabled"`
	ShowScoreImmediately bool `json:"showScoreImmediately"`
	ShowCorrectAnswers   bool `json:"showCorrectAnswers"`
	ShowExplanations     bool `json:"showExplanations"`
	// PassingScore is a percentage in [0,100].
	PassingScore int `json:"passingScore"`
}

// Form is the final artifact the pipeline emits.
type Form struct {
	Title    string    `json:"title"`
	Fields   []Field   `json:"fields"`
	QuizMode *QuizMode `json:"quizMode,omitempty"`
}
