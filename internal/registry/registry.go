// Package registry holds the static catalog of allowed field types and the
// guidance the analyzer prompts embed when choosing among them. The catalog
// is immutable configuration: it is built once at process start and passed by
// reference into every pipeline invocation.
package registry

import (
	"fmt"
	"sort"
	"strings"
)

// FieldType identifies a semantic field kind.
type FieldType string

const (
	TypeShortText      FieldType = "short_text"
	TypeLongText       FieldType = "long_text"
	TypeEmail          FieldType = "email"
	TypePhone          FieldType = "phone"
	TypeURL            FieldType = "url"
	TypeNumber         FieldType = "number"
	TypeDate           FieldType = "date"
	TypeTime           FieldType = "time"
	TypeDropdown       FieldType = "dropdown"
	TypeMultipleChoice FieldType = "multiple_choice"
	TypeCheckboxes     FieldType = "checkboxes"
	TypeYesNo          FieldType = "yes_no"
	TypeRating         FieldType = "rating"
	TypeLinearScale    FieldType = "linear_scale"
	TypeSectionHeader  FieldType = "section_header"
	TypeStatement      FieldType = "statement"
)

// Descriptor describes one field type: what it is for and how the analyzer
// should decide to use it.
type Descriptor struct {
	Category    string   `json:"category"` // input, choice, scale, display
	Description string   `json:"description"`
	BestFor     []string `json:"best_for"`
	Signals     []string `json:"signals"`

	// AllowsMultiple is true when the respondent may select more than one option.
	AllowsMultiple bool `json:"allows_multiple,omitempty"`

	// OptimalWhenOptionCountAbove suggests this type once the option list
	// grows past this size (0 = no preference).
	OptimalWhenOptionCountAbove int `json:"optimal_when_option_count_above,omitempty"`

	// IsInput is false for purely decorative/display types that collect no data.
	IsInput bool `json:"is_input"`
}

// Registry is the read-only catalog of field types.
type Registry struct {
	descriptors map[FieldType]Descriptor
}

// New returns the default field type registry.
func New() *Registry {
	return &Registry{descriptors: map[FieldType]Descriptor{
		TypeShortText: {
			Category:    "input",
			Description: "Single-line free text",
			BestFor:     []string{"names", "titles", "short identifiers"},
			Signals:     []string{"name", "title", "what is your"},
			IsInput:     true,
		},
		TypeLongText: {
			Category:    "input",
			Description: "Multi-line free text",
			BestFor:     []string{"open feedback", "descriptions", "explanations"},
			Signals:     []string{"describe", "explain", "tell us", "comments"},
			IsInput:     true,
		},
		TypeEmail: {
			Category:    "input",
			Description: "Email address with format validation",
			BestFor:     []string{"contact collection", "account signup"},
			Signals:     []string{"email", "e-mail", "contact"},
			IsInput:     true,
		},
		TypePhone: {
			Category:    "input",
			Description: "Phone number with format validation",
			BestFor:     []string{"contact collection", "callbacks"},
			Signals:     []string{"phone", "mobile", "call"},
			IsInput:     true,
		},
		TypeURL: {
			Category:    "input",
			Description: "Web address with format validation",
			BestFor:     []string{"portfolio links", "references"},
			Signals:     []string{"url", "website", "link"},
			IsInput:     true,
		},
		TypeNumber: {
			Category:    "input",
			Description: "Numeric value",
			BestFor:     []string{"quantities", "ages", "amounts"},
			Signals:     []string{"how many", "age", "number of", "amount"},
			IsInput:     true,
		},
		TypeDate: {
			Category:    "input",
			Description: "Calendar date",
			BestFor:     []string{"birthdays", "appointments", "deadlines"},
			Signals:     []string{"date", "when", "birthday"},
			IsInput:     true,
		},
		TypeTime: {
			Category:    "input",
			Description: "Time of day",
			BestFor:     []string{"scheduling", "preferred times"},
			Signals:     []string{"time", "what hour"},
			IsInput:     true,
		},
		TypeDropdown: {
			Category:                    "choice",
			Description:                 "Single selection from a long option list",
			BestFor:                     []string{"countries", "categories", "many options"},
			Signals:                     []string{"select", "choose from", "which of"},
			OptimalWhenOptionCountAbove: 6,
			IsInput:                     true,
		},
		TypeMultipleChoice: {
			Category:    "choice",
			Description: "Single selection from a short visible option list",
			BestFor:     []string{"quiz answers", "short option sets", "A/B/C/D questions"},
			Signals:     []string{"which", "pick one", "quiz", "correct answer"},
			IsInput:     true,
		},
		TypeCheckboxes: {
			Category:       "choice",
			Description:    "Multiple selections from an option list",
			BestFor:        []string{"select-all-that-apply", "multi-answer questions"},
			Signals:        []string{"all that apply", "select multiple", "which of these"},
			AllowsMultiple: true,
			IsInput:        true,
		},
		TypeYesNo: {
			Category:    "choice",
			Description: "Binary yes/no choice",
			BestFor:     []string{"consent", "true/false questions", "screening"},
			Signals:     []string{"yes or no", "true or false", "do you", "have you"},
			IsInput:     true,
		},
		TypeRating: {
			Category:    "scale",
			Description: "Star-style rating, typically 1-5",
			BestFor:     []string{"satisfaction", "product ratings", "experience quality"},
			Signals:     []string{"rate", "rating", "stars", "satisfied"},
			IsInput:     true,
		},
		TypeLinearScale: {
			Category:    "scale",
			Description: "Numeric scale with labeled endpoints, e.g. 1-10",
			BestFor:     []string{"NPS", "agreement scales", "likelihood"},
			Signals:     []string{"scale of", "1 to 10", "how likely", "agree or disagree"},
			IsInput:     true,
		},
		TypeSectionHeader: {
			Category:    "display",
			Description: "Visual section divider with a heading",
			BestFor:     []string{"grouping related questions", "long forms"},
			Signals:     []string{"section", "part"},
			IsInput:     false,
		},
		TypeStatement: {
			Category:    "display",
			Description: "Informational text with no input",
			BestFor:     []string{"instructions", "disclosures", "context"},
			Signals:     []string{"note", "please read", "disclaimer"},
			IsInput:     false,
		},
	}}
}

// Has reports whether the given type exists in the catalog.
func (r *Registry) Has(t FieldType) bool {
	_, ok := r.descriptors[t]
	return ok
}

// Get returns the descriptor for a type.
func (r *Registry) Get(t FieldType) (Descriptor, bool) {
	d, ok := r.descriptors[t]
	return d, ok
}

// Types returns all type identifiers in stable sorted order.
func (r *Registry) Types() []FieldType {
	out := make([]FieldType, 0, len(r.descriptors))
	for t := range r.descriptors {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// IsChoice reports whether the type presents a fixed option list.
// Quiz fields are restricted to choice types.
func (r *Registry) IsChoice(t FieldType) bool {
	d, ok := r.descriptors[t]
	return ok && d.Category == "choice"
}

// IsInput reports whether the type collects data (false for display types).
func (r *Registry) IsInput(t FieldType) bool {
	d, ok := r.descriptors[t]
	return ok && d.IsInput
}

// ChoiceTypes returns the choice-category types in stable order.
func (r *Registry) ChoiceTypes() []FieldType {
	var out []FieldType
	for _, t := range r.Types() {
		if r.descriptors[t].Category == "choice" {
			out = append(out, t)
		}
	}
	return out
}

// PromptGuidance renders the catalog as decision guidance for the analyzer
// system prompt. Each line names the type, its description, and its signals.
func (r *Registry) PromptGuidance() string {
	var sb strings.Builder
	sb.WriteString("Available field types (use ONLY these identifiers):\n")
	for _, t := range r.Types() {
		d := r.descriptors[t]
		sb.WriteString(fmt.Sprintf("- %s (%s): %s.", t, d.Category, d.Description))
		if len(d.BestFor) > 0 {
			sb.WriteString(" Best for: " + strings.Join(d.BestFor, ", ") + ".")
		}
		if len(d.Signals) > 0 {
			sb.WriteString(" Signals: " + strings.Join(d.Signals, ", ") + ".")
		}
		if d.AllowsMultiple {
			sb.WriteString(" Allows multiple selections.")
		}
		if d.OptimalWhenOptionCountAbove > 0 {
			sb.WriteString(fmt.Sprintf(" Prefer when more than %d options.", d.OptimalWhenOptionCountAbove))
		}
		if !d.IsInput {
			sb.WriteString(" Display only, collects no data.")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
