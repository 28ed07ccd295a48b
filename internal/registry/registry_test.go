package registry

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	r := New()
	require.NotNil(t, r)

	t.Run("contains core types", func(t *testing.T) {
		for _, ft := range []FieldType{
			TypeShortText, TypeLongText, TypeEmail, TypeNumber,
			TypeMultipleChoice, TypeDropdown, TypeCheckboxes, TypeYesNo,
			TypeRating, TypeLinearScale, TypeSectionHeader,
		} {
			assert.True(t, r.Has(ft), "missing %s", ft)
		}
	})

	t.Run("unknown type is absent", func(t *testing.T) {
		assert.False(t, r.Has(FieldType("hologram")))
	})
}

func TestRegistry_IsChoice(t *testing.T) {
	r := New()

	choice := []FieldType{TypeMultipleChoice, TypeDropdown, TypeCheckboxes, TypeYesNo}
	for _, ft := range choice {
		assert.True(t, r.IsChoice(ft), "%s should be a choice type", ft)
	}

	nonChoice := []FieldType{TypeShortText, TypeLongText, TypeRating, TypeStatement}
	for _, ft := range nonChoice {
		assert.False(t, r.IsChoice(ft), "%s should not be a choice type", ft)
	}
}

func TestRegistry_IsInput(t *testing.T) {
	r := New()

	assert.True(t, r.IsInput(TypeShortText))
	assert.True(t, r.IsInput(TypeMultipleChoice))
	assert.False(t, r.IsInput(TypeSectionHeader))
	assert.False(t, r.IsInput(TypeStatement))
	assert.False(t, r.IsInput(FieldType("nope")))
}

func TestRegistry_Types_Stable(t *testing.T) {
	r := New()
	first := r.Types()
	second := r.Types()
	assert.Equal(t, first, second)
	assert.NotEmpty(t, first)
}

func TestRegistry_ChoiceTypes(t *testing.T) {
	r := New()
	for _, ft := range r.ChoiceTypes() {
		assert.True(t, r.IsChoice(ft))
	}
	assert.Len(t, r.ChoiceTypes(), 4)
}

func TestRegistry_PromptGuidance(t *testing.T) {
	r := New()
	guidance := r.PromptGuidance()

	// Every catalog entry must appear in the rendered guidance.
	for _, ft := range r.Types() {
		assert.Contains(t, guidance, string(ft))
	}
	assert.True(t, strings.HasPrefix(guidance, "Available field types"))
	assert.Contains(t, guidance, "Display only")
}
