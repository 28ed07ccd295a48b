package classify

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		request string
		want    Complexity
	}{
		{
			name:    "short request is simple",
			request: "Make a contact form.",
			want:    ComplexitySimple,
		},
		{
			name:    "empty request is simple",
			request: "",
			want:    ComplexitySimple,
		},
		{
			name: "mid-size request is moderate",
			request: "Create a customer satisfaction survey for our coffee shop. " +
				"It should cover service speed, drink quality, and atmosphere. " +
				"Ask about their favorite drink. Ask how often they visit. " +
				"Finish with an open comment box for anything else they want to share with us today.",
			want: ComplexityModerate,
		},
		{
			name:    "very long request is complex",
			request: strings.Repeat("Please include a question about topic alpha beta gamma. ", 40),
			want:    ComplexityComplex,
		},
		{
			name: "many sentences is complex",
			request: strings.Repeat("Ask one. ", 25) +
				strings.Repeat("word", 1),
			want: ComplexityComplex,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.request))
		})
	}
}

func TestCountSentences(t *testing.T) {
	assert.Equal(t, 0, countSentences(""))
	assert.Equal(t, 1, countSentences("Hello world"))
	assert.Equal(t, 3, countSentences("One. Two! Three?"))
	assert.Equal(t, 2, countSentences("Trailing dots... still two sentences."))
}

func TestExtractQuestionCount(t *testing.T) {
	intPtr := func(n int) *int { return &n }

	tests := []struct {
		name     string
		request  string
		override *int
		want     *int
	}{
		{
			name:    "n questions",
			request: "generate 20 questions about biology",
			want:    intPtr(20),
		},
		{
			name:    "hyphenated count",
			request: "Create a 5-question customer satisfaction survey",
			want:    intPtr(5),
		},
		{
			name:    "fields phrasing",
			request: "a signup form with 8 fields",
			want:    intPtr(8),
		},
		{
			name:    "clamped above maximum",
			request: "need 500 fields",
			want:    intPtr(120),
		},
		{
			name:    "no numeric token",
			request: "quiz me on photosynthesis",
			want:    nil,
		},
		{
			name:     "override wins over text",
			request:  "generate 20 questions",
			override: intPtr(7),
			want:     intPtr(7),
		},
		{
			name:     "override is clamped too",
			request:  "anything",
			override: intPtr(300),
			want:     intPtr(120),
		},
		{
			name:     "non-positive override ignored",
			request:  "no numbers here",
			override: intPtr(0),
			want:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractQuestionCount(tt.request, tt.override)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			if assert.NotNil(t, got) {
				assert.Equal(t, *tt.want, *got)
			}
		})
	}
}
