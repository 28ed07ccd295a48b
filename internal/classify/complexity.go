// Package classify holds the pure, local request-classification functions:
// complexity scoring (used to pick a model) and explicit question-count
// extraction. Neither touches the network; both are safe to run concurrently.
package classify

import "strings"

// Complexity is a coarse tier of request difficulty.
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
)

// Thresholds for tier boundaries.
const (
	simpleMaxLength     = 200
	simpleMaxSentences  = 5
	complexMinLength    = 1000
	complexMinUniques   = 200
	complexMinSentences = 20
)

// Classify scores raw request text into a complexity tier using character
// length, sentence count, and unique-word count.
func Classify(request string) Complexity {
	length := len(request)
	sentences := countSentences(request)
	uniques := countUniqueWords(request)

	if length < simpleMaxLength && sentences < simpleMaxSentences {
		return ComplexitySimple
	}
	if length > complexMinLength || uniques > complexMinUniques || sentences > complexMinSentences {
		return ComplexityComplex
	}
	return ComplexityModerate
}

// countSentences splits on sentence terminators and counts non-empty parts.
func countSentences(s string) int {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})
	n := 0
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			n++
		}
	}
	return n
}

func countUniqueWords(s string) int {
	seen := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(s)) {
		seen[w] = struct{}{}
	}
	return len(seen)
}
