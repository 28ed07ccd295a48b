package consensus

import (
	"context"
	"strings"
	"unicode"
)

// Matcher decides whether two question labels refer to the same field.
// Matching is isolated behind this interface so a better strategy (token
// overlap, embedding similarity) can replace the default without touching
// the consensus algorithm around it.
type Matcher interface {
	Same(ctx context.Context, a, b string) (bool, error)
}

// NormalizedMatcher is the default strategy: normalize both labels
// (lowercase, strip punctuation, collapse whitespace) and treat them as the
// same field when one normalized label equals or contains the other.
//
// This is an approximate heuristic, not a semantic-equivalence check. Known
// limitations: short generic labels ("name") over-match longer labels that
// contain them, and reordered wording ("rate the service" vs "how would you
// rate our service speed") can fail to match.
type NormalizedMatcher struct{}

// Same implements Matcher. Never returns an error.
func (NormalizedMatcher) Same(_ context.Context, a, b string) (bool, error) {
	na, nb := normalizeLabel(a), normalizeLabel(b)
	if na == "" || nb == "" {
		return false, nil
	}
	return na == nb || strings.Contains(na, nb) || strings.Contains(nb, na), nil
}

// normalizeLabel lowercases, strips punctuation, and collapses whitespace.
func normalizeLabel(s string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			sb.WriteRune(r)
		case unicode.IsSpace(r):
			sb.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}
