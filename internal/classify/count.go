package classify

import (
	"regexp"
	"strconv"

	"formsmith/internal/logging"
)

// MaxQuestionCount is the hard ceiling for an extracted question count.
// Anything larger is clamped, not rejected.
const MaxQuestionCount = 120

// countPatterns are tried in order; the first match wins. Each pattern
// captures the numeric target in group 1.
var countPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(\d+)\s*[- ]?\s*question`),
	regexp.MustCompile(`(?i)\b(\d+)\s*[- ]?\s*field`),
	regexp.MustCompile(`(?i)\bgenerate\s+(\d+)\b`),
	regexp.MustCompile(`(?i)\bcreate\s+(\d+)\b`),
	regexp.MustCompile(`(?i)\bwith\s+(\d+)\b`),
	regexp.MustCompile(`(?i)\bneed\s+(\d+)\b`),
}

// ExtractQuestionCount parses an explicit numeric question target from the
// request text. An explicit override (from caller options) takes precedence
// over anything found in the text. Returns nil when no target exists.
// Values above MaxQuestionCount are clamped with a warning.
func ExtractQuestionCount(request string, override *int) *int {
	if override != nil {
		return clamp(*override)
	}

	for _, re := range countPatterns {
		m := re.FindStringSubmatch(request)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		return clamp(n)
	}
	return nil
}

func clamp(n int) *int {
	if n < 1 {
		return nil
	}
	if n > MaxQuestionCount {
		logging.PipelineWarn("requested question count %d exceeds maximum, clamping to %d", n, MaxQuestionCount)
		n = MaxQuestionCount
	}
	return &n
}
