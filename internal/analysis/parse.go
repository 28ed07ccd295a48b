package analysis

import (
	"encoding/json"
)

// ExtractJSONObject scans completion text for the first complete top-level
// JSON object and returns it, handling markdown fences and prose wrappers.
//
// It uses a byte-level state machine that tracks brace depth and string
// escaping. Iterating bytes is safe for the ASCII delimiters involved because
// UTF-8 guarantees ASCII bytes never appear inside a multi-byte sequence.
func ExtractJSONObject(s string) string {
	var depth int
	start := -1
	var inString, escape bool

	for i := 0; i < len(s); i++ {
		b := s[i]

		if escape {
			escape = false
			continue
		}

		if inString {
			if b == '\\' {
				escape = true
			} else if b == '"' {
				inString = false
			}
			continue
		}

		switch b {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start != -1 {
					return s[start : i+1]
				}
			}
		}
	}
	return ""
}

// Parse turns raw completion text into a normalized Analysis.
//
// The completion boundary is untrusted: the text is first reduced to a
// generic JSON value, then mapped field-by-field into the typed Analysis with
// documented defaults for missing optional fields. Any structural failure is
// a MalformedOutputError for the given stage.
func Parse(stage, response string) (*Analysis, error) {
	jsonStr := ExtractJSONObject(response)
	if jsonStr == "" {
		return nil, &MalformedOutputError{Stage: stage, Reason: "no JSON object found in response"}
	}

	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(jsonStr), &raw); err != nil {
		return nil, &MalformedOutputError{Stage: stage, Reason: "invalid JSON: " + err.Error()}
	}

	return Normalize(stage, raw)
}
