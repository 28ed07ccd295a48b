package analysis

import "fmt"

// Normalize maps a generic JSON value into a typed Analysis. It is total
// over its input: every missing optional field gets a documented default, and
// only a missing required field (a question with no prompt text, or an
// analysis with no questions at all) produces a MalformedOutputError.
//
// Defaults: required=true, category="general", importance="important",
// complexity="moderate", confidence=0.5 clamped to [0,1],
// estimatedFieldCount=len(questions).
func Normalize(stage string, raw map[string]interface{}) (*Analysis, error) {
	a := &Analysis{}

	if u := asMap(pick(raw, "understanding", "contentUnderstanding")); u != nil {
		a.Understanding = normalizeUnderstanding(u)
	}

	qs := asSlice(pick(raw, "questions", "candidateQuestions", "suggestedQuestions"))
	if len(qs) == 0 {
		return nil, &MalformedOutputError{Stage: stage, Reason: "analysis contained no questions"}
	}
	for i, q := range qs {
		qm := asMap(q)
		if qm == nil {
			return nil, &MalformedOutputError{Stage: stage, Reason: fmt.Sprintf("question %d is not an object", i)}
		}
		cq, err := normalizeQuestion(stage, i, qm)
		if err != nil {
			return nil, err
		}
		a.Questions = append(a.Questions, cq)
	}

	a.Metadata = normalizeMetadata(asMap(pick(raw, "metadata", "analysisMetadata")), len(a.Questions))

	return a, nil
}

func normalizeUnderstanding(u map[string]interface{}) ContentUnderstanding {
	out := ContentUnderstanding{
		Purpose:   asString(u["purpose"]),
		Audience:  asString(u["audience"]),
		Context:   asString(u["context"]),
		KeyTopics: asStringSlice(u["keyTopics"]),
		Tone:      asString(u["tone"]),
	}
	for _, dp := range asSlice(u["dataPoints"]) {
		m := asMap(dp)
		if m == nil {
			continue
		}
		out.DataPoints = append(out.DataPoints, DataPoint{
			Name:           asString(m["name"]),
			Description:    asString(m["description"]),
			AlreadyPresent: asBool(m["alreadyPresent"], false),
			DataType:       asString(m["dataType"]),
			Importance:     normalizeImportance(asString(m["importance"])),
			Reasoning:      asString(m["reasoning"]),
		})
	}
	return out
}

func normalizeQuestion(stage string, idx int, q map[string]interface{}) (CandidateQuestion, error) {
	text := asString(pick(q, "question", "label", "prompt"))
	if text == "" {
		return CandidateQuestion{}, &MalformedOutputError{
			Stage:  stage,
			Reason: fmt.Sprintf("question %d has no prompt text", idx),
		}
	}

	cq := CandidateQuestion{
		Question:              text,
		Rationale:             asString(q["rationale"]),
		SuggestedFieldType:    asString(pick(q, "suggestedFieldType", "fieldType", "type")),
		ValidationSuggestions: asStringSlice(q["validationSuggestions"]),
		Placeholder:           asString(q["placeholder"]),
		HelpText:              asString(q["helpText"]),
		Options:               asStringSlice(q["options"]),
		Required:              asBool(q["required"], true),
		Reasoning:             asString(q["reasoning"]),
		RelatesTo:             asStringSlice(q["relatesTo"]),
		Category:              asString(q["category"]),
		CorrectAnswer:         asString(q["correctAnswer"]),
		Explanation:           asString(q["explanation"]),
		Points:                asInt(q["points"], 0),
	}
	if cq.Category == "" {
		cq.Category = "general"
	}
	return cq, nil
}

func normalizeMetadata(m map[string]interface{}, questionCount int) Metadata {
	md := Metadata{
		ContentType:         "form",
		Complexity:          "moderate",
		Confidence:          0.5,
		EstimatedFieldCount: questionCount,
	}
	if m == nil {
		return md
	}

	if ct := asString(m["contentType"]); ct != "" {
		md.ContentType = ct
	}
	md.Domain = asString(m["domain"])
	if c, ok := m["confidence"]; ok {
		md.Confidence = clampUnit(asFloat(c, 0.5))
	}
	if cx := asString(m["complexity"]); cx == "simple" || cx == "moderate" || cx == "complex" {
		md.Complexity = cx
	}
	if n := asInt(m["estimatedFieldCount"], questionCount); n >= 0 {
		md.EstimatedFieldCount = n
	}
	md.Suggestions = asStringSlice(m["suggestions"])
	return md
}

func normalizeImportance(s string) Importance {
	switch Importance(s) {
	case ImportanceCritical, ImportanceImportant, ImportanceOptional:
		return Importance(s)
	}
	return ImportanceImportant
}

func clampUnit(f float64) float64 {
	if f != f || f < 0 { // NaN or negative
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// =============================================================================
// GENERIC JSON VALUE HELPERS
// =============================================================================

// pick returns the first present key from candidates.
func pick(m map[string]interface{}, keys ...string) interface{} {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v
		}
	}
	return nil
}

func asMap(v interface{}) map[string]interface{} {
	m, _ := v.(map[string]interface{})
	return m
}

func asSlice(v interface{}) []interface{} {
	s, _ := v.([]interface{})
	return s
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func asBool(v interface{}, def bool) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return def
}

func asFloat(v interface{}, def float64) float64 {
	if f, ok := v.(float64); ok {
		return f
	}
	return def
}

func asInt(v interface{}, def int) int {
	if f, ok := v.(float64); ok {
		return int(f)
	}
	return def
}

func asStringSlice(v interface{}) []string {
	var out []string
	for _, e := range asSlice(v) {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
