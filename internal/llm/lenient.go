package llm

import (
	"encoding/json"
	"strings"
)

// GuardJSON returns a JSON object string extracted from model output.
// Valid JSON passes through unchanged; otherwise the outermost {...} span is
// taken, falling back to "{}".
func GuardJSON(text string) string {
	s := strings.TrimSpace(text)
	if s == "" {
		return "{}"
	}
	if json.Valid([]byte(s)) {
		return s
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start != -1 && end > start {
		return s[start : end+1]
	}
	return "{}"
}

// GuardJSONValue is GuardJSON for replies that may also be a top-level list.
func GuardJSONValue(text string) string {
	s := strings.TrimSpace(text)
	if s == "" {
		return "{}"
	}
	if json.Valid([]byte(s)) {
		return s
	}
	if start, end := strings.Index(s, "["), strings.LastIndex(s, "]"); start != -1 && end > start {
		if obj := strings.Index(s, "{"); obj == -1 || start < obj {
			if cand := s[start : end+1]; json.Valid([]byte(cand)) {
				return cand
			}
		}
	}
	return GuardJSON(s)
}
