package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
)

// NormalizeReply decodes a model reply into a map ready for
// metadata.Record.MergeMap:
//   - renames known synonyms (subject -> summary, keywords -> tags)
//   - trims string values and drops null/empty ones
//   - rescales 0..1 confidences to 0..10
func NormalizeReply(raw []byte, source string, logger *slog.Logger) (map[string]any, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("normalize: decode: %w", err)
	}

	renamed := func(from, to string) {
		if v, ok := m[from]; ok {
			if _, exists := m[to]; !exists {
				m[to] = v
				if c, ok := m[from+"_confidence"]; ok {
					m[to+"_confidence"] = c
				}
			}
			delete(m, from)
			delete(m, from+"_confidence")
		}
	}
	renamed("subject", "summary")
	renamed("keywords", "tags")
	renamed("keywords_confidence", "tags_confidence")
	renamed("issuer", "creator")

	for k, v := range m {
		switch t := v.(type) {
		case nil:
			delete(m, k)
		case string:
			s := strings.TrimSpace(t)
			if s == "" || strings.EqualFold(s, "null") {
				delete(m, k)
				continue
			}
			m[k] = s
		}
	}

	if NormalizeConfidences(m) {
		logger.Info("llm.confidence.normalized", "source", source)
	}
	return m, nil
}

// NormalizeConfidences rescales every *_confidence value (and the
// tags_confidence list) by 10 when none of them exceeds 1. It reports
// whether anything was rescaled.
func NormalizeConfidences(m map[string]any) bool {
	var vals []float64
	for k, v := range m {
		if !strings.HasSuffix(k, "_confidence") {
			continue
		}
		switch t := v.(type) {
		case float64:
			vals = append(vals, t)
		case []any:
			for _, x := range t {
				if f, ok := x.(float64); ok {
					vals = append(vals, f)
				}
			}
		}
	}
	if len(vals) == 0 {
		return false
	}
	for _, v := range vals {
		if v > 1 {
			return false
		}
	}
	for k, v := range m {
		if !strings.HasSuffix(k, "_confidence") {
			continue
		}
		switch t := v.(type) {
		case float64:
			m[k] = scaleConfidence(t)
		case []any:
			out := make([]any, len(t))
			for i, x := range t {
				if f, ok := x.(float64); ok {
					out[i] = scaleConfidence(f)
				} else {
					out[i] = x
				}
			}
			m[k] = out
		}
	}
	return true
}

func scaleConfidence(v float64) float64 {
	return math.Max(0, math.Min(10, math.Round(v*10)))
}
