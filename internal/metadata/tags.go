package metadata

import (
	"fmt"
	"strings"
)

// TagConfidence returns the confidence of name and whether the tag exists.
func (r *Record) TagConfidence(name string) (int, bool) {
	for _, t := range r.Tags {
		if t.Name == name {
			return t.Confidence, true
		}
	}
	return 0, false
}

// TagNames returns the tag strings in insertion order.
func (r *Record) TagNames() []string {
	out := make([]string, len(r.Tags))
	for i, t := range r.Tags {
		out[i] = t.Name
	}
	return out
}

// AddTags merges tags by name, keeping the maximum confidence seen.
// Blank names are ignored.
func (r *Record) AddTags(tags ...Tag) {
	for _, t := range tags {
		name := strings.TrimSpace(t.Name)
		if name == "" {
			continue
		}
		r.upsertTag(name, clamp(t.Confidence))
	}
}

// MergeTags merges a model reply's parallel tag and confidence lists.
// Only tags at or above TagMinConfidence are taken.
func (r *Record) MergeTags(names []string, confidences []int) error {
	if len(names) != len(confidences) {
		return fmt.Errorf("tags and confidences differ in length: %d != %d", len(names), len(confidences))
	}
	for i, name := range names {
		c := clamp(confidences[i])
		if c < TagMinConfidence {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		r.upsertTag(name, c)
	}
	return nil
}

func (r *Record) upsertTag(name string, confidence int) {
	for i := range r.Tags {
		if r.Tags[i].Name == name {
			if confidence > r.Tags[i].Confidence {
				r.Tags[i].Confidence = confidence
			}
			return
		}
	}
	r.Tags = append(r.Tags, Tag{Name: name, Confidence: confidence})
}

// ApplyReplacements rewrites tags through an old->new mapping. An empty
// replacement deletes the tag. Tags that collapse onto the same name keep
// the highest confidence and the position of the first occurrence.
func (r *Record) ApplyReplacements(replacements map[string]string) {
	if len(replacements) == 0 || len(r.Tags) == 0 {
		return
	}
	out := make([]Tag, 0, len(r.Tags))
	index := make(map[string]int, len(r.Tags))
	for _, t := range r.Tags {
		name := t.Name
		if repl, ok := replacements[t.Name]; ok {
			name = strings.TrimSpace(repl)
		}
		if name == "" {
			continue
		}
		if i, ok := index[name]; ok {
			if t.Confidence > out[i].Confidence {
				out[i].Confidence = t.Confidence
			}
			continue
		}
		index[name] = len(out)
		out = append(out, Tag{Name: name, Confidence: t.Confidence})
	}
	r.Tags = out
}

// UniqueTags returns the distinct tag names across records in first-seen order.
func UniqueTags(records ...*Record) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, rec := range records {
		if rec == nil {
			continue
		}
		for _, t := range rec.Tags {
			if _, ok := seen[t.Name]; ok {
				continue
			}
			seen[t.Name] = struct{}{}
			out = append(out, t.Name)
		}
	}
	return out
}
