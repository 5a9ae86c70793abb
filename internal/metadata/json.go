package metadata

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// wire is the JSON shape shared by the API context and record exports.
type wire struct {
	Title                  string   `json:"title"`
	TitleConfidence        int      `json:"title_confidence"`
	Summary                string   `json:"summary"`
	SummaryConfidence      int      `json:"summary_confidence"`
	Creator                string   `json:"creator"`
	CreatorConfidence      int      `json:"creator_confidence"`
	CreationDate           *string  `json:"creation_date"`
	CreationDateConfidence int      `json:"creation_date_confidence"`
	Importance             *int     `json:"importance"`
	ImportanceConfidence   int      `json:"importance_confidence"`
	Tags                   []string `json:"tags"`
	TagsConfidence         []int    `json:"tags_confidence"`
}

func (r *Record) toWire() wire {
	w := wire{
		Title:                  r.Title,
		TitleConfidence:        r.TitleConfidence,
		Summary:                r.Summary,
		SummaryConfidence:      r.SummaryConfidence,
		Creator:                r.Creator,
		CreatorConfidence:      r.CreatorConfidence,
		CreationDateConfidence: r.CreationDateConfidence,
		Importance:             r.Importance,
		ImportanceConfidence:   r.ImportanceConfidence,
		Tags:                   make([]string, 0, len(r.Tags)),
		TagsConfidence:         make([]int, 0, len(r.Tags)),
	}
	if s := r.CreationDateString(); s != "" {
		w.CreationDate = &s
	}
	for _, t := range r.Tags {
		w.Tags = append(w.Tags, t.Name)
		w.TagsConfidence = append(w.TagsConfidence, t.Confidence)
	}
	return w
}

// MarshalJSON renders the record with parallel tags/tags_confidence lists.
func (r *Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.toWire())
}

// UnmarshalJSON loads a record verbatim (no confidence gating).
func (r *Record) UnmarshalJSON(b []byte) error {
	var w wire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*r = Record{
		Title:                w.Title,
		TitleConfidence:      clamp(w.TitleConfidence),
		Summary:              w.Summary,
		SummaryConfidence:    clamp(w.SummaryConfidence),
		Creator:              w.Creator,
		CreatorConfidence:    clamp(w.CreatorConfidence),
		Importance:           w.Importance,
		ImportanceConfidence: clamp(w.ImportanceConfidence),
	}
	if w.CreationDate != nil {
		if t, ok := ParseDate(*w.CreationDate); ok {
			r.CreationDate = t
			r.CreationDateConfidence = clamp(w.CreationDateConfidence)
		}
	}
	for i, name := range w.Tags {
		c := 0
		if i < len(w.TagsConfidence) {
			c = w.TagsConfidence[i]
		}
		r.AddTags(Tag{Name: name, Confidence: c})
	}
	return nil
}

// APIJSON is the record serialized as "existing context to extend".
func (r *Record) APIJSON() string {
	b, err := json.Marshal(r.toWire())
	if err != nil {
		return "{}"
	}
	return string(b)
}

// MergeJSON decodes a model reply and applies it with MergeMap.
func (r *Record) MergeJSON(raw []byte) ([]string, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode reply: %w", err)
	}
	return r.MergeMap(m)
}

// MergeMap applies a decoded model reply. Each field needs both its value
// and its "<field>_confidence" key; "subject" is accepted for summary.
// It returns the names of the fields that changed.
func (r *Record) MergeMap(m map[string]any) ([]string, error) {
	var changed []string
	mark := func(name string, ok bool) {
		if ok {
			changed = append(changed, name)
		}
	}

	if v, c, ok := pair(m, "title"); ok {
		mark("title", r.SetTitle(asString(v), c))
	}
	if v, c, ok := pair(m, "summary"); ok {
		mark("summary", r.SetSummary(asString(v), c))
	} else if v, c, ok := pair(m, "subject"); ok {
		mark("summary", r.SetSummary(asString(v), c))
	}
	if v, c, ok := pair(m, "creator"); ok {
		mark("creator", r.SetCreator(asString(v), c))
	}
	if v, c, ok := pair(m, "creation_date"); ok {
		mark("creation_date", r.SetCreationDate(asString(v), c))
	}
	if v, c, ok := pair(m, "importance"); ok {
		if n, ok := asInt(v); ok {
			mark("importance", r.SetImportance(n, c))
		}
	}

	rawTags, hasTags := m["tags"]
	rawConf, hasConf := m["tags_confidence"]
	if hasTags && hasConf {
		names := asStrings(rawTags)
		confs := asInts(rawConf, len(names))
		before := len(r.Tags)
		if err := r.MergeTags(names, confs); err != nil {
			return changed, err
		}
		mark("tags", len(r.Tags) != before)
	}
	return changed, nil
}

func pair(m map[string]any, field string) (any, int, bool) {
	v, ok := m[field]
	if !ok || v == nil {
		return nil, 0, false
	}
	cv, ok := m[field+"_confidence"]
	if !ok {
		return nil, 0, false
	}
	c, ok := asInt(cv)
	if !ok {
		return nil, 0, false
	}
	return v, c, true
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func asInt(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		return int(math.Round(t)), true
	case int:
		return t, true
	case json.Number:
		f, err := t.Float64()
		return int(math.Round(f)), err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return int(math.Round(f)), err == nil
	}
	return 0, false
}

func asStrings(v any) []string {
	switch t := v.(type) {
	case []any:
		out := make([]string, 0, len(t))
		for _, x := range t {
			out = append(out, asString(x))
		}
		return out
	case []string:
		return t
	case string:
		var out []string
		for _, p := range strings.Split(t, ",") {
			out = append(out, strings.TrimSpace(p))
		}
		return out
	}
	return nil
}

// asInts reads a confidence list. A scalar applies to all n tags.
func asInts(v any, n int) []int {
	if list, ok := v.([]any); ok {
		out := make([]int, 0, len(list))
		for _, x := range list {
			c, _ := asInt(x)
			out = append(out, c)
		}
		return out
	}
	if c, ok := asInt(v); ok {
		out := make([]int, n)
		for i := range out {
			out[i] = c
		}
		return out
	}
	return nil
}
