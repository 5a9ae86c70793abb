package metadata

import (
	"math"
	"time"
)

const (
	MinConfidence = 0
	MaxConfidence = 10

	// DefaultThreshold is the confidence index a record needs to count as complete.
	DefaultThreshold = 7

	// TagMinConfidence gates tags coming from model replies.
	TagMinConfidence = 7
)

// Record is the confidence-scored metadata of one document.
//
// Every setter follows one rule: the incoming value replaces the current one
// iff its confidence is >= the current confidence. A Record is owned by a
// single document pipeline and is not safe for concurrent mutation.
type Record struct {
	Title           string
	TitleConfidence int

	Summary           string
	SummaryConfidence int

	Creator           string
	CreatorConfidence int

	CreationDate           time.Time
	CreationDateConfidence int

	Importance           *int
	ImportanceConfidence int

	Tags []Tag
}

// Tag is a keyword with its own confidence.
type Tag struct {
	Name       string `json:"name"`
	Confidence int    `json:"confidence"`
}

// New returns an empty record.
func New() *Record { return &Record{} }

func clamp(c int) int {
	if c < MinConfidence {
		return MinConfidence
	}
	if c > MaxConfidence {
		return MaxConfidence
	}
	return c
}

// SetTitle replaces the title when confidence >= the current title confidence.
func (r *Record) SetTitle(title string, confidence int) bool {
	confidence = clamp(confidence)
	if confidence < r.TitleConfidence {
		return false
	}
	r.Title, r.TitleConfidence = title, confidence
	return true
}

// SetSummary replaces the summary when confidence >= the current one.
func (r *Record) SetSummary(summary string, confidence int) bool {
	confidence = clamp(confidence)
	if confidence < r.SummaryConfidence {
		return false
	}
	r.Summary, r.SummaryConfidence = summary, confidence
	return true
}

// SetCreator replaces the creator when confidence >= the current one.
func (r *Record) SetCreator(creator string, confidence int) bool {
	confidence = clamp(confidence)
	if confidence < r.CreatorConfidence {
		return false
	}
	r.Creator, r.CreatorConfidence = creator, confidence
	return true
}

// SetImportance replaces the importance (0..10) when confidence >= the current one.
func (r *Record) SetImportance(importance, confidence int) bool {
	confidence = clamp(confidence)
	if confidence < r.ImportanceConfidence {
		return false
	}
	v := clamp(importance)
	r.Importance, r.ImportanceConfidence = &v, confidence
	return true
}

// SetCreationDate parses raw with the known date formats and replaces the
// date when parsing succeeds and confidence >= the current one. An
// unparseable value never displaces a date.
func (r *Record) SetCreationDate(raw string, confidence int) bool {
	t, ok := ParseDate(raw)
	if !ok {
		return false
	}
	return r.SetCreationTime(t, confidence)
}

// SetCreationTime is SetCreationDate for an already parsed date.
func (r *Record) SetCreationTime(t time.Time, confidence int) bool {
	if t.IsZero() {
		return false
	}
	confidence = clamp(confidence)
	if confidence < r.CreationDateConfidence {
		return false
	}
	y, m, d := t.Date()
	r.CreationDate = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	r.CreationDateConfidence = confidence
	return true
}

// CreationDateString renders the date as YYYY-MM-DD, or "" when unset.
func (r *Record) CreationDateString() string {
	if r.CreationDate.IsZero() {
		return ""
	}
	return r.CreationDate.Format(DateLayout)
}

// ConfidenceIndex is min(title, date, mean of the five scalar confidences).
// Title and date carry the most weight, so either one alone caps the index.
func (r *Record) ConfidenceIndex() float64 {
	mean := float64(r.TitleConfidence+r.CreationDateConfidence+r.SummaryConfidence+
		r.ImportanceConfidence+r.CreatorConfidence) / 5
	return math.Min(float64(r.TitleConfidence), math.Min(float64(r.CreationDateConfidence), mean))
}

// HasSufficientInformation reports whether the confidence index reached threshold.
func (r *Record) HasSufficientInformation(threshold int) bool {
	return r.ConfidenceIndex() >= float64(threshold)
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	out := *r
	if r.Importance != nil {
		v := *r.Importance
		out.Importance = &v
	}
	out.Tags = append([]Tag(nil), r.Tags...)
	return &out
}

// Merge applies every field of other through the confidence-gated setters.
// Tags are merged without the reply gate since other is already a record.
func (r *Record) Merge(other *Record) {
	if other == nil {
		return
	}
	if other.Title != "" || other.TitleConfidence > 0 {
		r.SetTitle(other.Title, other.TitleConfidence)
	}
	if other.Summary != "" || other.SummaryConfidence > 0 {
		r.SetSummary(other.Summary, other.SummaryConfidence)
	}
	if other.Creator != "" || other.CreatorConfidence > 0 {
		r.SetCreator(other.Creator, other.CreatorConfidence)
	}
	if !other.CreationDate.IsZero() {
		r.SetCreationTime(other.CreationDate, other.CreationDateConfidence)
	}
	if other.Importance != nil {
		r.SetImportance(*other.Importance, other.ImportanceConfidence)
	}
	r.AddTags(other.Tags...)
}
