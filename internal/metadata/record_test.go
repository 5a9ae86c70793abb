package metadata

import (
	"testing"
	"time"
)

func TestSetTitleMonotonic(t *testing.T) {
	testCases := []struct {
		name      string
		calls     []Tag
		wantTitle string
		wantConf  int
	}{
		{
			name:      "rising confidence",
			calls:     []Tag{{"a", 3}, {"b", 5}, {"c", 8}},
			wantTitle: "c",
			wantConf:  8,
		},
		{
			name:      "weaker evidence ignored",
			calls:     []Tag{{"a", 8}, {"b", 5}, {"c", 2}},
			wantTitle: "a",
			wantConf:  8,
		},
		{
			name:      "ties keep most recent",
			calls:     []Tag{{"a", 6}, {"b", 6}, {"c", 4}},
			wantTitle: "b",
			wantConf:  6,
		},
		{
			name:      "out of range clamped",
			calls:     []Tag{{"a", 42}, {"b", 10}},
			wantTitle: "b",
			wantConf:  10,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := New()
			for _, c := range tc.calls {
				r.SetTitle(c.Name, c.Confidence)
			}
			if r.Title != tc.wantTitle || r.TitleConfidence != tc.wantConf {
				t.Fatalf("got (%q, %d), want (%q, %d)", r.Title, r.TitleConfidence, tc.wantTitle, tc.wantConf)
			}
		})
	}
}

func TestSetCreationDate(t *testing.T) {
	r := New()
	if !r.SetCreationDate("2021-03-04", 5) {
		t.Fatal("expected valid date to be set")
	}
	if r.SetCreationDate("not a date", 10) {
		t.Fatal("unparseable date must not replace a valid one")
	}
	if got := r.CreationDateString(); got != "2021-03-04" {
		t.Fatalf("date = %q", got)
	}
	if !r.SetCreationDate("04 Mar 2022", 5) {
		t.Fatal("equal confidence should replace")
	}
	if got := r.CreationDateString(); got != "2022-03-04" {
		t.Fatalf("date = %q", got)
	}
}

func TestConfidenceIndex(t *testing.T) {
	testCases := []struct {
		name string
		rec  Record
		want float64
	}{
		{
			name: "empty",
			want: 0,
		},
		{
			name: "title caps",
			rec: Record{TitleConfidence: 2, CreationDateConfidence: 10, SummaryConfidence: 10,
				ImportanceConfidence: 10, CreatorConfidence: 10},
			want: 2,
		},
		{
			name: "mean caps",
			rec:  Record{TitleConfidence: 9, CreationDateConfidence: 9, SummaryConfidence: 3},
			want: 4.2,
		},
		{
			name: "all high",
			rec: Record{TitleConfidence: 8, CreationDateConfidence: 9, SummaryConfidence: 8,
				ImportanceConfidence: 7, CreatorConfidence: 8},
			want: 8,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.rec.ConfidenceIndex()
			if diff := got - tc.want; diff > 1e-9 || diff < -1e-9 {
				t.Fatalf("index = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestHasSufficientInformation(t *testing.T) {
	r := Record{TitleConfidence: 7, CreationDateConfidence: 7, SummaryConfidence: 7,
		ImportanceConfidence: 7, CreatorConfidence: 7}
	if !r.HasSufficientInformation(DefaultThreshold) {
		t.Fatal("index 7 should satisfy threshold 7")
	}
	r.CreatorConfidence = 6
	if r.HasSufficientInformation(DefaultThreshold) {
		t.Fatal("index 6.8 should not satisfy threshold 7")
	}
}

func TestCloneIsDeep(t *testing.T) {
	r := New()
	r.SetImportance(5, 5)
	r.AddTags(Tag{Name: "x", Confidence: 5})
	c := r.Clone()
	*c.Importance = 9
	c.Tags[0].Name = "y"
	if *r.Importance != 5 || r.Tags[0].Name != "x" {
		t.Fatal("clone shares state with original")
	}
}

func TestMergeRecords(t *testing.T) {
	a := New()
	a.SetTitle("Local", 6)
	a.SetCreationTime(time.Date(2020, 1, 2, 15, 4, 5, 0, time.Local), 10)

	b := New()
	b.SetTitle("Remote", 8)
	b.SetCreationDate("2019-01-01", 7)
	b.AddTags(Tag{Name: "tax", Confidence: 9})

	a.Merge(b)
	if a.Title != "Remote" {
		t.Fatalf("title = %q", a.Title)
	}
	if a.CreationDateString() != "2020-01-02" {
		t.Fatalf("date = %q", a.CreationDateString())
	}
	if c, ok := a.TagConfidence("tax"); !ok || c != 9 {
		t.Fatalf("tag tax = %d %v", c, ok)
	}
}
