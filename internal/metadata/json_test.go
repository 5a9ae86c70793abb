package metadata

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestMergeJSON(t *testing.T) {
	r := New()
	r.SetTitle("From filename", 6)

	reply := []byte(`{
		"title": "Annual Report", "title_confidence": 8,
		"subject": "Company results", "subject_confidence": 7,
		"creator": "ACME", "creator_confidence": 5,
		"creation_date": "2023-12-31", "creation_date_confidence": 9,
		"importance": 6, "importance_confidence": "7",
		"tags": ["report", "finance", "noise"], "tags_confidence": [9, 8, 2]
	}`)
	changed, err := r.MergeJSON(reply)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"title", "summary", "creator", "creation_date", "importance", "tags"}
	if !reflect.DeepEqual(changed, want) {
		t.Fatalf("changed = %v, want %v", changed, want)
	}
	if r.Title != "Annual Report" || r.Summary != "Company results" {
		t.Fatalf("unexpected record %+v", r)
	}
	if *r.Importance != 6 || r.ImportanceConfidence != 7 {
		t.Fatalf("importance = %d/%d", *r.Importance, r.ImportanceConfidence)
	}
	if !reflect.DeepEqual(r.TagNames(), []string{"report", "finance"}) {
		t.Fatalf("tags = %v", r.TagNames())
	}
}

func TestMergeMapRequiresConfidence(t *testing.T) {
	r := New()
	r.SetTitle("keep", 0)
	changed, err := r.MergeMap(map[string]any{"title": "drop"})
	if err != nil {
		t.Fatal(err)
	}
	if len(changed) != 0 || r.Title != "keep" {
		t.Fatalf("title without confidence applied: %v %q", changed, r.Title)
	}
}

func TestMergeMapScalarTagConfidence(t *testing.T) {
	r := New()
	if _, err := r.MergeMap(map[string]any{"tags": "a, b", "tags_confidence": 8.0}); err != nil {
		t.Fatal(err)
	}
	want := []Tag{{"a", 8}, {"b", 8}}
	if !reflect.DeepEqual(r.Tags, want) {
		t.Fatalf("tags = %v", r.Tags)
	}
}

func TestMergeJSONInvalid(t *testing.T) {
	if _, err := New().MergeJSON([]byte("{not json")); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestRecordJSONRoundTrip(t *testing.T) {
	r := New()
	r.SetTitle("T", 7)
	r.SetCreationDate("2020-05-06", 9)
	r.AddTags(Tag{"low", 3}, Tag{"high", 9})

	b, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	var back Record
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	if back.Title != "T" || back.CreationDateString() != "2020-05-06" || back.CreationDateConfidence != 9 {
		t.Fatalf("round trip lost fields: %+v", back)
	}
	if !reflect.DeepEqual(back.Tags, r.Tags) {
		t.Fatalf("tags = %v, want %v", back.Tags, r.Tags)
	}
}

func TestAPIJSONNullDate(t *testing.T) {
	var m map[string]any
	if err := json.Unmarshal([]byte(New().APIJSON()), &m); err != nil {
		t.Fatal(err)
	}
	if v, ok := m["creation_date"]; !ok || v != nil {
		t.Fatalf("creation_date = %v", v)
	}
}
