package metadata

import (
	"reflect"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	testCases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2021-07-08", "2021-07-08", true},
		{"2021_07_08", "2021-07-08", true},
		{"2021 07 08", "2021-07-08", true},
		{"20210708", "2021-07-08", true},
		{"2021-Jul-08", "2021-07-08", true},
		{"08 Jul 2021", "2021-07-08", true},
		{"08_Jul_2021", "2021-07-08", true},
		{"2021-07-08T10:00:00Z", "2021-07-08", true},
		{"2021-13-45", "", false},
		{"July 2021", "", false},
		{"", "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, ok := ParseDate(tc.in)
			if ok != tc.ok {
				t.Fatalf("ok = %v, want %v", ok, tc.ok)
			}
			if ok && got.Format(DateLayout) != tc.want {
				t.Fatalf("got %s, want %s", got.Format(DateLayout), tc.want)
			}
		})
	}
}

func TestParsePDFDate(t *testing.T) {
	got, ok := ParsePDFDate("D:20150919085148Z00'00'")
	if !ok || !got.Equal(time.Date(2015, 9, 19, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("got %v %v", got, ok)
	}
	if _, ok := ParsePDFDate("yesterday"); ok {
		t.Fatal("expected failure")
	}
}

func TestApplyFilename(t *testing.T) {
	r := New()
	r.ApplyFilename("/docs/2019-04-01 Tax-Return (final).pdf")
	if r.CreationDateString() != "2019-04-01" || r.CreationDateConfidence != FilenameDateConfidence {
		t.Fatalf("date = %s/%d", r.CreationDateString(), r.CreationDateConfidence)
	}
	if r.Title != "Tax-Return final" || r.TitleConfidence != FilenameTitleConfidence {
		t.Fatalf("title = %q/%d", r.Title, r.TitleConfidence)
	}
}

func TestApplyRelativePath(t *testing.T) {
	r := New()
	r.ApplyRelativePath("./finance/2020//taxes")
	if !reflect.DeepEqual(r.TagNames(), []string{"finance", "2020", "taxes"}) {
		t.Fatalf("tags = %v", r.TagNames())
	}
}

func TestApplyInfoKeywordsRoundTrip(t *testing.T) {
	src := New()
	src.SetTitle("T", 8)
	src.AddTags(Tag{"alpha", 9}, Tag{"beta", 8})

	r := New()
	r.ApplyInfo(DocumentInfo{
		Title:        "Info Title",
		CreationDate: "D:20200102",
		Keywords:     src.KeywordsString(),
	})
	if r.Title != "Info Title" || r.TitleConfidence != InfoFieldConfidence {
		t.Fatalf("title = %q/%d", r.Title, r.TitleConfidence)
	}
	if r.CreationDateString() != "2020-01-02" {
		t.Fatalf("date = %s", r.CreationDateString())
	}
	if !reflect.DeepEqual(r.Tags, src.Tags) {
		t.Fatalf("tags = %v, want %v", r.Tags, src.Tags)
	}
}

func TestParseKeywordsPlain(t *testing.T) {
	got := ParseKeywords("a, b,,c")
	want := []Tag{{"a", 7}, {"b", 7}, {"c", 7}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v", got)
	}
}
