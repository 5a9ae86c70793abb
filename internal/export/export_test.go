package export

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/pdf-tagger/internal/common"
	"github.com/joseph-ayodele/pdf-tagger/internal/metadata"
)

func sample() Entry {
	r := metadata.New()
	r.SetTitle("Annual Report", 8)
	r.SetCreationDate("2022-12-31", 10)
	r.SetSummary("Numbers.", 7)
	r.AddTags(metadata.Tag{Name: "finance", Confidence: 8}, metadata.Tag{Name: "reports", Confidence: 6})
	return Entry{Path: "/docs/reports/2022/annual.pdf", BaseDir: "/docs", Record: r}
}

func TestEntryRel(t *testing.T) {
	testCases := []struct {
		name  string
		entry Entry
		want  string
	}{
		{"nested", Entry{Path: "/docs/a/b/x.pdf", BaseDir: "/docs"}, "a/b"},
		{"at base", Entry{Path: "/docs/x.pdf", BaseDir: "/docs"}, "."},
		{"no base", Entry{Path: "/docs/x.pdf"}, "."},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.entry.Rel(); got != tc.want {
				t.Errorf("Rel() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestJSONReadsBackWhatItWrites(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, []Entry{sample()}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	for _, key := range []string{`"file_name": "annual.pdf"`, `"relative_path": "reports/2022"`, `"tags_confidence"`} {
		if !strings.Contains(buf.String(), key) {
			t.Errorf("output lacks %s:\n%s", key, buf.String())
		}
	}

	got, err := ReadJSON(&buf)
	if err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("entries = %d", len(got))
	}
	e := got[0]
	if e.Path != "/docs/reports/2022/annual.pdf" || e.BaseDir != "/docs" {
		t.Errorf("location = %q %q", e.Path, e.BaseDir)
	}
	if e.Record.APIJSON() != sample().Record.APIJSON() {
		t.Errorf("record = %s", e.Record.APIJSON())
	}
}

func TestReadJSONLegacySubject(t *testing.T) {
	in := `[{"folder_path_abs":"/x","file_name":"a.pdf","subject":"Old style","subject_confidence":6}]`
	got, err := ReadJSON(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if got[0].Record.Summary != "Old style" || got[0].Record.SummaryConfidence != 6 {
		t.Errorf("summary = %q/%d", got[0].Record.Summary, got[0].Record.SummaryConfidence)
	}
}

func TestReadJSONErrors(t *testing.T) {
	testCases := []struct {
		name string
		in   string
	}{
		{"not a list", `{"file_name":"a.pdf"}`},
		{"no file name", `[{"folder_path_abs":"/x"}]`},
		{"garbage", `nope`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReadJSON(strings.NewReader(tc.in))
			if common.CodeOf(err) != "IMPORT_ERROR" {
				t.Errorf("err = %v, want IMPORT_ERROR", err)
			}
		})
	}
	_, err := ReadJSON(strings.NewReader(`[{"folder_path_abs":"/x"}]`))
	if !errors.Is(err, common.ErrValidation) {
		t.Errorf("missing file_name err = %v, want ErrValidation", err)
	}
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteXLSX(&buf, []Entry{sample()}, nil); err != nil {
		t.Fatalf("WriteXLSX: %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	testCases := []struct {
		cell string
		want string
	}{
		{"A1", "File"},
		{"A2", "annual.pdf"},
		{"B2", "reports/2022"},
		{"C2", "Annual Report"},
		{"E2", "2022-12-31"},
		{"M2", "finance, reports"},
	}
	for _, tc := range testCases {
		got, err := f.GetCellValue(sheet, tc.cell)
		if err != nil {
			t.Fatalf("GetCellValue(%s): %v", tc.cell, err)
		}
		if got != tc.want {
			t.Errorf("%s = %q, want %q", tc.cell, got, tc.want)
		}
	}
}
