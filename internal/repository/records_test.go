package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/joseph-ayodele/pdf-tagger/internal/common"
	"github.com/joseph-ayodele/pdf-tagger/internal/metadata"
)

func openMemory(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	s, err := Open(ctx, Config{DSN: ":memory:"}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(s.Close)
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return s
}

func record(title string, conf int) *metadata.Record {
	r := metadata.New()
	r.SetTitle(title, conf)
	r.SetCreationDate("2021-03-04", conf)
	r.SetSummary("summary", conf)
	r.SetCreator("someone", conf)
	r.SetImportance(5, conf)
	r.AddTags(metadata.Tag{Name: "invoice", Confidence: 8})
	return r
}

func TestUpsertAndGet(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	if err := s.Upsert(ctx, StoredRecord{Path: "/a/x.pdf", Rel: "x.pdf", BaseDir: "/a", Record: record("First", 5)}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := s.Upsert(ctx, StoredRecord{Path: "/a/x.pdf", Rel: "x.pdf", BaseDir: "/a", Record: record("Second", 8)}); err != nil {
		t.Fatalf("Upsert again: %v", err)
	}

	got, err := s.Get(ctx, "/a/x.pdf")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Record.Title != "Second" || got.Record.TitleConfidence != 8 {
		t.Errorf("title = %q/%d", got.Record.Title, got.Record.TitleConfidence)
	}
	if got.Rel != "x.pdf" || got.BaseDir != "/a" {
		t.Errorf("location = %q %q", got.Rel, got.BaseDir)
	}
	if c, ok := got.Record.TagConfidence("invoice"); !ok || c != 8 {
		t.Errorf("tag = %d %v", c, ok)
	}
	if n, err := s.Count(ctx); err != nil || n != 1 {
		t.Errorf("Count = %d, %v", n, err)
	}
}

func TestGetMissing(t *testing.T) {
	s := openMemory(t)
	if _, err := s.Get(context.Background(), "/nope.pdf"); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListIncomplete(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()
	rows := []StoredRecord{
		{Path: "/c.pdf", Record: record("C", 9)},
		{Path: "/a.pdf", Record: record("A", 3)},
		{Path: "/b.pdf", Record: record("B", 7)},
	}
	for _, r := range rows {
		if err := s.Upsert(ctx, r); err != nil {
			t.Fatalf("Upsert %s: %v", r.Path, err)
		}
	}

	all, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 || all[0].Path != "/a.pdf" || all[2].Path != "/c.pdf" {
		t.Errorf("List order wrong: %v", paths(all))
	}

	incomplete, err := s.ListIncomplete(ctx, 7)
	if err != nil {
		t.Fatalf("ListIncomplete: %v", err)
	}
	if len(incomplete) != 1 || incomplete[0].Path != "/a.pdf" {
		t.Errorf("incomplete = %v, want [/a.pdf]", paths(incomplete))
	}
}

func TestUpsertRejectsEmpty(t *testing.T) {
	s := openMemory(t)
	err := s.Upsert(context.Background(), StoredRecord{Path: "/x.pdf"})
	if !errors.Is(err, common.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

func TestIsPostgres(t *testing.T) {
	testCases := []struct {
		dsn  string
		want bool
	}{
		{"postgres://u@h/db", true},
		{"postgresql://u@h/db", true},
		{":memory:", false},
		{"sqlite:///tmp/x.db", false},
		{"records.db", false},
	}
	for _, tc := range testCases {
		t.Run(tc.dsn, func(t *testing.T) {
			if got := IsPostgres(tc.dsn); got != tc.want {
				t.Errorf("IsPostgres(%q) = %v", tc.dsn, got)
			}
		})
	}
}

func paths(rs []*StoredRecord) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Path
	}
	return out
}
