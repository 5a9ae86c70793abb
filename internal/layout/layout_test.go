package layout

import (
	"context"
	"errors"
	"testing"
)

type fakeSource struct {
	texts  []string
	images map[int][]ImageRegion
	failAt int
}

func (f *fakeSource) PageCount() int { return len(f.texts) }
func (f *fakeSource) PageSize(int) (float64, float64, float64) {
	return 612, 792, 0
}
func (f *fakeSource) PageText(_ context.Context, p int) (string, error) {
	if p == f.failAt {
		return "", errors.New("broken page")
	}
	return f.texts[p-1], nil
}
func (f *fakeSource) PageImages(_ context.Context, p int) ([]ImageRegion, error) {
	return f.images[p], nil
}
func (f *fakeSource) PageFigures(context.Context, int) ([]Figure, error) { return nil, nil }
func (f *fakeSource) Info() Info                                         { return Info{Title: "T"} }
func (f *fakeSource) RenderPage(context.Context, int, int) ([]byte, error) {
	return nil, nil
}
func (f *fakeSource) RenderRegion(context.Context, int, BBox, int) ([]byte, error) {
	return nil, nil
}
func (f *fakeSource) Close() error { return nil }

func TestLoad(t *testing.T) {
	src := &fakeSource{
		texts:  []string{"hello world", "", "lost"},
		images: map[int][]ImageRegion{2: {{ID: "scan", PxW: 100, PxH: 100}}},
		failAt: 3,
	}
	doc := Load(context.Background(), "a.pdf", src, nil)
	if len(doc.Pages) != 3 {
		t.Fatalf("pages = %d", len(doc.Pages))
	}
	if doc.Pages[0].Words != 2 || doc.Pages[0].Unit() != 1 {
		t.Fatalf("page 1 = %+v", doc.Pages[0])
	}
	if len(doc.Pages[1].Images) != 1 {
		t.Fatalf("page 2 images = %+v", doc.Pages[1].Images)
	}
	if doc.Pages[2].Text != "" {
		t.Fatal("failed page should have no text")
	}
	if got := doc.EmptyPages(); len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Fatalf("empty pages = %v", got)
	}
	doc.SetPageText(2, "ocr text here")
	if doc.Pages[1].Words != 3 {
		t.Fatalf("words after ocr = %d", doc.Pages[1].Words)
	}
	if doc.Info.Title != "T" {
		t.Fatal("info not copied")
	}
}
