package assemble

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/joseph-ayodele/pdf-tagger/internal/budget"
	"github.com/joseph-ayodele/pdf-tagger/internal/candidates"
	"github.com/joseph-ayodele/pdf-tagger/internal/layout"
	"github.com/joseph-ayodele/pdf-tagger/internal/llm"
)

type fakeRenderer struct {
	fail  map[int]bool
	calls []string
}

func (f *fakeRenderer) RenderPage(_ context.Context, page, maxEdge int) ([]byte, error) {
	f.calls = append(f.calls, fmt.Sprintf("page:%d@%d", page, maxEdge))
	if f.fail[page] {
		return nil, errors.New("render failed")
	}
	return []byte(fmt.Sprintf("page-%d", page)), nil
}

func (f *fakeRenderer) RenderRegion(_ context.Context, page int, _ layout.BBox, maxEdge int) ([]byte, error) {
	f.calls = append(f.calls, fmt.Sprintf("region:%d@%d", page, maxEdge))
	if f.fail[page] {
		return nil, errors.New("render failed")
	}
	return []byte(fmt.Sprintf("region-%d", page)), nil
}

func admission(kind candidates.Kind, page, order, edge, cost int) budget.Admission {
	return budget.Admission{
		Candidate: candidates.Candidate{Kind: kind, Page: page, Order: order, ID: fmt.Sprintf("p%d-%d", page, order)},
		Edge:      edge,
		Cost:      cost,
	}
}

func TestAssembleOrdering(t *testing.T) {
	plan := budget.Plan{
		Limit:       5000,
		IntroTokens: 10,
		Texts: []budget.PageText{
			{Page: 1, Text: "one", Tokens: 1},
			{Page: 3, Text: "three", Tokens: 2},
			{Page: 2, Text: "", Tokens: 0},
		},
		Images: []budget.Admission{
			admission(candidates.RegionImage, 3, 5, 512, 255),
			admission(candidates.PageImage, 2, 2, 1024, 765),
			admission(candidates.RegionImage, 1, 1, 768, 425),
			admission(candidates.RegionImage, 1, 0, 512, 255),
		},
	}
	r := &fakeRenderer{}
	req := New(nil).Assemble(context.Background(), r, "doc.pdf", "intro", plan)

	type step struct {
		kind llm.PartKind
		page int
	}
	want := []step{
		{llm.PartText, 0},
		{llm.PartText, 1}, {llm.PartImage, 1}, {llm.PartImage, 1},
		{llm.PartImage, 2},
		{llm.PartText, 3}, {llm.PartImage, 3},
	}
	if len(req.Parts) != len(want) {
		t.Fatalf("parts = %d, want %d", len(req.Parts), len(want))
	}
	for i, w := range want {
		if req.Parts[i].Kind != w.kind || req.Parts[i].Page != w.page {
			t.Errorf("part %d = %s/p%d, want %s/p%d", i, req.Parts[i].Kind, req.Parts[i].Page, w.kind, w.page)
		}
	}
	if req.Parts[0].Text != "intro" {
		t.Errorf("first part = %q, want intro", req.Parts[0].Text)
	}
	if got, want := r.calls[0], "region:1@512"; got != want {
		t.Errorf("first render = %s, want %s (encounter order within page)", got, want)
	}
	if req.Estimate != 10+1+2+255+765+425+255 {
		t.Errorf("estimate = %d", req.Estimate)
	}
	if req.Estimate > plan.Limit {
		t.Errorf("estimate %d exceeds limit %d", req.Estimate, plan.Limit)
	}
}

func TestAssembleOrderingContract(t *testing.T) {
	// every image of page p follows p's text and precedes any later page's text
	plan := budget.Plan{IntroTokens: 1}
	for p := 1; p <= 6; p++ {
		plan.Texts = append(plan.Texts, budget.PageText{Page: p, Text: "t", Tokens: 1})
		plan.Images = append(plan.Images, admission(candidates.PageImage, 7-p, p, 512, 255))
	}
	req := New(nil).Assemble(context.Background(), &fakeRenderer{}, "d", "i", plan)

	lastTextPage := 0
	for i, part := range req.Parts[1:] {
		switch part.Kind {
		case llm.PartText:
			if part.Page <= lastTextPage {
				t.Fatalf("part %d: text of page %d after page %d", i+1, part.Page, lastTextPage)
			}
			lastTextPage = part.Page
		case llm.PartImage:
			if part.Page != lastTextPage {
				t.Fatalf("part %d: image of page %d placed under page %d", i+1, part.Page, lastTextPage)
			}
		}
	}
}

func TestAssembleSkipsRenderFailures(t *testing.T) {
	plan := budget.Plan{
		IntroTokens: 5,
		Images: []budget.Admission{
			admission(candidates.PageImage, 1, 0, 512, 255),
			admission(candidates.PageImage, 2, 1, 512, 255),
		},
	}
	req := New(nil).Assemble(context.Background(), &fakeRenderer{fail: map[int]bool{1: true}}, "d", "i", plan)
	if req.Images != 1 || len(req.Parts) != 2 || req.Parts[1].Page != 2 {
		t.Fatalf("got %d images, parts %+v", req.Images, req.Parts)
	}
	if req.Estimate != 5+255 {
		t.Errorf("estimate = %d, want 260", req.Estimate)
	}
}

func TestAssembleAborted(t *testing.T) {
	plan := budget.Plan{Aborted: true, IntroTokens: 9000, Texts: []budget.PageText{{Page: 1, Text: "x"}}}
	req := New(nil).Assemble(context.Background(), &fakeRenderer{}, "d", "i", plan)
	if len(req.Parts) != 1 {
		t.Errorf("aborted plan produced %d parts", len(req.Parts))
	}
}
