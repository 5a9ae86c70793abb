// Package assemble turns an allocation plan into the ordered part list of a
// model request.
package assemble

import (
	"context"
	"log/slog"
	"sort"

	"github.com/joseph-ayodele/pdf-tagger/internal/budget"
	"github.com/joseph-ayodele/pdf-tagger/internal/candidates"
	"github.com/joseph-ayodele/pdf-tagger/internal/layout"
	"github.com/joseph-ayodele/pdf-tagger/internal/llm"
)

// Request is an assembled part list with its planned token cost.
type Request struct {
	Parts    []llm.Part
	Estimate int
	Images   int
}

// Assembler renders admitted images and orders them with the page texts.
type Assembler struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{logger: logger}
}

// Assemble emits the intro first, then for every page in ascending order
// its text block followed by its images. Images that fail to render are
// logged and left out.
func (a *Assembler) Assemble(ctx context.Context, r layout.Renderer, doc, intro string, plan budget.Plan) Request {
	req := Request{Parts: []llm.Part{llm.TextPart(0, intro)}, Estimate: plan.IntroTokens}
	if plan.Aborted {
		return req
	}

	texts := make(map[int]budget.PageText, len(plan.Texts))
	images := make(map[int][]budget.Admission)
	pageSet := make(map[int]struct{})
	for _, t := range plan.Texts {
		texts[t.Page] = t
		pageSet[t.Page] = struct{}{}
	}
	for _, adm := range plan.Images {
		p := adm.Candidate.Page
		images[p] = append(images[p], adm)
		pageSet[p] = struct{}{}
	}
	pages := make([]int, 0, len(pageSet))
	for p := range pageSet {
		pages = append(pages, p)
	}
	sort.Ints(pages)

	for _, p := range pages {
		if t, ok := texts[p]; ok && t.Text != "" {
			req.Parts = append(req.Parts, llm.TextPart(p, t.Text))
			req.Estimate += t.Tokens
		}
		adms := images[p]
		sort.SliceStable(adms, func(i, j int) bool { return adms[i].Candidate.Order < adms[j].Candidate.Order })
		for _, adm := range adms {
			png, err := a.render(ctx, r, adm)
			if err != nil {
				a.logger.Warn("assemble.render_failed", "doc", doc, "page", p,
					"candidate", adm.Candidate.ID, "kind", adm.Candidate.Kind.String(), "error", err)
				continue
			}
			req.Parts = append(req.Parts, llm.ImagePart(p, png))
			req.Estimate += adm.Cost
			req.Images++
		}
	}

	a.logger.Debug("assemble.done", "doc", doc, "parts", len(req.Parts), "images", req.Images, "estimate", req.Estimate)
	return req
}

func (a *Assembler) render(ctx context.Context, r layout.Renderer, adm budget.Admission) ([]byte, error) {
	c := adm.Candidate
	if c.Kind == candidates.RegionImage {
		return r.RenderRegion(ctx, c.Page, c.BBox, adm.Edge)
	}
	return r.RenderPage(ctx, c.Page, adm.Edge)
}
