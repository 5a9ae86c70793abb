package candidates

import (
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/joseph-ayodele/pdf-tagger/internal/layout"
)

// VectorDPI is the resolution assumed for pages and vector figures, which
// have no native pixel size.
const VectorDPI = 300

// Config holds the classification thresholds.
type Config struct {
	ScanCoverage        float64 // one image covering this much of the page makes a page image
	SmallImageCoverage  float64 // images below this coverage count as small
	GroupSmallImages    int     // this many small images make a page image
	MinEdgeMM           float64 // shorter physical edge below this drops a region as an icon
	SparseTextWords     int     // pages with fewer words get a fallback page image
	MinFigurePrimitives int
	MaxFigureWords      int
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		ScanCoverage:        0.80,
		SmallImageCoverage:  0.10,
		GroupSmallImages:    4,
		MinEdgeMM:           15,
		SparseTextWords:     5,
		MinFigurePrimitives: 12,
		MaxFigureWords:      40,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ScanCoverage <= 0 {
		c.ScanCoverage = d.ScanCoverage
	}
	if c.SmallImageCoverage <= 0 {
		c.SmallImageCoverage = d.SmallImageCoverage
	}
	if c.GroupSmallImages <= 0 {
		c.GroupSmallImages = d.GroupSmallImages
	}
	if c.MinEdgeMM <= 0 {
		c.MinEdgeMM = d.MinEdgeMM
	}
	if c.SparseTextWords <= 0 {
		c.SparseTextWords = d.SparseTextWords
	}
	if c.MinFigurePrimitives <= 0 {
		c.MinFigurePrimitives = d.MinFigurePrimitives
	}
	if c.MaxFigureWords <= 0 {
		c.MaxFigureWords = d.MaxFigureWords
	}
	return c
}

// Extractor turns a document layout into candidates.
type Extractor struct {
	cfg    Config
	logger *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{cfg: cfg.withDefaults(), logger: logger}
}

// Extract returns the candidates of doc in page order. Per page the text
// block comes first, followed by image candidates.
func (e *Extractor) Extract(doc *layout.Document) []Candidate {
	var out []Candidate
	for _, p := range doc.Pages {
		out = append(out, e.page(doc.Path, p, len(out))...)
	}
	e.logger.Debug("candidates.extracted", "doc", doc.Path, "pages", len(doc.Pages), "candidates", len(out))
	return out
}

func (e *Extractor) page(docPath string, p layout.Page, order int) []Candidate {
	var out []Candidate
	add := func(c Candidate) {
		c.Page = p.Number
		c.WordsOnPage = p.Words
		c.Order = order + len(out)
		out = append(out, c)
	}

	if text := strings.TrimSpace(p.Text); text != "" {
		add(Candidate{Kind: TextBlock, ID: fmt.Sprintf("p%d-text", p.Number), BBox: p.BBox(), Value: 1, Area: 1, Text: text})
	}

	pageArea := p.Area()
	if pageArea <= 0 {
		return out
	}

	small := 0
	var scan *layout.ImageRegion
	for i := range p.Images {
		cov := coverage(p.Images[i].BBox, p)
		if cov >= e.cfg.ScanCoverage && scan == nil {
			scan = &p.Images[i]
		}
		if cov < e.cfg.SmallImageCoverage {
			small++
		}
	}
	if scan != nil || (small > 0 && small >= e.cfg.GroupSmallImages) {
		c := e.pageImage(p)
		if scan != nil && scan.PxW > 0 && scan.PxH > 0 {
			c.PxW, c.PxH = scan.PxW, scan.PxH
		}
		add(c)
		return out
	}

	dropped := 0
	images := 0
	for _, img := range p.Images {
		if e.isIcon(img.BBox, p) {
			dropped++
			e.logger.Debug("candidates.icon.dropped", "doc", docPath, "page", p.Number, "id", img.ID)
			continue
		}
		cov := coverage(img.BBox, p)
		add(Candidate{
			Kind:  RegionImage,
			ID:    img.ID,
			BBox:  img.BBox,
			PxW:   img.PxW,
			PxH:   img.PxH,
			Area:  cov,
			Value: cov,
		})
		images++
	}

	var figs []Candidate
	for i, f := range p.Figures {
		d := e.figures(p, f, fmt.Sprintf("p%d-fig%d", p.Number, i), &figs)
		dropped += d
	}
	for _, c := range figs {
		add(c)
		images++
	}

	if images == 0 && dropped > 0 && p.Words < e.cfg.SparseTextWords {
		c := e.pageImage(p)
		c.Fallback = true
		add(c)
		e.logger.Debug("candidates.page.fallback", "doc", docPath, "page", p.Number, "dropped", dropped, "words", p.Words)
	}
	return out
}

// figures captures f as one candidate when it looks like a diagram and
// recurses into its children otherwise. It returns the number of icon drops.
func (e *Extractor) figures(p layout.Page, f layout.Figure, id string, out *[]Candidate) int {
	if f.Primitives >= e.cfg.MinFigurePrimitives && f.Words <= e.cfg.MaxFigureWords {
		if e.isIcon(f.BBox, p) {
			return 1
		}
		cov := coverage(f.BBox, p)
		w, h := vectorPixels(f.BBox, p.Unit())
		*out = append(*out, Candidate{
			Kind:  RegionImage,
			ID:    id,
			BBox:  f.BBox,
			PxW:   w,
			PxH:   h,
			Area:  cov,
			Value: cov,
		})
		return 0
	}
	dropped := 0
	for i, child := range f.Children {
		dropped += e.figures(p, child, fmt.Sprintf("%s.%d", id, i), out)
	}
	return dropped
}

func (e *Extractor) pageImage(p layout.Page) Candidate {
	w, h := vectorPixels(p.BBox(), p.Unit())
	return Candidate{
		Kind:  PageImage,
		ID:    fmt.Sprintf("p%d-page", p.Number),
		BBox:  p.BBox(),
		PxW:   w,
		PxH:   h,
		Area:  1,
		Value: 1,
	}
}

// isIcon reports whether the shorter physical edge of box is below MinEdgeMM.
func (e *Extractor) isIcon(box layout.BBox, p layout.Page) bool {
	edge := math.Min(box.Width(), box.Height()) * p.Unit() * layout.MMPerPoint
	return edge < e.cfg.MinEdgeMM
}

func coverage(box layout.BBox, p layout.Page) float64 {
	area := p.Area()
	if area <= 0 {
		return 0
	}
	c := box.Intersect(p.BBox()).Area() / area
	return math.Min(1, c)
}

func vectorPixels(box layout.BBox, unit float64) (int, int) {
	scale := unit * VectorDPI / layout.PointsPerInch
	return int(math.Ceil(box.Width() * scale)), int(math.Ceil(box.Height() * scale))
}
