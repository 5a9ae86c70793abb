package layout

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/joseph-ayodele/pdf-tagger/internal/runner"
)

// Config selects the external binaries and defaults used by a PDF source.
type Config struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"

	// FigureTolerance is the gap in points below which vector primitives join a cluster.
	FigureTolerance float64
}

func (c Config) withDefaults() Config {
	if c.Pdftotext == "" {
		c.Pdftotext = "pdftotext"
	}
	if c.Pdftoppm == "" {
		c.Pdftoppm = "pdftoppm"
	}
	if c.FigureTolerance <= 0 {
		c.FigureTolerance = 6
	}
	return c
}

// PDF is a Source backed by pdfcpu for the object model, ledongthuc/pdf for
// glyph and rectangle geometry, and poppler for text and rendering.
type PDF struct {
	path   string
	cfg    Config
	ctx    *model.Context
	dims   []types.Dim
	runner runner.Runner
	logger *slog.Logger

	textOnce sync.Once
	texts    []string
	textErr  error

	geomOnce sync.Once
	geom     *glyphReader
	geomErr  error
}

// Open parses path with pdfcpu. The returned source is safe for concurrent use.
func Open(path string, cfg Config, r runner.Runner, logger *slog.Logger) (*PDF, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if r == nil {
		r = runner.New(logger)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	ctx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		return nil, fmt.Errorf("read pdf %s: %w", path, err)
	}
	dims, err := ctx.PageDims()
	if err != nil {
		return nil, fmt.Errorf("page dims %s: %w", path, err)
	}
	return &PDF{
		path:   path,
		cfg:    cfg.withDefaults(),
		ctx:    ctx,
		dims:   dims,
		runner: r,
		logger: logger,
	}, nil
}

func (p *PDF) PageCount() int { return p.ctx.PageCount }

func (p *PDF) PageSize(page int) (float64, float64, float64) {
	if page < 1 || page > len(p.dims) {
		return 0, 0, 1
	}
	d := p.dims[page-1]
	return d.Width, d.Height, p.userUnit(page)
}

func (p *PDF) userUnit(page int) float64 {
	d, _, _, err := p.ctx.PageDict(page, false)
	if err != nil || d == nil {
		return 1
	}
	o, ok := d.Find("UserUnit")
	if !ok {
		return 1
	}
	switch v := o.(type) {
	case types.Float:
		if v > 0 {
			return float64(v)
		}
	case types.Integer:
		if v > 0 {
			return float64(v)
		}
	}
	return 1
}

func (p *PDF) Info() Info {
	return Info{
		Title:        p.ctx.Title,
		Subject:      p.ctx.Subject,
		Keywords:     p.ctx.Keywords,
		Author:       p.ctx.Author,
		CreationDate: p.ctx.XRefTable.CreationDate,
	}
}

// PageText returns the pdftotext output for page. The whole document is
// converted once and split on form feeds.
func (p *PDF) PageText(ctx context.Context, page int) (string, error) {
	p.textOnce.Do(func() {
		p.texts, p.textErr = pdfToText(ctx, p.runner, p.cfg.Pdftotext, p.path)
	})
	if p.textErr != nil {
		return "", p.textErr
	}
	if page < 1 || page > len(p.texts) {
		return "", nil
	}
	return strings.TrimSpace(p.texts[page-1]), nil
}

// PageImages lists the raster images drawn on page with their placement
// boxes. Images only reachable through form XObjects are not reported.
func (p *PDF) PageImages(_ context.Context, page int) ([]ImageRegion, error) {
	imgs, err := pdfcpu.ExtractPageImages(p.ctx, page, true)
	if err != nil {
		return nil, fmt.Errorf("page %d images: %w", page, err)
	}
	if len(imgs) == 0 {
		return nil, nil
	}
	rd, err := pdfcpu.ExtractPageContent(p.ctx, page)
	if err != nil {
		return nil, fmt.Errorf("page %d content: %w", page, err)
	}
	placements, err := ScanPlacements(rd)
	if err != nil {
		p.logger.Debug("layout.content.partial", "doc", p.path, "page", page, "error", err)
	}

	byName := make(map[string]model.Image, len(imgs))
	for _, img := range imgs {
		byName[img.Name] = img
	}
	pageBox := BBox{X1: p.dims[page-1].Width, Y1: p.dims[page-1].Height}

	var out []ImageRegion
	for i, pl := range placements {
		img, ok := byName[pl.Name]
		if !ok {
			continue
		}
		box := pl.BBox.Intersect(pageBox)
		if box.Empty() {
			continue
		}
		out = append(out, ImageRegion{
			ID:   fmt.Sprintf("p%d-%s-%d", page, pl.Name, i),
			BBox: box,
			PxW:  img.Width,
			PxH:  img.Height,
		})
	}
	return out, nil
}

// PageFigures clusters the vector rectangles of page.
func (p *PDF) PageFigures(_ context.Context, page int) ([]Figure, error) {
	p.geomOnce.Do(func() {
		p.geom, p.geomErr = openGlyphReader(p.path)
	})
	if p.geomErr != nil {
		return nil, p.geomErr
	}
	words, rects, err := p.geom.page(page)
	if err != nil {
		return nil, err
	}
	return ClusterFigures(rects, words, p.cfg.FigureTolerance), nil
}

func (p *PDF) RenderPage(ctx context.Context, page, maxEdge int) ([]byte, error) {
	return renderPage(ctx, p.runner, p.cfg.Pdftoppm, p.path, page, maxEdge)
}

func (p *PDF) RenderRegion(ctx context.Context, page int, box BBox, maxEdge int) ([]byte, error) {
	w, h, uu := p.PageSize(page)
	return renderRegion(ctx, p.runner, p.cfg.Pdftoppm, p.path, page, BBox{X1: w, Y1: h}, uu, box, maxEdge)
}

func (p *PDF) Close() error {
	if p.geom != nil {
		return p.geom.close()
	}
	return nil
}
