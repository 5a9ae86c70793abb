package layout

import (
	"context"
	"log/slog"
	"math"
	"strings"
)

// PointsPerInch is the PDF default user space unit.
const PointsPerInch = 72.0

// MMPerPoint converts PDF points to millimetres.
const MMPerPoint = 25.4 / PointsPerInch

// BBox is a rectangle in PDF user space (origin bottom-left, points).
type BBox struct {
	X0, Y0, X1, Y1 float64
}

func (b BBox) Width() float64  { return math.Abs(b.X1 - b.X0) }
func (b BBox) Height() float64 { return math.Abs(b.Y1 - b.Y0) }
func (b BBox) Area() float64   { return b.Width() * b.Height() }
func (b BBox) Empty() bool     { return b.Width() == 0 || b.Height() == 0 }

// Normalize orders the corners so X0<=X1 and Y0<=Y1.
func (b BBox) Normalize() BBox {
	return BBox{
		X0: math.Min(b.X0, b.X1), Y0: math.Min(b.Y0, b.Y1),
		X1: math.Max(b.X0, b.X1), Y1: math.Max(b.Y0, b.Y1),
	}
}

// Union returns the smallest box containing b and o.
func (b BBox) Union(o BBox) BBox {
	return BBox{
		X0: math.Min(b.X0, o.X0), Y0: math.Min(b.Y0, o.Y0),
		X1: math.Max(b.X1, o.X1), Y1: math.Max(b.Y1, o.Y1),
	}
}

// Intersect returns the overlap of b and o; the zero box when disjoint.
func (b BBox) Intersect(o BBox) BBox {
	r := BBox{
		X0: math.Max(b.X0, o.X0), Y0: math.Max(b.Y0, o.Y0),
		X1: math.Min(b.X1, o.X1), Y1: math.Min(b.Y1, o.Y1),
	}
	if r.X0 >= r.X1 || r.Y0 >= r.Y1 {
		return BBox{}
	}
	return r
}

// Contains reports whether the point lies inside b.
func (b BBox) Contains(x, y float64) bool {
	return x >= b.X0 && x <= b.X1 && y >= b.Y0 && y <= b.Y1
}

// ImageRegion is a raster image placed on a page.
type ImageRegion struct {
	ID   string
	BBox BBox
	PxW  int
	PxH  int
}

// Figure is a cluster of vector drawing primitives. Children are the
// finer clusters it was built from.
type Figure struct {
	BBox       BBox
	Primitives int
	Words      int
	Children   []Figure
}

// Page is the layout of one page. Number is 1-based.
type Page struct {
	Number   int
	Width    float64
	Height   float64
	UserUnit float64
	Text     string
	Words    int
	Images   []ImageRegion
	Figures  []Figure
}

// BBox returns the page rectangle.
func (p Page) BBox() BBox { return BBox{X1: p.Width, Y1: p.Height} }

// Area is the page area in square points.
func (p Page) Area() float64 { return p.Width * p.Height }

// Unit returns the user unit, defaulting to 1.
func (p Page) Unit() float64 {
	if p.UserUnit <= 0 {
		return 1
	}
	return p.UserUnit
}

// Info is the document information dictionary.
type Info struct {
	Title        string
	Subject      string
	Keywords     string
	Author       string
	CreationDate string
}

// Document is the layout of a whole file.
type Document struct {
	Path  string
	Info  Info
	Pages []Page
}

// Page returns the page with number n.
func (d *Document) Page(n int) (Page, bool) {
	if n < 1 || n > len(d.Pages) {
		return Page{}, false
	}
	return d.Pages[n-1], true
}

// Text joins the page texts with form feeds.
func (d *Document) Text() string {
	parts := make([]string, len(d.Pages))
	for i, p := range d.Pages {
		parts[i] = p.Text
	}
	return strings.Join(parts, "\f")
}

// EmptyPages lists the pages without extractable text.
func (d *Document) EmptyPages() []int {
	var out []int
	for _, p := range d.Pages {
		if strings.TrimSpace(p.Text) == "" {
			out = append(out, p.Number)
		}
	}
	return out
}

// SetPageText replaces the text of page n (used after OCR).
func (d *Document) SetPageText(n int, text string) {
	if n < 1 || n > len(d.Pages) {
		return
	}
	d.Pages[n-1].Text = text
	d.Pages[n-1].Words = len(strings.Fields(text))
}

// Renderer turns pages and regions into PNG bytes whose long edge is at most maxEdge px.
type Renderer interface {
	RenderPage(ctx context.Context, page, maxEdge int) ([]byte, error)
	RenderRegion(ctx context.Context, page int, box BBox, maxEdge int) ([]byte, error)
}

// Source is an opened document.
type Source interface {
	Renderer
	PageCount() int
	PageSize(page int) (width, height, userUnit float64)
	PageText(ctx context.Context, page int) (string, error)
	PageImages(ctx context.Context, page int) ([]ImageRegion, error)
	PageFigures(ctx context.Context, page int) ([]Figure, error)
	Info() Info
	Close() error
}

// Load reads every page of src. Per-page failures are logged and leave
// the affected part of the page empty.
func Load(ctx context.Context, path string, src Source, logger *slog.Logger) *Document {
	if logger == nil {
		logger = slog.Default()
	}
	doc := &Document{Path: path, Info: src.Info()}
	for n := 1; n <= src.PageCount(); n++ {
		w, h, uu := src.PageSize(n)
		p := Page{Number: n, Width: w, Height: h, UserUnit: uu}

		if text, err := src.PageText(ctx, n); err != nil {
			logger.Warn("layout.text.failed", "doc", path, "page", n, "error", err)
		} else {
			p.Text = text
			p.Words = len(strings.Fields(text))
		}
		if imgs, err := src.PageImages(ctx, n); err != nil {
			logger.Warn("layout.images.failed", "doc", path, "page", n, "error", err)
		} else {
			p.Images = imgs
		}
		if figs, err := src.PageFigures(ctx, n); err != nil {
			logger.Warn("layout.figures.failed", "doc", path, "page", n, "error", err)
		} else {
			p.Figures = figs
		}
		doc.Pages = append(doc.Pages, p)
	}
	logger.Debug("layout.loaded", "doc", path, "pages", len(doc.Pages))
	return doc
}
