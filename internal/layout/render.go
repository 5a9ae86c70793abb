package layout

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/pdf-tagger/internal/runner"
)

const (
	minRenderDPI = 36
	maxRenderDPI = 600
)

func pdfToText(ctx context.Context, r runner.Runner, bin, path string) ([]string, error) {
	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := r.Run(ctx, bin, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return nil, fmt.Errorf("pdftotext: %w: %s", err, runner.Truncate(string(errb), 512))
	}
	pages := strings.Split(string(out), "\f")
	// pdftotext terminates the last page with a form feed too
	if n := len(pages); n > 1 && strings.TrimSpace(pages[n-1]) == "" {
		pages = pages[:n-1]
	}
	return pages, nil
}

func renderPage(ctx context.Context, r runner.Runner, bin, path string, page, maxEdge int) ([]byte, error) {
	if maxEdge <= 0 {
		return nil, fmt.Errorf("render page %d: max edge must be positive", page)
	}
	return runPdftoppm(ctx, r, bin, path, page,
		"-scale-to", strconv.Itoa(maxEdge))
}

// renderRegion renders box of page at the resolution that maps the box's long
// edge to maxEdge pixels.
func renderRegion(ctx context.Context, r runner.Runner, bin, path string, page int, pageBox BBox, userUnit float64, box BBox, maxEdge int) ([]byte, error) {
	box = box.Normalize().Intersect(pageBox)
	if box.Empty() {
		return nil, fmt.Errorf("render region on page %d: empty box", page)
	}
	if maxEdge <= 0 {
		return nil, fmt.Errorf("render region on page %d: max edge must be positive", page)
	}
	if userUnit <= 0 {
		userUnit = 1
	}
	longIn := math.Max(box.Width(), box.Height()) * userUnit / PointsPerInch
	dpi := RegionDPI(longIn, maxEdge)
	scale := dpi * userUnit / PointsPerInch

	x := int(math.Floor(box.X0 * scale))
	y := int(math.Floor((pageBox.Y1 - box.Y1) * scale))
	w := int(math.Ceil(box.Width() * scale))
	h := int(math.Ceil(box.Height() * scale))

	return runPdftoppm(ctx, r, bin, path, page,
		"-r", strconv.FormatFloat(dpi, 'f', 2, 64),
		"-x", strconv.Itoa(x), "-y", strconv.Itoa(y),
		"-W", strconv.Itoa(w), "-H", strconv.Itoa(h))
}

// RegionDPI is the resolution at which longInches spans maxEdge pixels,
// clamped to a range pdftoppm handles well.
func RegionDPI(longInches float64, maxEdge int) float64 {
	if longInches <= 0 {
		return minRenderDPI
	}
	dpi := float64(maxEdge) / longInches
	return math.Max(minRenderDPI, math.Min(maxRenderDPI, dpi))
}

// RenderAtDPI renders one full page at a fixed resolution (used for OCR).
func RenderAtDPI(ctx context.Context, r runner.Runner, bin, path string, page, dpi int) ([]byte, error) {
	if bin == "" {
		bin = "pdftoppm"
	}
	return runPdftoppm(ctx, r, bin, path, page, "-r", strconv.Itoa(dpi))
}

func runPdftoppm(ctx context.Context, r runner.Runner, bin, path string, page int, extra ...string) ([]byte, error) {
	tmpDir, err := os.MkdirTemp("", "pt-pp-*")
	if err != nil {
		return nil, err
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	prefix := filepath.Join(tmpDir, "page")
	p := strconv.Itoa(page)
	args := append([]string{"-f", p, "-l", p, "-png", "-singlefile"}, extra...)
	args = append(args, path, prefix)
	// pdftoppm -f N -l N -png -singlefile [opts] <in.pdf> <tmp/page>
	if _, errb, err := r.Run(ctx, bin, args...); err != nil {
		return nil, fmt.Errorf("pdftoppm page %d: %w: %s", page, err, runner.Truncate(string(errb), 512))
	}
	b, err := os.ReadFile(prefix + ".png")
	if err != nil {
		return nil, fmt.Errorf("pdftoppm produced no image for page %d: %w", page, err)
	}
	return b, nil
}

// OpenPDF adapts Open to the Opener signature.
func OpenPDF(cfg Config, r runner.Runner) Opener {
	return func(path string) (Source, error) {
		return Open(path, cfg, r, nil)
	}
}

// Opener opens a document for reading.
type Opener func(path string) (Source, error)
