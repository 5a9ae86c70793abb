package ocr

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/pdf-tagger/internal/layout"
)

// PageRenderer rasterizes one page for OCR.
type PageRenderer func(ctx context.Context, page int) ([]byte, error)

// Pages fills in the text of a document's empty pages.
type Pages struct {
	engine  Engine
	workers int
	logger  *slog.Logger
}

func NewPages(engine Engine, workers int, logger *slog.Logger) *Pages {
	if logger == nil {
		logger = slog.Default()
	}
	if workers <= 0 {
		workers = 2
	}
	return &Pages{engine: engine, workers: workers, logger: logger}
}

// Fill OCRs every page of doc without embedded text and stores the result.
// A page that fails is logged and left empty. It returns the number of pages
// that gained text.
func (p *Pages) Fill(ctx context.Context, doc *layout.Document, render PageRenderer) int {
	empty := doc.EmptyPages()
	if len(empty) == 0 {
		return 0
	}
	start := time.Now()

	var mu sync.Mutex
	filled := 0
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for _, n := range empty {
		g.Go(func() error {
			png, err := render(gctx, n)
			if err != nil {
				p.logger.Warn("ocr.page.render_failed", "doc", doc.Path, "page", n, "error", err)
				return nil
			}
			text, err := p.engine.ExtractText(gctx, png)
			if err != nil {
				p.logger.Warn("ocr.page.failed", "doc", doc.Path, "page", n, "error", err)
				return nil
			}
			if text == "" {
				return nil
			}
			mu.Lock()
			doc.SetPageText(n, text)
			filled++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	p.logger.Info("ocr.document.done", "doc", doc.Path, "empty_pages", len(empty), "filled", filled,
		"elapsed_ms", time.Since(start).Milliseconds())
	return filled
}
