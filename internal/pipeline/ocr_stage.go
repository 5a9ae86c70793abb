package pipeline

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/pdf-tagger/internal/layout"
	"github.com/joseph-ayodele/pdf-tagger/internal/ocr"
	"github.com/joseph-ayodele/pdf-tagger/internal/runner"
)

// OCRStage fills the text of pages without a text layer.
type OCRStage struct {
	Open   layout.Opener
	Pages  *ocr.Pages
	Render func(path string) ocr.PageRenderer
	Logger *slog.Logger
}

// NewOCRStage renders pages with pdftoppm at cfg.DPI and recognizes them with engine.
func NewOCRStage(open layout.Opener, engine ocr.Engine, cfg ocr.Config, r runner.Runner, logger *slog.Logger) *OCRStage {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.WithDefaults()
	return &OCRStage{
		Open:  open,
		Pages: ocr.NewPages(engine, cfg.Workers, logger),
		Render: func(path string) ocr.PageRenderer {
			return func(ctx context.Context, page int) ([]byte, error) {
				return layout.RenderAtDPI(ctx, r, cfg.Pdftoppm, path, page, cfg.DPI)
			}
		},
		Logger: logger,
	}
}

// Run OCRs the document's empty pages. Page failures are logged by Pages;
// only a document that cannot be opened fails the job.
func (s *OCRStage) Run(ctx context.Context, d *Document) error {
	doc, err := d.Layout(ctx, s.Open, s.Logger)
	if err != nil {
		return err
	}
	if len(doc.EmptyPages()) == 0 {
		s.Logger.Debug("ocr.skip", "doc", d.Path, "reason", "no empty pages")
		return nil
	}
	s.Pages.Fill(ctx, doc, s.Render(d.Path))
	return nil
}
