package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/pdf-tagger/constants"
	"github.com/joseph-ayodele/pdf-tagger/internal/assemble"
	"github.com/joseph-ayodele/pdf-tagger/internal/budget"
	"github.com/joseph-ayodele/pdf-tagger/internal/candidates"
	"github.com/joseph-ayodele/pdf-tagger/internal/layout"
	"github.com/joseph-ayodele/pdf-tagger/internal/llm"
	"github.com/joseph-ayodele/pdf-tagger/internal/metadata"
)

// ImageConfig controls the image analysis.
type ImageConfig struct {
	Model       string
	Temperature float64 // default 0.8
	MaxTokens   int
	Language    string
	Force       bool // run even when the record is already sufficient
	Threshold   int
}

// ImageStage sends the best page images and regions, interleaved with page
// text, to a vision model.
type ImageStage struct {
	Cfg       ImageConfig
	Open      layout.Opener
	Extractor *candidates.Extractor
	Allocator *budget.Allocator
	Assembler *assemble.Assembler
	Transport llm.Transport
	Logger    *slog.Logger
}

func NewImageStage(cfg ImageConfig, open layout.Opener, ex *candidates.Extractor, alloc *budget.Allocator,
	asm *assemble.Assembler, tr llm.Transport, logger *slog.Logger) *ImageStage {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.8
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = metadata.DefaultThreshold
	}
	return &ImageStage{Cfg: cfg, Open: open, Extractor: ex, Allocator: alloc, Assembler: asm, Transport: tr, Logger: logger}
}

func (s *ImageStage) Run(ctx context.Context, d *Document) error {
	if s.Cfg.Model == "" {
		s.Logger.Debug("image.skip", "doc", d.Path, "reason", "no model")
		return nil
	}
	if !s.Cfg.Force && d.Record.HasSufficientInformation(s.Cfg.Threshold) {
		s.Logger.Info("image.skip", "doc", d.Path, "reason", "sufficient", "confidence_index", d.Record.ConfidenceIndex())
		return nil
	}
	doc, err := d.Layout(ctx, s.Open, s.Logger)
	if err != nil {
		return err
	}

	intro := llm.BuildImagePrompt(d.Record.APIJSON(), s.Cfg.Language)
	plan := s.Allocator.Allocate(d.Path, intro, s.Extractor.Extract(doc))
	if plan.Aborted {
		return nil
	}
	if len(plan.Images) == 0 {
		s.Logger.Info("image.skip", "doc", d.Path, "reason", "no images admitted")
		return nil
	}

	req := s.Assembler.Assemble(ctx, d.Renderer(), d.Path, intro, plan)
	if req.Images == 0 {
		s.Logger.Warn("image.skip", "doc", d.Path, "reason", "no image rendered")
		return nil
	}

	start := time.Now()
	reply, usage, err := s.Transport.Vision(ctx, llm.VisionRequest{
		Model:       s.Cfg.Model,
		Parts:       req.Parts,
		Temperature: s.Cfg.Temperature,
		MaxTokens:   s.Cfg.MaxTokens,
		Doc:         d.Path,
		Task:        constants.TaskImage,
	})
	if err != nil {
		return err
	}
	s.Logger.Info("image.reply", "doc", d.Path, "model", s.Cfg.Model, "images", req.Images,
		"estimate", req.Estimate, "prompt_tokens", usage.PromptTokens, "cost", usage.Cost,
		"elapsed_ms", time.Since(start).Milliseconds())
	_, err = applyReply(d.Record, reply, d.Path, string(constants.TaskImage), s.Logger)
	return err
}
