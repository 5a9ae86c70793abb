package pipeline

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/pdf-tagger/constants"
	"github.com/joseph-ayodele/pdf-tagger/internal/budget"
	"github.com/joseph-ayodele/pdf-tagger/internal/candidates"
	"github.com/joseph-ayodele/pdf-tagger/internal/layout"
	"github.com/joseph-ayodele/pdf-tagger/internal/llm"
)

// TextConfig controls the text analysis.
type TextConfig struct {
	ShortModel    string
	LongModel     string
	WordThreshold int     // default 100
	Temperature   float64 // default 0.3
	MaxTokens     int
	Language      string
}

// Model picks the short-text model for documents of at most WordThreshold
// words and the long-text model otherwise, falling back to whichever is set.
func (c TextConfig) Model(words int) string {
	if words <= c.WordThreshold {
		if c.ShortModel != "" {
			return c.ShortModel
		}
		return c.LongModel
	}
	if c.LongModel != "" {
		return c.LongModel
	}
	return c.ShortModel
}

// TextStage sends the (possibly trimmed) page texts to a chat model.
type TextStage struct {
	Cfg       TextConfig
	Open      layout.Opener
	Extractor *candidates.Extractor
	Allocator *budget.Allocator
	Transport llm.Transport
	Logger    *slog.Logger
}

func NewTextStage(cfg TextConfig, open layout.Opener, ex *candidates.Extractor, alloc *budget.Allocator,
	tr llm.Transport, logger *slog.Logger) *TextStage {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.WordThreshold <= 0 {
		cfg.WordThreshold = 100
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.3
	}
	return &TextStage{Cfg: cfg, Open: open, Extractor: ex, Allocator: alloc, Transport: tr, Logger: logger}
}

func (s *TextStage) Run(ctx context.Context, d *Document) error {
	if s.Cfg.ShortModel == "" && s.Cfg.LongModel == "" {
		s.Logger.Debug("text.skip", "doc", d.Path, "reason", "no model")
		return nil
	}
	doc, err := d.Layout(ctx, s.Open, s.Logger)
	if err != nil {
		return err
	}
	words := 0
	for _, p := range doc.Pages {
		words += p.Words
	}
	if words == 0 {
		s.Logger.Info("text.skip", "doc", d.Path, "reason", "no text")
		return nil
	}
	model := s.Cfg.Model(words)

	system := llm.BuildTextSystemPrompt(s.Cfg.Language)
	intro := llm.BuildTextUserIntro(d.Record.APIJSON(), filepath.Base(d.Path), d.Folder())
	texts, _ := candidates.Split(s.Extractor.Extract(doc))
	plan := s.Allocator.Allocate(d.Path, system+"\n"+intro, texts)
	if plan.Aborted {
		return nil
	}

	var b strings.Builder
	b.WriteString(intro)
	for i, t := range plan.Texts {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(t.Text)
	}

	start := time.Now()
	reply, usage, err := s.Transport.Chat(ctx, llm.ChatRequest{
		Model: model,
		Messages: []llm.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: b.String()},
		},
		JSONMode:    true,
		Temperature: s.Cfg.Temperature,
		MaxTokens:   s.Cfg.MaxTokens,
		Doc:         d.Path,
		Task:        constants.TaskText,
	})
	if err != nil {
		return err
	}
	s.Logger.Info("text.reply", "doc", d.Path, "model", model, "words", words,
		"trimmed", plan.TextTrimmed, "prompt_tokens", usage.PromptTokens, "cost", usage.Cost,
		"elapsed_ms", time.Since(start).Milliseconds())
	_, err = applyReply(d.Record, reply, d.Path, string(constants.TaskText), s.Logger)
	return err
}
