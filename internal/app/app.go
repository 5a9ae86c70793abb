// Package app wires the tagging pipeline from a loaded configuration. The
// batch CLI and the daemon share it.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/pdf-tagger/internal/assemble"
	"github.com/joseph-ayodele/pdf-tagger/internal/budget"
	"github.com/joseph-ayodele/pdf-tagger/internal/cache"
	"github.com/joseph-ayodele/pdf-tagger/internal/candidates"
	"github.com/joseph-ayodele/pdf-tagger/internal/common"
	"github.com/joseph-ayodele/pdf-tagger/internal/export"
	"github.com/joseph-ayodele/pdf-tagger/internal/ingest"
	"github.com/joseph-ayodele/pdf-tagger/internal/layout"
	"github.com/joseph-ayodele/pdf-tagger/internal/llm"
	"github.com/joseph-ayodele/pdf-tagger/internal/llm/mock"
	"github.com/joseph-ayodele/pdf-tagger/internal/llm/openai"
	"github.com/joseph-ayodele/pdf-tagger/internal/llm/vertex"
	"github.com/joseph-ayodele/pdf-tagger/internal/metadata"
	"github.com/joseph-ayodele/pdf-tagger/internal/ocr"
	"github.com/joseph-ayodele/pdf-tagger/internal/pipeline"
	"github.com/joseph-ayodele/pdf-tagger/internal/repository"
	"github.com/joseph-ayodele/pdf-tagger/internal/runner"
	"github.com/joseph-ayodele/pdf-tagger/internal/scheduler"
)

// Passes selects the analyses of a run.
type Passes struct {
	Text       bool
	Image      bool
	Tags       bool
	ForceImage bool // analyze images even when the record is already sufficient
}

// Options are the run settings that do not live in common.Config.
type Options struct {
	Passes  Passes
	BaseDir string    // collection root for tag normalization
	Status  io.Writer // status board target, nil for log lines only

	// Transport replaces the provider router, for tests.
	Transport llm.Transport
	// Opener replaces the PDF opener, for tests.
	Opener layout.Opener
}

// App holds the wired pipeline and its optional record store.
type App struct {
	Config    *common.Config
	Processor *pipeline.Processor
	Store     *repository.Store // nil without a DSN

	closers []func() error
	logger  *slog.Logger
}

// New builds the transports, stages and store from cfg. Close releases
// whatever New opened.
func New(ctx context.Context, cfg *common.Config, opts Options, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, logger: logger}

	run := runner.New(logger)
	open := opts.Opener
	if open == nil {
		open = layout.OpenPDF(layout.Config{Pdftotext: cfg.OCR.Pdftotext, Pdftoppm: cfg.OCR.Pdftoppm}, run)
	}

	tr := opts.Transport
	if tr == nil {
		var err error
		if tr, err = a.transport(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}

	extractor := candidates.NewExtractor(CandidatesConfig(cfg.Candidates), logger)
	alloc := budget.NewAllocator(BudgetConfig(cfg.Budget), logger)
	// text requests carry no images, so they get their own allocator
	textAlloc := budget.NewAllocator(BudgetConfig(cfg.Budget), logger)

	var ocrStage, imageStage, textStage pipeline.Stage
	ocrCfg := OCRConfig(cfg.OCR)
	if ocr.Enabled(ocrCfg, logger) {
		ocrStage = pipeline.NewOCRStage(open, ocr.NewEngine(ocrCfg, run, logger), ocrCfg, run, logger)
	}
	if opts.Passes.Image && cfg.Models.Image != "" {
		imageStage = pipeline.NewImageStage(pipeline.ImageConfig{
			Model:       cfg.Models.Image,
			Temperature: float64(cfg.Models.ImageTemperature),
			MaxTokens:   cfg.Models.MaxOutputTokens,
			Language:    cfg.Models.Language,
			Force:       opts.Passes.ForceImage,
			Threshold:   cfg.Threshold,
		}, open, extractor, alloc, assemble.New(logger), tr, logger)
	} else if opts.Passes.Image {
		logger.Warn("app.pass.skipped", "pass", "image", "reason", "no image model")
	}
	if opts.Passes.Text && (cfg.Models.TextShort != "" || cfg.Models.TextLong != "") {
		textStage = pipeline.NewTextStage(pipeline.TextConfig{
			ShortModel:    cfg.Models.TextShort,
			LongModel:     cfg.Models.TextLong,
			WordThreshold: cfg.Models.WordThreshold,
			Temperature:   float64(cfg.Models.TextTemperature),
			MaxTokens:     cfg.Models.MaxOutputTokens,
			Language:      cfg.Models.Language,
		}, open, extractor, textAlloc, tr, logger)
	} else if opts.Passes.Text {
		logger.Warn("app.pass.skipped", "pass", "text", "reason", "no text model")
	}
	var tags *pipeline.TagNormalizer
	if opts.Passes.Tags && cfg.Models.Tags != "" {
		tags = pipeline.NewTagNormalizer(pipeline.TagConfig{
			Model:       cfg.Models.Tags,
			Temperature: float64(cfg.Models.TagsTemperature),
			Language:    cfg.Models.Language,
			BaseDir:     opts.BaseDir,
		}, tr, logger)
	} else if opts.Passes.Tags {
		logger.Warn("app.pass.skipped", "pass", "tags", "reason", "no tags model")
	}

	schedOpts := []scheduler.Option{
		scheduler.WithWorkers(scheduler.OCR, cfg.Workers.OCR),
		scheduler.WithWorkers(scheduler.Image, cfg.Workers.Image),
		scheduler.WithWorkers(scheduler.Text, cfg.Workers.Text),
		scheduler.WithStatusInterval(cfg.Workers.StatusInterval),
		scheduler.WithJobTimeout(cfg.Workers.JobTimeout),
	}
	if opts.Status != nil {
		schedOpts = append(schedOpts, scheduler.WithBoard(scheduler.NewBoard(opts.Status)))
	}
	a.Processor = pipeline.NewProcessor(logger, ocrStage, imageStage, textStage, tags, schedOpts...)

	if cfg.Database.DSN != "" {
		store, err := repository.Open(ctx, StoreConfig(cfg.Database), logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Store = store
		a.closers = append(a.closers, func() error { store.Close(); return nil })
		if err := store.Migrate(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

// transport builds the provider router and wraps it in the response cache.
func (a *App) transport(ctx context.Context) (llm.Transport, error) {
	cfg := a.Config
	var oa, gem llm.Transport
	if cfg.OpenAI.APIKey != "" {
		oa = openai.NewClient(openai.Config{APIKey: cfg.OpenAI.APIKey, BaseURL: cfg.OpenAI.BaseURL, Timeout: cfg.OpenAI.Timeout}, a.logger)
	}
	if cfg.Vertex.ProjectID != "" {
		vc, err := vertex.NewClient(ctx, cfg.Vertex.ProjectID, cfg.Vertex.Location, a.logger)
		if err != nil {
			return nil, fmt.Errorf("vertex client: %w", err)
		}
		a.closers = append(a.closers, vc.Close)
		gem = vc
	}
	var tr llm.Transport = llm.NewRouter(oa, gem, mock.New("", a.logger), llm.DefaultPrices(), a.logger)

	if !cfg.Cache.Enabled {
		return tr, nil
	}
	var store cache.Store
	if cfg.Cache.RedisURL != "" {
		rs, err := cache.NewRedisStore(ctx, cfg.Cache.RedisURL, cfg.Cache.TTL, a.logger)
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		a.closers = append(a.closers, rs.Close)
		store = rs
	} else {
		store = cache.NewFileStore(cfg.Cache.Dir, cfg.Cache.TTL, a.logger)
	}
	return cache.NewTransport(tr, store, a.logger), nil
}

// Close releases clients and the store. It is safe on a partly built App.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("app.close_failed", "error", err)
		}
	}
	a.closers = nil
}

// Summary is the outcome of one batch.
type Summary struct {
	RunID   string
	Entries []export.Entry
	Result  pipeline.Result
	Cost    float64
	Saved   float64
}

// Run tags items in one scheduler run and persists the records when a
// store is configured. With a store, each document starts from its stored
// record. Per-document failures only show up in the tally.
func (a *App) Run(ctx context.Context, items []ingest.Item) Summary {
	run := common.NewRunContext()
	ctx = common.WithRun(ctx, run)

	docs := make([]*pipeline.Document, len(items))
	for i, it := range items {
		docs[i] = pipeline.NewDocument(it.Path, it.Rel(), a.seed(ctx, it))
	}
	a.logger.Info("app.run.start", "run_id", run.ID, "documents", len(docs))
	res := a.Processor.Run(ctx, docs)

	entries := make([]export.Entry, len(docs))
	for i, d := range docs {
		entries[i] = export.Entry{Path: d.Path, BaseDir: items[i].BaseDir, Record: d.Record}
	}
	if a.Store != nil {
		a.persist(ctx, entries)
	}

	cost, saved := run.Costs()
	a.logger.Info("app.run.finished",
		"run_id", run.ID,
		"documents", len(docs),
		"jobs", res.Tally.Total,
		"done", res.Tally.Done,
		"failed", res.Tally.Failed,
		"cost_usd", cost,
		"saved_usd", saved,
		"elapsed_ms", res.Elapsed.Milliseconds())
	return Summary{RunID: run.ID, Entries: entries, Result: res, Cost: cost, Saved: saved}
}

// seed returns the stored record of it with any imported record merged
// over it. Without a store or a stored row it returns it.Record.
func (a *App) seed(ctx context.Context, it ingest.Item) *metadata.Record {
	if a.Store == nil {
		return it.Record
	}
	stored, err := a.Store.Get(ctx, it.Path)
	switch {
	case errors.Is(err, common.ErrNotFound):
		return it.Record
	case err != nil:
		a.logger.Warn("app.seed.failed", "doc", it.Path, "error", err)
		return it.Record
	case stored.Record == nil:
		return it.Record
	}
	rec := stored.Record
	rec.Merge(it.Record)
	a.logger.Debug("app.seed.ok", "doc", it.Path, "confidence_index", rec.ConfidenceIndex(),
		"updated_at", stored.UpdatedAt)
	return rec
}

func (a *App) persist(ctx context.Context, entries []export.Entry) {
	now := time.Now()
	stored := 0
	for _, e := range entries {
		err := a.Store.Upsert(ctx, repository.StoredRecord{
			Path:      e.Path,
			Rel:       e.Rel(),
			BaseDir:   e.BaseDir,
			Record:    e.Record,
			UpdatedAt: now,
		})
		if err != nil {
			a.logger.Error("app.persist.failed", "doc", e.Path, "error", err)
			continue
		}
		stored++
	}
	a.logger.Info("app.persist.ok", "records", stored)
}

// Incomplete keeps the entries whose record is not yet sufficient.
func Incomplete(entries []export.Entry, threshold int) []export.Entry {
	var out []export.Entry
	for _, e := range entries {
		if !e.Record.HasSufficientInformation(threshold) {
			out = append(out, e)
		}
	}
	return out
}
