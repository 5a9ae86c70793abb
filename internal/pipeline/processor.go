package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/pdf-tagger/internal/metadata"
	"github.com/joseph-ayodele/pdf-tagger/internal/scheduler"
)

// Stage is one per-document step.
type Stage interface {
	Run(ctx context.Context, d *Document) error
}

// Processor schedules the stages of many documents and then normalizes
// their tags.
type Processor struct {
	Logger *slog.Logger
	OCR    Stage // nil disables
	Image  Stage
	Text   Stage
	Tags   *TagNormalizer

	// SchedulerOptions are passed to every run's scheduler.
	SchedulerOptions []scheduler.Option
}

func NewProcessor(logger *slog.Logger, ocrStage, image, text Stage, tags *TagNormalizer, opts ...scheduler.Option) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{Logger: logger, OCR: ocrStage, Image: image, Text: text, Tags: tags, SchedulerOptions: opts}
}

// Result is the outcome of a run.
type Result struct {
	Tally        scheduler.Tally
	Replacements map[string]string
	Elapsed      time.Duration
}

// Run processes docs and blocks until every job finished. Per-document
// failures are logged and counted, never returned.
func (p *Processor) Run(ctx context.Context, docs []*Document) Result {
	start := time.Now()
	s := scheduler.New(p.Logger, p.SchedulerOptions...)
	for _, d := range docs {
		for _, j := range p.jobs(d) {
			if err := s.Add(j); err != nil {
				p.Logger.Error("pipeline.job.rejected", "doc", d.Path, "job", j.ID, "error", err)
			}
		}
	}
	tally := s.Run(ctx)

	for _, d := range docs {
		if err := d.Close(); err != nil {
			p.Logger.Warn("pipeline.close_failed", "doc", d.Path, "error", err)
		}
	}

	res := Result{Tally: tally}
	if p.Tags != nil {
		records := make([]*metadata.Record, len(docs))
		for i, d := range docs {
			records[i] = d.Record
		}
		repl, err := p.Tags.Normalize(ctx, records)
		if err != nil {
			p.Logger.Error("pipeline.tags.failed", "error", err)
		}
		res.Replacements = repl
	}
	res.Elapsed = time.Since(start)
	return res
}

// jobs builds the document's job chain: OCR before image and text, image
// before text.
func (p *Processor) jobs(d *Document) []scheduler.Job {
	var jobs []scheduler.Job
	var deps []string
	add := func(kind scheduler.Kind, st Stage) {
		id := scheduler.JobID(d.Path, kind)
		jobs = append(jobs, scheduler.Job{
			ID:   id,
			Doc:  d.Path,
			Kind: kind,
			Deps: append([]string(nil), deps...),
			Run:  func(ctx context.Context) error { return st.Run(ctx, d) },
		})
		deps = append(deps, id)
	}
	if p.OCR != nil {
		add(scheduler.OCR, p.OCR)
	}
	if p.Image != nil {
		add(scheduler.Image, p.Image)
	}
	if p.Text != nil {
		add(scheduler.Text, p.Text)
	}
	return jobs
}
