package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/joseph-ayodele/pdf-tagger/constants"
	"github.com/joseph-ayodele/pdf-tagger/internal/app"
	"github.com/joseph-ayodele/pdf-tagger/internal/common"
	"github.com/joseph-ayodele/pdf-tagger/internal/export"
	"github.com/joseph-ayodele/pdf-tagger/internal/ingest"
	"github.com/joseph-ayodele/pdf-tagger/internal/repository"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

type flags struct {
	envFile          string
	baseDir          string
	text             bool
	image            bool
	tags             bool
	forceImage       bool
	ocrMode          string
	ocrLang          string
	budget           int
	modelTextShort   string
	modelTextLong    string
	modelImage       string
	modelTags        string
	cache            bool
	cacheTTL         time.Duration
	cacheDir         string
	redis            string
	jsonOut          string
	xlsxOut          string
	exportDir        string
	exportPattern    string
	db               string
	listIncomplete   bool
	filterIncomplete bool
	threshold        int
	debug            int
	gcsDir           string
}

func main() {
	var f flags
	flag.StringVar(&f.envFile, "env", ".env", "dotenv file loaded before the environment is read")
	flag.StringVar(&f.baseDir, "base-dir", "", "base directory for relative paths and folder tags")
	flag.BoolVar(&f.text, "t", false, "analyze page text")
	flag.BoolVar(&f.image, "i", false, "analyze page images")
	flag.BoolVar(&f.tags, "c", false, "normalize tags across the collection")
	flag.BoolVar(&f.forceImage, "force-image", false, "analyze images even for sufficient records")
	flag.StringVar(&f.ocrMode, "ocr", "", "ocr mode: auto, force or off")
	flag.StringVar(&f.ocrLang, "ocr-lang", "", "tesseract languages, e.g. deu+eng")
	flag.IntVar(&f.budget, "budget", 0, "token limit per model request")
	flag.StringVar(&f.modelTextShort, "model-text-short", "", "model for short texts")
	flag.StringVar(&f.modelTextLong, "model-text-long", "", "model for long texts")
	flag.StringVar(&f.modelImage, "model-image", "", "vision model")
	flag.StringVar(&f.modelTags, "model-tags", "", "model for tag normalization")
	flag.BoolVar(&f.cache, "cache", true, "cache model responses")
	flag.DurationVar(&f.cacheTTL, "cache-ttl", 0, "response cache ttl")
	flag.StringVar(&f.cacheDir, "cache-dir", "", "response cache directory")
	flag.StringVar(&f.redis, "redis", "", "redis url for a shared response cache")
	flag.StringVar(&f.jsonOut, "json", "", "write records to this JSON file")
	flag.StringVar(&f.xlsxOut, "xlsx", "", "write records to this XLSX file")
	flag.StringVar(&f.exportDir, "e", "", "copy the PDFs with updated metadata into this folder")
	flag.StringVar(&f.exportPattern, "e-pattern", export.DefaultPattern, "file name pattern for -e, strftime date directives and {TITLE}")
	flag.StringVar(&f.db, "db", "", "record store DSN (postgres:// url or sqlite path)")
	flag.BoolVar(&f.listIncomplete, "list-incomplete", false, "print the paths of records below the threshold and exit")
	flag.BoolVar(&f.filterIncomplete, "filter-incomplete", false, "only export records below the threshold")
	flag.IntVar(&f.threshold, "threshold", -1, "confidence threshold 0..10")
	flag.IntVar(&f.debug, "debug", 1, "log level: 0 error, 1 info, 2 debug")
	flag.StringVar(&f.gcsDir, "gcs-dir", "", "local mirror for gs:// inputs")
	flag.Parse()

	if f.debug < 0 || f.debug > 2 {
		printError("Error: -debug must be 0, 1 or 2\n")
		os.Exit(1)
	}
	logger := newLogger(f.debug)
	slog.SetDefault(logger)

	if err := common.LoadDotEnv(f.envFile); err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
	cfg := common.LoadConfig()
	applyFlags(cfg, f, flagsSet())
	if err := cfg.Validate(); err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}

	inputs := flag.Args()
	if len(inputs) == 0 && !f.listIncomplete {
		printError("Usage: pdftagger [flags] <pdf|folder|gs://bucket/prefix|records.json>...\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if f.listIncomplete && len(inputs) == 0 {
		if err := listStored(ctx, cfg, logger); err != nil {
			logger.Error("pdftagger.list_failed", "error", err)
		}
		return
	}

	var gcs *ingest.GCS
	if hasGCSInput(inputs) {
		dir := f.gcsDir
		if dir == "" {
			dir = filepath.Join(os.TempDir(), "pdftagger-gcs")
		}
		var err error
		if gcs, err = ingest.NewGCS(ctx, dir, 0, logger); err != nil {
			logger.Error("pdftagger.gcs_failed", "error", err)
		} else {
			defer gcs.Close()
		}
	}

	items, stats, err := ingest.NewCollector(f.baseDir, gcs, logger).Collect(ctx, inputs)
	if err != nil {
		logger.Error("pdftagger.collect_failed", "error", err)
	}
	logger.Info("pdftagger.collected",
		"documents", len(items),
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"imported", stats.Imported,
		"downloaded", stats.Downloaded,
		"failed", stats.Failed)

	var status io.Writer
	if isatty.IsTerminal(os.Stderr.Fd()) && f.debug < 2 {
		status = os.Stderr
	}
	a, err := app.New(ctx, cfg, app.Options{
		Passes:  app.Passes{Text: f.text, Image: f.image, Tags: f.tags, ForceImage: f.forceImage},
		BaseDir: f.baseDir,
		Status:  status,
	}, logger)
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	sum := a.Run(ctx, items)
	logger.Info("pdftagger.finished",
		"run_id", sum.RunID,
		"documents", len(sum.Entries),
		"done", sum.Result.Tally.Done,
		"failed", sum.Result.Tally.Failed,
		"failed_docs", failedDocs(sum),
		"cost_usd", fmt.Sprintf("%.4f", sum.Cost),
		"saved_usd", fmt.Sprintf("%.4f", sum.Saved),
		"tag_replacements", len(sum.Result.Replacements))

	entries := sum.Entries
	if f.listIncomplete {
		printIncomplete(app.Incomplete(entries, cfg.Threshold), cfg.Threshold)
		return
	}
	if f.filterIncomplete {
		entries = app.Incomplete(entries, cfg.Threshold)
	}
	if err := writeOutputs(entries, f, logger); err != nil {
		logger.Error("pdftagger.export_failed", "error", err)
	}
	if f.exportDir != "" {
		stats, err := export.ToFolder(entries, f.exportDir, f.exportPattern, logger)
		if err != nil {
			logger.Error("pdftagger.export_failed", "dir", f.exportDir, "error", err)
		} else if stats.Failed > 0 {
			logger.Warn("pdftagger.export_partial", "dir", f.exportDir, "written", stats.Written, "failed", stats.Failed)
		}
	}
}

func newLogger(debug int) *slog.Logger {
	level := slog.LevelInfo
	switch debug {
	case 0:
		level = slog.LevelError
	case 2:
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if isatty.IsTerminal(os.Stderr.Fd()) {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

func flagsSet() map[string]bool {
	set := map[string]bool{}
	flag.Visit(func(fl *flag.Flag) { set[fl.Name] = true })
	return set
}

// applyFlags lets explicitly set flags override the environment.
func applyFlags(cfg *common.Config, f flags, set map[string]bool) {
	if f.ocrMode != "" {
		cfg.OCR.Mode = strings.ToLower(f.ocrMode)
	}
	if f.ocrLang != "" {
		cfg.OCR.Languages = f.ocrLang
	}
	if f.budget > 0 {
		cfg.Budget.TokenLimit = f.budget
	}
	if f.modelTextShort != "" {
		cfg.Models.TextShort = f.modelTextShort
	}
	if f.modelTextLong != "" {
		cfg.Models.TextLong = f.modelTextLong
	}
	if f.modelImage != "" {
		cfg.Models.Image = f.modelImage
	}
	if f.modelTags != "" {
		cfg.Models.Tags = f.modelTags
	}
	if set["cache"] {
		cfg.Cache.Enabled = f.cache
	}
	if f.cacheTTL > 0 {
		cfg.Cache.TTL = f.cacheTTL
	}
	if f.cacheDir != "" {
		cfg.Cache.Dir = f.cacheDir
	}
	if f.redis != "" {
		cfg.Cache.RedisURL = f.redis
	}
	if f.db != "" {
		cfg.Database.DSN = f.db
	}
	if f.threshold >= 0 {
		cfg.Threshold = f.threshold
	}
}

func hasGCSInput(inputs []string) bool {
	for _, in := range inputs {
		if strings.HasPrefix(in, constants.GCSPrefix) {
			return true
		}
	}
	return false
}

func failedDocs(sum app.Summary) int {
	seen := map[string]bool{}
	for _, docs := range sum.Result.Tally.FailedDocs {
		for _, d := range docs {
			seen[d] = true
		}
	}
	return len(seen)
}

func writeOutputs(entries []export.Entry, f flags, logger *slog.Logger) error {
	if f.jsonOut == "" && f.xlsxOut == "" && f.exportDir == "" {
		return export.WriteJSON(os.Stdout, entries)
	}
	if f.jsonOut != "" {
		if err := writeFile(f.jsonOut, func(w io.Writer) error { return export.WriteJSON(w, entries) }); err != nil {
			return err
		}
		logger.Info("pdftagger.json.written", "output", f.jsonOut, "records", len(entries))
	}
	if f.xlsxOut != "" {
		if err := writeFile(f.xlsxOut, func(w io.Writer) error { return export.WriteXLSX(w, entries, logger) }); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(out); err != nil {
		_ = out.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return out.Close()
}

func printIncomplete(entries []export.Entry, threshold int) {
	for _, e := range entries {
		fmt.Printf("%s\t%s\t%.1f\n", constants.StatusFor(e.Record.HasSufficientInformation(threshold)), e.Path, e.Record.ConfidenceIndex())
	}
}

// listStored prints the incomplete records of the store when no inputs are given.
func listStored(ctx context.Context, cfg *common.Config, logger *slog.Logger) error {
	if cfg.Database.DSN == "" {
		return common.NewAppError("CONFIG_ERROR", "-list-incomplete without inputs needs -db", common.ErrInvalidInput)
	}
	store, err := repository.Open(ctx, app.StoreConfig(cfg.Database), logger)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		return err
	}
	recs, err := store.ListIncomplete(ctx, cfg.Threshold)
	if err != nil {
		return err
	}
	entries := make([]export.Entry, len(recs))
	for i, r := range recs {
		entries[i] = export.Entry{Path: r.Path, BaseDir: r.BaseDir, Record: r.Record}
	}
	printIncomplete(entries, cfg.Threshold)
	return nil
}
