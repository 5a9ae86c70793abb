package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joseph-ayodele/pdf-tagger/internal/app"
	"github.com/joseph-ayodele/pdf-tagger/internal/common"
	"github.com/joseph-ayodele/pdf-tagger/internal/layout"
	"github.com/joseph-ayodele/pdf-tagger/internal/ocr"
	"github.com/joseph-ayodele/pdf-tagger/internal/pipeline"
	"github.com/joseph-ayodele/pdf-tagger/internal/runner"
)

func main() {
	lang := flag.String("lang", "", "tesseract languages, e.g. deu+eng")
	dpi := flag.Int("dpi", 0, "render resolution for OCR")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if flag.NArg() != 1 {
		logger.Error("usage", "cmd", "runocr [-lang deu+eng] [-dpi 300] <file.pdf>")
		os.Exit(2)
	}
	path := flag.Arg(0)

	if err := common.LoadDotEnv(".env"); err != nil {
		logger.Error("runocr.config_failed", "error", err)
		os.Exit(1)
	}
	cfg := common.LoadConfig()
	cfg.OCR.Mode = string(ocr.ModeForce)
	if *lang != "" {
		cfg.OCR.Languages = *lang
	}
	if *dpi > 0 {
		cfg.OCR.DPI = *dpi
	}
	ocrCfg := app.OCRConfig(cfg.OCR)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	run := runner.New(logger)
	open := layout.OpenPDF(layout.Config{Pdftotext: cfg.OCR.Pdftotext, Pdftoppm: cfg.OCR.Pdftoppm}, run)
	stage := pipeline.NewOCRStage(open, ocr.NewEngine(ocrCfg, run, logger), ocrCfg, run, logger)

	d := pipeline.NewDocument(path, "", nil)
	defer d.Close()

	start := time.Now()
	if err := stage.Run(ctx, d); err != nil {
		logger.Error("runocr.failed", "doc", path, "error", err, "duration_ms", time.Since(start).Milliseconds())
		os.Exit(1)
	}
	doc, _ := d.Layout(ctx, open, logger)
	for _, p := range doc.Pages {
		fmt.Printf("--- page %d (%d words)\n%s\n", p.Number, p.Words, p.Text)
	}
	logger.Info("runocr.ok",
		"doc", path,
		"pages", len(doc.Pages),
		"lang", ocrCfg.Lang,
		"duration_ms", time.Since(start).Milliseconds())
}
