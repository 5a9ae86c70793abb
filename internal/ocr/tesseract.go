package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/joseph-ayodele/pdf-tagger/internal/runner"
)

// Tesseract runs the tesseract binary through a Runner.
type Tesseract struct {
	cfg    Config
	runner runner.Runner
	logger *slog.Logger
}

func NewTesseract(cfg Config, r runner.Runner, logger *slog.Logger) *Tesseract {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tesseract{cfg: cfg.WithDefaults(), runner: r, logger: logger}
}

// Args builds the tesseract command line for an input file.
func (t *Tesseract) Args(in string) []string {
	// tesseract <file> stdout -l <lang> [--psm N] [--oem N] [--tessdata-dir D]
	args := []string{in, "stdout", "-l", t.cfg.Lang}
	if t.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(t.cfg.PSM))
	}
	if t.cfg.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(t.cfg.OEM))
	}
	if t.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", t.cfg.TessdataDir)
	}
	return args
}

func (t *Tesseract) ExtractText(ctx context.Context, png []byte) (string, error) {
	f, err := os.CreateTemp("", "pt-ocr-*.png")
	if err != nil {
		return "", err
	}
	defer func() { _ = os.Remove(f.Name()) }()
	if _, err := f.Write(png); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	out, errb, err := t.runner.Run(ctx, t.cfg.Tesseract, t.Args(f.Name())...)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, runner.Truncate(string(errb), 512))
	}
	return Normalize(reBoxNoise.ReplaceAllString(string(out), "")), nil
}
