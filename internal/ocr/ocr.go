// Package ocr recovers text for pages that carry no embedded text layer.
package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/pdf-tagger/internal/runner"
)

// Mode controls whether OCR runs.
type Mode string

const (
	ModeAuto  Mode = "auto"  // on when tesseract is installed
	ModeForce Mode = "force" // on, warn when tesseract is missing
	ModeOff   Mode = "off"
)

// ParseMode accepts auto, force and off (case-insensitive); empty is auto.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeAuto, nil
	case ModeAuto, ModeForce, ModeOff:
		return m, nil
	}
	return "", fmt.Errorf("invalid ocr mode %q (want auto|force|off)", s)
}

// DefaultLanguage is used when no language is configured.
const DefaultLanguage = "eng"

// NormalizeLanguages turns "deu, eng" or "deu eng" into tesseract's "deu+eng".
func NormalizeLanguages(s string) string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == '+' || r == ';' || r == ' ' || r == '\t'
	})
	if len(fields) == 0 {
		return DefaultLanguage
	}
	return strings.Join(fields, "+")
}

// Engine turns a page image into text.
type Engine interface {
	ExtractText(ctx context.Context, png []byte) (string, error)
}

type Config struct {
	Mode        Mode
	Lang        string
	DPI         int    // render resolution, default 300
	Tesseract   string // binary name or absolute path; if empty -> "tesseract"
	Pdftoppm    string // binary name or absolute path; if empty -> "pdftoppm"
	TessdataDir string
	PSM         int // e.g., 6 is good for uniform block of text
	OEM         int // 1 = LSTM; leave 0 to use default
	Workers     int // pages OCR'd in parallel per document, default 2
}

func (c Config) WithDefaults() Config {
	if c.Mode == "" {
		c.Mode = ModeAuto
	}
	c.Lang = NormalizeLanguages(c.Lang)
	if c.DPI <= 0 {
		c.DPI = 300
	}
	if c.Tesseract == "" {
		c.Tesseract = "tesseract"
	}
	if c.Pdftoppm == "" {
		c.Pdftoppm = "pdftoppm"
	}
	if c.Workers <= 0 {
		c.Workers = 2
	}
	return c
}

// Enabled resolves the mode against the installed binaries.
func Enabled(cfg Config, logger *slog.Logger) bool {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.WithDefaults()
	switch cfg.Mode {
	case ModeOff:
		return false
	case ModeForce:
		if !runner.Available(cfg.Tesseract) {
			logger.Warn("ocr.tesseract.missing", "mode", string(cfg.Mode), "binary", cfg.Tesseract)
		}
		return true
	default:
		ok := runner.Available(cfg.Tesseract)
		logger.Debug("ocr.auto", "enabled", ok, "binary", cfg.Tesseract)
		return ok
	}
}
