//go:build !gosseract

package ocr

import (
	"log/slog"

	"github.com/joseph-ayodele/pdf-tagger/internal/runner"
)

// NewEngine returns the exec-based tesseract engine. Build with -tags
// gosseract to use libtesseract in-process instead.
func NewEngine(cfg Config, r runner.Runner, logger *slog.Logger) Engine {
	return NewTesseract(cfg, r, logger)
}
