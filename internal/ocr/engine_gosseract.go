//go:build gosseract

package ocr

import (
	"log/slog"

	"github.com/joseph-ayodele/pdf-tagger/internal/runner"
)

// NewEngine returns the in-process gosseract engine.
func NewEngine(cfg Config, _ runner.Runner, logger *slog.Logger) Engine {
	if logger != nil {
		logger.Debug("ocr.engine", "engine", "gosseract")
	}
	return NewGosseract(cfg)
}
