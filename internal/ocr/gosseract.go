//go:build gosseract

package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// Gosseract runs tesseract in-process through libtesseract.
type Gosseract struct {
	cfg Config
}

func NewGosseract(cfg Config) *Gosseract {
	return &Gosseract{cfg: cfg.WithDefaults()}
}

func (g *Gosseract) ExtractText(_ context.Context, png []byte) (string, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if g.cfg.TessdataDir != "" {
		if err := client.SetTessdataPrefix(g.cfg.TessdataDir); err != nil {
			return "", fmt.Errorf("tessdata: %w", err)
		}
	}
	if err := client.SetLanguage(splitLangs(g.cfg.Lang)...); err != nil {
		return "", fmt.Errorf("set language: %w", err)
	}
	if g.cfg.PSM > 0 {
		if err := client.SetPageSegMode(gosseract.PageSegMode(g.cfg.PSM)); err != nil {
			return "", fmt.Errorf("set psm: %w", err)
		}
	}
	if err := client.SetImageFromBytes(png); err != nil {
		return "", fmt.Errorf("failed to set image: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract OCR failed: %w", err)
	}
	return Normalize(text), nil
}

func splitLangs(s string) []string {
	return strings.Split(NormalizeLanguages(s), "+")
}
