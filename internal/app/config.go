package app

import (
	"github.com/joseph-ayodele/pdf-tagger/internal/budget"
	"github.com/joseph-ayodele/pdf-tagger/internal/candidates"
	"github.com/joseph-ayodele/pdf-tagger/internal/common"
	"github.com/joseph-ayodele/pdf-tagger/internal/ocr"
	"github.com/joseph-ayodele/pdf-tagger/internal/repository"
)

// BudgetConfig maps the budget settings onto the allocator.
func BudgetConfig(c common.BudgetConfig) budget.Config {
	d := budget.DefaultConfig()
	d.Limit = c.TokenLimit
	d.PriorityPages = c.PriorityPages
	d.Cost = budget.CostModel{
		MaxEdge: c.MaxEdge,
		Tile:    c.Tile,
		Base:    c.BaseCost,
		PerTile: c.PerTileCost,
	}
	return d
}

func CandidatesConfig(c common.CandidatesConfig) candidates.Config {
	return candidates.Config{
		ScanCoverage:        c.ScanCoverage,
		SmallImageCoverage:  c.SmallImageCoverage,
		GroupSmallImages:    c.GroupSmallImages,
		MinEdgeMM:           c.MinEdgeMM,
		SparseTextWords:     c.SparseTextWords,
		MinFigurePrimitives: c.MinFigurePrimitives,
		MaxFigureWords:      c.MaxFigureWords,
	}
}

// OCRConfig maps the OCR settings. An unknown mode falls back to auto;
// Validate rejects it earlier.
func OCRConfig(c common.OCRConfig) ocr.Config {
	mode, err := ocr.ParseMode(c.Mode)
	if err != nil {
		mode = ocr.ModeAuto
	}
	return ocr.Config{
		Mode:        mode,
		Lang:        c.Languages,
		DPI:         c.DPI,
		Tesseract:   c.Tesseract,
		Pdftoppm:    c.Pdftoppm,
		TessdataDir: c.TessdataDir,
	}.WithDefaults()
}

func StoreConfig(c common.DatabaseConfig) repository.Config {
	return repository.Config{
		DSN:             c.DSN,
		MaxConns:        c.MaxConns,
		MinConns:        c.MinConns,
		MaxConnLifetime: c.MaxConnLifetime,
		MaxConnIdleTime: c.MaxConnIdleTime,
		DialTimeout:     c.DialTimeout,
	}
}
