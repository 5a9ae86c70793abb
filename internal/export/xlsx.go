package export

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

const sheet = "Documents"

var headers = []string{
	"File",
	"Folder",
	"Title",
	"Title Conf.",
	"Creation Date",
	"Date Conf.",
	"Summary",
	"Summary Conf.",
	"Creator",
	"Creator Conf.",
	"Importance",
	"Importance Conf.",
	"Tags",
	"Confidence Index",
}

// WriteXLSX writes one row per entry to a "Documents" sheet.
func WriteXLSX(w io.Writer, entries []Entry, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("xlsx sheet: %w", err)
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, e := range entries {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		r := e.Record
		write(1, filepath.Base(e.Path))
		write(2, e.Rel())
		write(3, r.Title)
		write(4, r.TitleConfidence)
		write(5, r.CreationDateString())
		write(6, r.CreationDateConfidence)
		write(7, truncate(r.Summary, 500))
		write(8, r.SummaryConfidence)
		write(9, r.Creator)
		write(10, r.CreatorConfidence)
		if r.Importance != nil {
			write(11, *r.Importance)
		}
		write(12, r.ImportanceConfidence)
		write(13, strings.Join(r.TagNames(), ", "))
		write(14, r.ConfidenceIndex())
	}

	_ = f.SetColWidth(sheet, "A", "A", 36) // file
	_ = f.SetColWidth(sheet, "B", "B", 28) // folder
	_ = f.SetColWidth(sheet, "C", "C", 40) // title
	_ = f.SetColWidth(sheet, "E", "E", 14) // date
	_ = f.SetColWidth(sheet, "G", "G", 60) // summary
	_ = f.SetColWidth(sheet, "M", "M", 40) // tags
	_ = f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	logger.Info("export.xlsx.ok", "rows", len(entries), "elapsed_ms", time.Since(start).Milliseconds())
	return nil
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
