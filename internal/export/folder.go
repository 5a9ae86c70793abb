package export

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/joseph-ayodele/pdf-tagger/internal/common"
	"github.com/joseph-ayodele/pdf-tagger/internal/metadata"
)

// DefaultPattern names an exported copy after its creation date and title.
const DefaultPattern = "%Y-%m-%d-{TITLE}.pdf"

// FolderStats counts the outcome of ToFolder.
type FolderStats struct {
	Written int
	Failed  int
}

// ToFolder copies every entry below dir, keeping its folder relative to the
// base directory. Each copy is named by TargetName and carries the record in
// its info dictionary. A failing document is logged and counted.
func ToFolder(entries []Entry, dir, pattern string, logger *slog.Logger) (FolderStats, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var stats FolderStats
	if strings.TrimSpace(dir) == "" {
		return stats, common.NewAppError("EXPORT_ERROR", "export folder is required", common.ErrInvalidInput)
	}
	if pattern == "" {
		pattern = DefaultPattern
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return stats, fmt.Errorf("create %s: %w", dir, err)
	}

	used := make(map[string]int, len(entries))
	for _, e := range entries {
		target, err := exportOne(e, dir, pattern, used)
		if err != nil {
			stats.Failed++
			logger.Error("export.folder.failed", "doc", e.Path, "error", err)
			continue
		}
		stats.Written++
		logger.Info("export.folder.written", "doc", e.Path, "target", target)
	}
	logger.Info("export.folder.done", "dir", dir, "written", stats.Written, "failed", stats.Failed)
	return stats, nil
}

func exportOne(e Entry, dir, pattern string, used map[string]int) (string, error) {
	fi, err := os.Stat(e.Path)
	if err != nil {
		return "", err
	}
	folder := filepath.Join(dir, filepath.FromSlash(exportRel(e.Rel())))
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", folder, err)
	}
	target := uniqueTarget(filepath.Join(folder, e.TargetName(pattern, fi.ModTime())), used)
	if err := writeTagged(e.Path, target, e.Record); err != nil {
		return "", err
	}
	return target, nil
}

// exportRel drops leading parent references so a copy never escapes dir.
func exportRel(rel string) string {
	for strings.HasPrefix(rel, "../") {
		rel = rel[3:]
	}
	if rel == ".." || rel == "." {
		return ""
	}
	return rel
}

// uniqueTarget suffixes a name already handed out in this export.
func uniqueTarget(path string, used map[string]int) string {
	n := used[path]
	used[path] = n + 1
	if n == 0 {
		return path
	}
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "-" + strconv.Itoa(n+1) + ext
}

// TargetName renders pattern for the entry. Date directives take the
// record's creation date, or modTime when the record has none. {TITLE} is
// the title made safe for a file name, or the source file name without
// extension.
func (e Entry) TargetName(pattern string, modTime time.Time) string {
	date := modTime
	title := ""
	if e.Record != nil {
		if !e.Record.CreationDate.IsZero() {
			date = e.Record.CreationDate
		}
		title = e.Record.Title
	}
	title = safeName(title)
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(e.Path), filepath.Ext(e.Path))
	}
	name := strings.ReplaceAll(formatDate(pattern, date), "{TITLE}", title)
	if !strings.EqualFold(filepath.Ext(name), ".pdf") {
		name += ".pdf"
	}
	return name
}

// formatDate expands %Y %y %m %d %H %M %S and %%. Other directives stay.
func formatDate(pattern string, t time.Time) string {
	var b strings.Builder
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		if c != '%' || i+1 == len(pattern) {
			b.WriteByte(c)
			continue
		}
		i++
		switch pattern[i] {
		case 'Y':
			fmt.Fprintf(&b, "%04d", t.Year())
		case 'y':
			fmt.Fprintf(&b, "%02d", t.Year()%100)
		case 'm':
			fmt.Fprintf(&b, "%02d", int(t.Month()))
		case 'd':
			fmt.Fprintf(&b, "%02d", t.Day())
		case 'H':
			fmt.Fprintf(&b, "%02d", t.Hour())
		case 'M':
			fmt.Fprintf(&b, "%02d", t.Minute())
		case 'S':
			fmt.Fprintf(&b, "%02d", t.Second())
		case '%':
			b.WriteByte('%')
		default:
			b.WriteByte('%')
			b.WriteByte(pattern[i])
		}
	}
	return b.String()
}

func safeName(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		if r < 0x20 {
			return -1
		}
		return r
	}, s)
	return strings.Trim(strings.TrimSpace(s), ".")
}

// writeTagged writes src to dst with the record in the info dictionary.
// pdfcpu stamps CreationDate with the write time, so the record's date is
// appended as an incremental update of the info dictionary.
func writeTagged(src, dst string, rec *metadata.Record) error {
	if rec == nil {
		rec = metadata.New()
	}
	props := map[string]string{}
	if rec.Title != "" {
		props["Title"] = rec.Title
	}
	if rec.Summary != "" {
		props["Subject"] = rec.Summary
	}
	if kw := rec.KeywordsString(); kw != "" {
		props["Keywords"] = kw
	}
	if err := api.AddPropertiesFile(src, dst, props, pdfConf()); err != nil {
		return fmt.Errorf("write %s: %w", dst, err)
	}
	if rec.CreationDate.IsZero() {
		return nil
	}
	if err := stampCreationDate(dst, rec.CreationDate); err != nil {
		return fmt.Errorf("date %s: %w", dst, err)
	}
	return nil
}

func stampCreationDate(path string, t time.Time) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	defer f.Close()

	conf := pdfConf()
	conf.Cmd = model.ADDPROPERTIES
	ctx, err := api.ReadAndValidate(f, conf)
	if err != nil {
		return err
	}
	// PDF 2.0 files written by pdfcpu have no info dictionary
	if ctx.Info == nil {
		return nil
	}
	d, err := ctx.DereferenceDict(*ctx.Info)
	if err != nil || d == nil {
		return err
	}
	d.Update("CreationDate", types.StringLiteral(types.DateString(t.UTC())))
	ctx.Write.Increment = true
	ctx.Write.Offset = ctx.Read.FileSize
	ctx.Write.IncrementWithObjNr(ctx.Info.ObjectNumber.Value())
	return api.WriteIncr(ctx, f, conf)
}

func pdfConf() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}
