// Package ingest turns command line inputs (PDFs, folders, gs:// URIs and
// JSON record files) into the list of documents to process.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/pdf-tagger/constants"
	"github.com/joseph-ayodele/pdf-tagger/internal/export"
	"github.com/joseph-ayodele/pdf-tagger/internal/metadata"
)

// Item is one document found in the inputs.
type Item struct {
	Path    string // absolute local path
	BaseDir string
	Record  *metadata.Record // set when imported from a JSON record file
}

// Rel is the path of the document relative to BaseDir.
func (i Item) Rel() string {
	if i.BaseDir == "" {
		return filepath.Base(i.Path)
	}
	rel, err := filepath.Rel(i.BaseDir, i.Path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.Base(i.Path)
	}
	return filepath.ToSlash(rel)
}

// Stats summarizes a collection.
type Stats struct {
	Scanned    uint32
	Matched    uint32
	Imported   uint32
	Downloaded uint32
	Failed     uint32
}

// Collector resolves inputs. BaseDir, when set, overrides the base folder
// derived from each input. GCS is required for gs:// inputs only.
type Collector struct {
	BaseDir    string
	SkipHidden bool
	GCS        *GCS
	Logger     *slog.Logger
}

func NewCollector(baseDir string, gcs *GCS, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{BaseDir: baseDir, SkipHidden: true, GCS: gcs, Logger: logger}
}

// Collect resolves every input in order. Documents named more than once
// are kept once; records imported for the same document are merged.
// Unreadable inputs are logged and counted, never fatal.
func (c *Collector) Collect(ctx context.Context, inputs []string) ([]Item, Stats, error) {
	var (
		stats Stats
		items []Item
		index = map[string]int{}
	)
	add := func(it Item) {
		if i, ok := index[it.Path]; ok {
			switch {
			case items[i].Record == nil:
				items[i].Record = it.Record
			case it.Record != nil:
				items[i].Record.Merge(it.Record)
			}
			return
		}
		index[it.Path] = len(items)
		items = append(items, it)
	}

	for _, in := range inputs {
		if err := ctx.Err(); err != nil {
			return items, stats, err
		}
		found, err := c.resolve(ctx, in, &stats)
		if err != nil {
			stats.Failed++
			c.Logger.Error("ingest.input_failed", "input", in, "error", err)
			continue
		}
		for _, it := range found {
			add(it)
		}
	}
	c.Logger.Info("ingest.collected", "documents", len(items), "scanned", stats.Scanned,
		"imported", stats.Imported, "downloaded", stats.Downloaded, "failed", stats.Failed)
	return items, stats, nil
}

func (c *Collector) resolve(ctx context.Context, in string, stats *Stats) ([]Item, error) {
	if strings.HasPrefix(in, constants.GCSPrefix) {
		if c.GCS == nil {
			return nil, fmt.Errorf("no cloud storage client for %s", in)
		}
		root, paths, err := c.GCS.Download(ctx, in)
		stats.Downloaded += uint32(len(paths))
		if err != nil {
			return nil, err
		}
		return c.items(root, paths), nil
	}

	abs, err := filepath.Abs(in)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		paths, walkStats, err := Walk(abs, c.SkipHidden, c.Logger)
		stats.Scanned += walkStats.Scanned
		stats.Matched += walkStats.Matched
		stats.Failed += walkStats.Failed
		if err != nil {
			return nil, err
		}
		return c.items(abs, paths), nil
	}

	stats.Scanned++
	switch constants.NormalizeExt(filepath.Ext(abs)) {
	case constants.ExtPDF:
		stats.Matched++
		return c.items(filepath.Dir(abs), []string{abs}), nil
	case constants.ExtJSON:
		return c.importJSON(abs, stats)
	default:
		return nil, fmt.Errorf("unsupported input %s", in)
	}
}

func (c *Collector) items(base string, paths []string) []Item {
	if c.BaseDir != "" {
		base = c.BaseDir
	}
	out := make([]Item, len(paths))
	for i, p := range paths {
		out[i] = Item{Path: p, BaseDir: base}
	}
	return out
}

func (c *Collector) importJSON(path string, stats *Stats) ([]Item, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	entries, err := export.ReadJSON(f)
	if err != nil {
		return nil, err
	}
	var out []Item
	for _, e := range entries {
		if _, err := os.Stat(e.Path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				c.Logger.Error("ingest.json.missing_file", "source", path, "doc", e.Path)
			} else {
				c.Logger.Error("ingest.json.stat_failed", "source", path, "doc", e.Path, "error", err)
			}
			stats.Failed++
			continue
		}
		base := e.BaseDir
		if c.BaseDir != "" {
			base = c.BaseDir
		}
		out = append(out, Item{Path: e.Path, BaseDir: base, Record: e.Record})
		stats.Imported++
	}
	c.Logger.Info("ingest.json.imported", "source", path, "records", len(out))
	return out, nil
}
