// Package pipeline runs the per-document OCR, image and text stages and the
// collection-wide tag normalization.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/joseph-ayodele/pdf-tagger/internal/layout"
	"github.com/joseph-ayodele/pdf-tagger/internal/metadata"
)

// Document is one PDF moving through the pipeline. Its Record is only
// touched by the document's own jobs, which the scheduler serializes.
type Document struct {
	Path   string
	Rel    string // path relative to the base directory, used for folder tags
	Record *metadata.Record

	once   sync.Once
	layout *layout.Document
	src    layout.Source
	err    error
}

// NewDocument prepares path with its local evidence applied: the filename
// and the folder path. A nil record starts empty.
func NewDocument(path, rel string, rec *metadata.Record) *Document {
	if rec == nil {
		rec = metadata.New()
	}
	d := &Document{Path: path, Rel: rel, Record: rec}
	rec.ApplyFilename(filepath.Base(path))
	rec.ApplyRelativePath(d.Folder())
	return d
}

// Layout opens and reads the document once. The info dictionary is merged
// into the record on first load.
func (d *Document) Layout(ctx context.Context, open layout.Opener, logger *slog.Logger) (*layout.Document, error) {
	d.once.Do(func() {
		src, err := open(d.Path)
		if err != nil {
			d.err = fmt.Errorf("open %s: %w", d.Path, err)
			return
		}
		d.src = src
		d.layout = layout.Load(ctx, d.Path, src, logger)
		info := d.layout.Info
		d.Record.ApplyInfo(metadata.DocumentInfo{
			Title:        info.Title,
			Subject:      info.Subject,
			Keywords:     info.Keywords,
			Author:       info.Author,
			CreationDate: info.CreationDate,
		})
	})
	return d.layout, d.err
}

// Renderer returns the opened source. Layout must have succeeded first.
func (d *Document) Renderer() layout.Renderer { return d.src }

// Close releases the opened source.
func (d *Document) Close() error {
	if d.src == nil {
		return nil
	}
	return d.src.Close()
}

// Name is the base name used in logs.
func (d *Document) Name() string { return filepath.Base(d.Path) }

// Folder is the relative folder of the document, empty at the base.
func (d *Document) Folder() string {
	dir := filepath.Dir(d.Rel)
	if d.Rel == "" || dir == "." {
		return ""
	}
	return dir
}
