// Package mock answers TEST/* models from JSON fixtures on disk.
//
// For a document "scan.pdf" and task "text" the n-th call of the run looks up,
// in order:
//
//	scan.text.<n>.json
//	scan.text.json   (only for n == 0)
//	scan.json
//
// A fixture holds {"response": ..., "usage": {...}, "meta": {...}}. Object or
// list responses are re-encoded as JSON text. When no fixture exists the reply
// is empty and costs nothing.
package mock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/pdf-tagger/internal/common"
	"github.com/joseph-ayodele/pdf-tagger/internal/llm"
)

var _ llm.Transport = (*Provider)(nil)

type fixture struct {
	Response json.RawMessage `json:"response"`
	Usage    llm.Usage       `json:"usage"`
	Meta     map[string]any  `json:"meta"`
}

// Provider reads fixtures from Dir, or from the document's own folder when
// Dir is empty.
type Provider struct {
	Dir    string
	logger *slog.Logger
}

func New(dir string, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{Dir: dir, logger: logger}
}

func (p *Provider) Chat(ctx context.Context, req llm.ChatRequest) (string, llm.Usage, error) {
	return p.answer(ctx, req.Doc, string(req.Task))
}

func (p *Provider) Vision(ctx context.Context, req llm.VisionRequest) (string, llm.Usage, error) {
	return p.answer(ctx, req.Doc, string(req.Task))
}

// Candidates lists the fixture paths tried for call n, in order.
func (p *Provider) Candidates(doc, task string, n int) []string {
	stem := strings.TrimSuffix(filepath.Base(doc), filepath.Ext(doc))
	if stem == "" || stem == "." {
		stem = "document"
	}
	dir := p.Dir
	if dir == "" {
		dir = filepath.Dir(doc)
	}
	out := []string{filepath.Join(dir, fmt.Sprintf("%s.%s.%d.json", stem, task, n))}
	if n == 0 {
		out = append(out, filepath.Join(dir, fmt.Sprintf("%s.%s.json", stem, task)))
	}
	return append(out, filepath.Join(dir, stem+".json"))
}

func (p *Provider) answer(ctx context.Context, doc, task string) (string, llm.Usage, error) {
	n := 0
	if run, ok := common.RunFromContext(ctx); ok {
		n = run.NextCall(doc, task)
	}
	for _, path := range p.Candidates(doc, task, n) {
		b, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return "", llm.Usage{}, fmt.Errorf("%w: read fixture %s: %v", common.ErrTransport, path, err)
		}
		var fx fixture
		if err := json.Unmarshal(b, &fx); err != nil {
			return "", llm.Usage{}, fmt.Errorf("%w: decode fixture %s: %v", common.ErrTransport, path, err)
		}
		p.logger.Debug("llm.mock.fixture", "doc", doc, "task", task, "call", n, "path", path)
		return responseText(fx.Response), fx.Usage, nil
	}
	p.logger.Debug("llm.mock.no_fixture", "doc", doc, "task", task, "call", n)
	return "", llm.Usage{}, nil
}

func responseText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	// objects and lists are passed on as JSON text
	return string(raw)
}
