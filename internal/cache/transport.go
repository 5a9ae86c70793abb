package cache

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/joseph-ayodele/pdf-tagger/constants"
	"github.com/joseph-ayodele/pdf-tagger/internal/common"
	"github.com/joseph-ayodele/pdf-tagger/internal/llm"
)

// Response is what a cache entry holds.
type Response struct {
	Response string    `json:"response"`
	Usage    llm.Usage `json:"usage"`
}

// Transport consults a Store before forwarding to next. A nil store disables
// caching entirely.
type Transport struct {
	next   llm.Transport
	store  Store
	logger *slog.Logger
}

var _ llm.Transport = (*Transport)(nil)

func NewTransport(next llm.Transport, store Store, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transport{next: next, store: store, logger: logger}
}

func (t *Transport) Chat(ctx context.Context, req llm.ChatRequest) (string, llm.Usage, error) {
	if t.store == nil {
		return t.next.Chat(ctx, req)
	}
	k, b := ChatKey(req), bucket(KindChat, req.Task)
	if text, u, ok := t.lookup(ctx, b, k, req.Doc); ok {
		return text, u, nil
	}
	text, u, err := t.next.Chat(ctx, req)
	if err == nil {
		t.save(ctx, b, k, req.Doc, text, u)
	}
	return text, u, err
}

func (t *Transport) Vision(ctx context.Context, req llm.VisionRequest) (string, llm.Usage, error) {
	if t.store == nil {
		return t.next.Vision(ctx, req)
	}
	k, b := VisionKey(req), bucket(KindVision, req.Task)
	if text, u, ok := t.lookup(ctx, b, k, req.Doc); ok {
		return text, u, nil
	}
	text, u, err := t.next.Vision(ctx, req)
	if err == nil {
		t.save(ctx, b, k, req.Doc, text, u)
	}
	return text, u, err
}

// bucket files entries by task, falling back to the call kind.
func bucket(kind string, task constants.Task) string {
	if task != "" {
		return string(task)
	}
	return kind
}

// lookup returns a cached reply. The stored cost is booked as saved and the
// returned usage costs nothing.
func (t *Transport) lookup(ctx context.Context, bucket, key, doc string) (string, llm.Usage, bool) {
	e, ok := t.store.Get(ctx, bucket, key)
	if !ok {
		t.logger.Debug("cache.miss", "bucket", bucket, "key", key, "doc", doc)
		return "", llm.Usage{}, false
	}
	var r Response
	if err := json.Unmarshal(e.Data, &r); err != nil {
		t.logger.Warn("cache.decode_error", "bucket", bucket, "key", key, "error", err)
		return "", llm.Usage{}, false
	}
	if run, ok := common.RunFromContext(ctx); ok {
		run.AddSaved(r.Usage.Cost)
	}
	t.logger.Info("cache.hit", "bucket", bucket, "key", key, "doc", doc, "saved", r.Usage.Cost)
	u := r.Usage
	u.Cost = 0
	return r.Response, u, true
}

func (t *Transport) save(ctx context.Context, bucket, key, doc, text string, u llm.Usage) {
	if text == "" {
		return
	}
	b, err := json.Marshal(Response{Response: text, Usage: u})
	if err != nil {
		return
	}
	if err := t.store.Set(ctx, bucket, key, b); err != nil {
		t.logger.Warn("cache.write_error", "bucket", bucket, "doc", doc, "error", err)
	}
}
