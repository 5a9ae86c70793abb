package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/pdf-tagger/constants"
	"github.com/joseph-ayodele/pdf-tagger/internal/common"
	"github.com/joseph-ayodele/pdf-tagger/internal/llm"
	"github.com/joseph-ayodele/pdf-tagger/internal/metadata"
)

// Replacement maps a tag onto its normalized form; an empty Replacement drops it.
type Replacement struct {
	Original    string  `json:"original"`
	Replacement *string `json:"replacement"`
}

// TagConfig controls the collection-wide tag normalization.
type TagConfig struct {
	Model       string
	Temperature float64 // default 0.3
	Language    string
	BaseDir     string // fixtures and logs name the collection after this folder
}

// TagNormalizer asks a model to unify the tags of all records.
type TagNormalizer struct {
	Cfg       TagConfig
	Transport llm.Transport
	Logger    *slog.Logger
}

func NewTagNormalizer(cfg TagConfig, tr llm.Transport, logger *slog.Logger) *TagNormalizer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.3
	}
	return &TagNormalizer{Cfg: cfg, Transport: tr, Logger: logger}
}

// Normalize rewrites the tags of every record. It returns the applied
// mapping; records are left alone when the call or the reply fails.
func (n *TagNormalizer) Normalize(ctx context.Context, records []*metadata.Record) (map[string]string, error) {
	if n.Cfg.Model == "" {
		return nil, nil
	}
	tags := metadata.UniqueTags(records...)
	if len(tags) == 0 {
		n.Logger.Info("tags.skip", "reason", "no tags")
		return nil, nil
	}

	reply, usage, err := n.Transport.Chat(ctx, llm.ChatRequest{
		Model:       n.Cfg.Model,
		Messages:    llm.BuildTagMessages(tags, n.Cfg.Language),
		JSONMode:    true,
		Temperature: n.Cfg.Temperature,
		Doc:         filepath.Join(n.Cfg.BaseDir, "collection"),
		Task:        constants.TaskTags,
	})
	if err != nil {
		return nil, err
	}
	repl, err := ParseReplacements(reply)
	if err != nil {
		n.Logger.Error("tags.reply.invalid", "error", err, "reply", llm.Truncate(reply, 500))
		return nil, err
	}
	for _, r := range records {
		r.ApplyReplacements(repl)
	}
	n.Logger.Info("tags.normalized", "unique", len(tags), "replacements", len(repl), "cost", usage.Cost)
	return repl, nil
}

// ParseReplacements decodes a list of {original, replacement} objects, bare
// or wrapped as {"replacements": [...]}. A null replacement drops the tag.
func ParseReplacements(reply string) (map[string]string, error) {
	raw := []byte(llm.GuardJSONValue(reply))
	if err := llm.ValidateJSONAgainstSchema(llm.BuildTagReplacementSchema(), raw); err != nil {
		return nil, fmt.Errorf("%w: tags reply: %v", common.ErrTransport, err)
	}
	var list []Replacement
	if strings.HasPrefix(strings.TrimSpace(string(raw)), "[") {
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("%w: tags reply: %v", common.ErrTransport, err)
		}
	} else {
		var wrapped struct {
			Replacements []Replacement `json:"replacements"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return nil, fmt.Errorf("%w: tags reply: %v", common.ErrTransport, err)
		}
		list = wrapped.Replacements
	}
	out := make(map[string]string, len(list))
	for _, r := range list {
		if r.Original == "" {
			continue
		}
		if r.Replacement == nil {
			out[r.Original] = ""
			continue
		}
		out[r.Original] = strings.TrimSpace(*r.Replacement)
	}
	return out, nil
}
