package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/pdf-tagger/internal/common"
	"github.com/joseph-ayodele/pdf-tagger/internal/llm"
	"github.com/joseph-ayodele/pdf-tagger/internal/metadata"
)

// applyReply merges a model reply into rec. Unparseable text degrades to an
// empty object; a reply of the wrong shape is an error and leaves rec
// untouched.
func applyReply(rec *metadata.Record, reply, doc, source string, logger *slog.Logger) ([]string, error) {
	raw := []byte(llm.GuardJSON(reply))
	if err := llm.ValidateJSONAgainstSchema(llm.BuildRecordJSONSchema(), raw); err != nil {
		logger.Error("pipeline.reply.invalid", "doc", doc, "source", source, "error", err,
			"reply", llm.Truncate(reply, 500))
		return nil, fmt.Errorf("%w: %s reply: %v", common.ErrTransport, source, err)
	}
	m, err := llm.NormalizeReply(raw, source, logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrTransport, err)
	}

	// merge into a copy so a failing reply changes nothing
	next := rec.Clone()
	changed, err := next.MergeMap(m)
	if err != nil {
		logger.Error("pipeline.reply.merge_failed", "doc", doc, "source", source, "error", err)
		return nil, fmt.Errorf("%w: %s reply: %v", common.ErrTransport, source, err)
	}
	*rec = *next
	logger.Info("pipeline.record.updated", "doc", doc, "source", source, "changed", changed,
		"confidence_index", rec.ConfidenceIndex())
	return changed, nil
}
