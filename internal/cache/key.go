package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/joseph-ayodele/pdf-tagger/internal/llm"
)

// Call kinds. Requests without a task are filed under these buckets.
const (
	KindChat   = "chat"
	KindVision = "vision"
)

type keyPart struct {
	Type   string `json:"type"`
	Role   string `json:"role,omitempty"`
	Text   string `json:"text,omitempty"`
	SHA256 string `json:"sha256,omitempty"`
}

type keyDoc struct {
	Kind        string    `json:"kind"`
	Model       string    `json:"model"`
	JSONMode    bool      `json:"json_mode,omitempty"`
	Parts       []keyPart `json:"parts"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

func hashHex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func key(d keyDoc) string {
	b, _ := json.Marshal(d)
	return hashHex(b)
}

// ChatKey is the cache key of a text-only request.
func ChatKey(req llm.ChatRequest) string {
	parts := make([]keyPart, len(req.Messages))
	for i, m := range req.Messages {
		parts[i] = keyPart{Type: "message", Role: m.Role, Text: m.Content}
	}
	return key(keyDoc{
		Kind:        KindChat,
		Model:       req.Model,
		JSONMode:    req.JSONMode,
		Parts:       parts,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
}

// VisionKey is the cache key of a multimodal request. Images enter the key
// by content hash.
func VisionKey(req llm.VisionRequest) string {
	parts := make([]keyPart, len(req.Parts))
	for i, p := range req.Parts {
		if p.Kind == llm.PartImage {
			parts[i] = keyPart{Type: "image", SHA256: hashHex(p.Image)}
			continue
		}
		parts[i] = keyPart{Type: "text", Text: p.Text}
	}
	return key(keyDoc{
		Kind:        KindVision,
		Model:       req.Model,
		Parts:       parts,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
}
