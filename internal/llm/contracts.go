package llm

import (
	"context"

	"github.com/joseph-ayodele/pdf-tagger/constants"
)

// PartKind distinguishes text from image parts.
type PartKind string

const (
	PartText  PartKind = "text"
	PartImage PartKind = "image"
)

// Part is one element of an ordered multimodal request.
type Part struct {
	Kind  PartKind `json:"kind"`
	Page  int      `json:"page,omitempty"`
	Text  string   `json:"text,omitempty"`
	Image []byte   `json:"-"`
	MIME  string   `json:"mime,omitempty"`
}

// TextPart wraps s as a text part.
func TextPart(page int, s string) Part { return Part{Kind: PartText, Page: page, Text: s} }

// ImagePart wraps PNG bytes as an image part.
func ImagePart(page int, png []byte) Part {
	return Part{Kind: PartImage, Page: page, Image: png, MIME: "image/png"}
}

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage is the token accounting of one round-trip with its estimated cost in USD.
type Usage struct {
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	Cost             float64 `json:"cost"`
}

// ChatRequest is a text-only completion.
type ChatRequest struct {
	Model       string
	Messages    []Message
	JSONMode    bool
	Temperature float64
	MaxTokens   int

	// Doc and Task identify the call for fixtures, caching and logs.
	Doc  string
	Task constants.Task
}

// VisionRequest is a completion over an ordered list of text and image parts.
type VisionRequest struct {
	Model       string
	Parts       []Part
	Temperature float64
	MaxTokens   int

	Doc  string
	Task constants.Task
}

// Transport performs model round-trips.
type Transport interface {
	Chat(ctx context.Context, req ChatRequest) (string, Usage, error)
	Vision(ctx context.Context, req VisionRequest) (string, Usage, error)
}
