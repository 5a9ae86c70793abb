// Package vertex answers gemini/* and google/* models through Vertex AI.
package vertex

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cloud.google.com/go/vertexai/genai"

	"github.com/joseph-ayodele/pdf-tagger/internal/common"
	"github.com/joseph-ayodele/pdf-tagger/internal/llm"
)

var _ llm.Transport = (*Client)(nil)

// Client wraps a genai client. Models are configured per request since
// temperature and system instructions vary by task.
type Client struct {
	base   *genai.Client
	logger *slog.Logger
}

// NewClient creates a Vertex AI client for projectID in region.
func NewClient(ctx context.Context, projectID, region string, logger *slog.Logger) (*Client, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("vertex.NewClient: projectID and region cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	base, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	return &Client{base: base, logger: logger}, nil
}

func (c *Client) Close() error {
	if c.base != nil {
		return c.base.Close()
	}
	return nil
}

func (c *Client) model(name string, temp float64, maxTokens int, jsonMode bool, system string) *genai.GenerativeModel {
	m := c.base.GenerativeModel(llm.ModelName(name))
	if system != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	m.GenerationConfig = genai.GenerationConfig{Temperature: genai.Ptr[float32](float32(temp))}
	if jsonMode {
		m.GenerationConfig.ResponseMIMEType = "application/json"
	}
	if maxTokens > 0 {
		m.GenerationConfig.MaxOutputTokens = genai.Ptr[int32](int32(maxTokens))
	}
	return m
}

func (c *Client) Chat(ctx context.Context, req llm.ChatRequest) (string, llm.Usage, error) {
	system, rest := llm.SystemAndUser(req.Messages)
	parts := make([]genai.Part, 0, len(rest))
	for _, m := range rest {
		parts = append(parts, genai.Text(m.Content))
	}
	m := c.model(req.Model, req.Temperature, req.MaxTokens, req.JSONMode, system)
	return c.generate(ctx, m, parts, req.Doc, string(req.Task))
}

func (c *Client) Vision(ctx context.Context, req llm.VisionRequest) (string, llm.Usage, error) {
	parts := make([]genai.Part, 0, len(req.Parts))
	for _, p := range req.Parts {
		if p.Kind == llm.PartImage {
			parts = append(parts, genai.ImageData(llm.ImageFormat(p.MIME), p.Image))
			continue
		}
		parts = append(parts, genai.Text(p.Text))
	}
	m := c.model(req.Model, req.Temperature, req.MaxTokens, true, "")
	return c.generate(ctx, m, parts, req.Doc, string(req.Task))
}

func (c *Client) generate(ctx context.Context, m *genai.GenerativeModel, parts []genai.Part, doc, task string) (string, llm.Usage, error) {
	start := time.Now()
	resp, err := m.GenerateContent(ctx, parts...)
	if err != nil {
		c.logger.Error("llm.vertex.generate_error", "doc", doc, "task", task, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return "", llm.Usage{}, fmt.Errorf("%w: %v", common.ErrTransport, err)
	}
	var usage llm.Usage
	if resp.UsageMetadata != nil {
		usage.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		usage.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		usage.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
	}
	text := responseText(resp)
	c.logger.Info("llm.vertex.ok", "doc", doc, "task", task,
		"prompt_tokens", usage.PromptTokens, "completion_tokens", usage.CompletionTokens,
		"elapsed_ms", time.Since(start).Milliseconds())
	return text, usage, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return strings.TrimSpace(b.String())
}
