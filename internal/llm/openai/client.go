package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/joseph-ayodele/pdf-tagger/internal/common"
	"github.com/joseph-ayodele/pdf-tagger/internal/llm"
)

var _ llm.Transport = (*Client)(nil)

type completion struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Chat implements llm.Transport over /chat/completions.
func (c *Client) Chat(ctx context.Context, req llm.ChatRequest) (string, llm.Usage, error) {
	msgs := make([]map[string]any, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, map[string]any{"role": m.Role, "content": m.Content})
	}
	body := c.body(req.Model, req.Temperature, req.MaxTokens, msgs)
	if req.JSONMode {
		body["response_format"] = map[string]any{"type": "json_object"}
	}
	return c.complete(ctx, body, req.Doc, string(req.Task))
}

// Vision sends the parts in order as one user message of text and image_url items.
func (c *Client) Vision(ctx context.Context, req llm.VisionRequest) (string, llm.Usage, error) {
	content := make([]map[string]any, 0, len(req.Parts))
	for _, p := range req.Parts {
		switch p.Kind {
		case llm.PartImage:
			content = append(content, map[string]any{
				"type": "image_url",
				"image_url": map[string]any{
					"url":    llm.DataURL(p.Image, p.MIME),
					"detail": c.cfg.Detail,
				},
			})
		default:
			content = append(content, map[string]any{"type": "text", "text": p.Text})
		}
	}
	msgs := []map[string]any{{"role": "user", "content": content}}
	body := c.body(req.Model, req.Temperature, req.MaxTokens, msgs)
	return c.complete(ctx, body, req.Doc, string(req.Task))
}

func (c *Client) body(model string, temp float64, maxTokens int, msgs []map[string]any) map[string]any {
	body := map[string]any{
		"model":       llm.ModelName(model),
		"temperature": temp,
		"messages":    msgs,
	}
	if maxTokens > 0 {
		body["max_tokens"] = maxTokens
	}
	return body
}

func (c *Client) complete(ctx context.Context, body map[string]any, doc, task string) (string, llm.Usage, error) {
	start := time.Now()
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}

	raw, err := llm.PostJSON(ctx, c.http, endpoint, body, headers, c.logger)
	if err != nil {
		c.logger.Error("llm.openai.http_error",
			"doc", doc, "task", task, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", llm.Usage{}, err
	}

	var cc completion
	if err := json.Unmarshal(raw, &cc); err != nil {
		return "", llm.Usage{}, fmt.Errorf("%w: decode openai response: %v", common.ErrTransport, err)
	}
	if len(cc.Choices) == 0 {
		return "", llm.Usage{}, fmt.Errorf("%w: no choices in openai response", common.ErrTransport)
	}
	usage := llm.Usage{
		PromptTokens:     cc.Usage.PromptTokens,
		CompletionTokens: cc.Usage.CompletionTokens,
		TotalTokens:      cc.Usage.TotalTokens,
	}
	c.logger.Info("llm.openai.ok",
		"doc", doc, "task", task, "model", body["model"],
		"prompt_tokens", usage.PromptTokens, "completion_tokens", usage.CompletionTokens,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return strings.TrimSpace(cc.Choices[0].Message.Content), usage, nil
}
