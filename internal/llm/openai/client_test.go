package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/joseph-ayodele/pdf-tagger/internal/common"
	"github.com/joseph-ayodele/pdf-tagger/internal/llm"
)

func newServer(t *testing.T, status int, reply string, seen *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer k" {
			t.Errorf("Authorization = %q", got)
		}
		if seen != nil {
			_ = json.NewDecoder(r.Body).Decode(seen)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv
}

const okReply = `{"choices":[{"message":{"content":" {\"title\":\"x\"} "}}],"usage":{"prompt_tokens":12,"completion_tokens":3,"total_tokens":15}}`

func TestChat(t *testing.T) {
	var body map[string]any
	srv := newServer(t, http.StatusOK, okReply, &body)
	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL}, nil)

	text, u, err := c.Chat(context.Background(), llm.ChatRequest{
		Model:       "openai/gpt-4o",
		Messages:    []llm.Message{{Role: "system", Content: "s"}, {Role: "user", Content: "u"}},
		JSONMode:    true,
		Temperature: 0.3,
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if text != `{"title":"x"}` {
		t.Errorf("text = %q", text)
	}
	if u.PromptTokens != 12 || u.CompletionTokens != 3 || u.TotalTokens != 15 {
		t.Errorf("usage = %+v", u)
	}
	if body["model"] != "gpt-4o" {
		t.Errorf("model = %v, want prefix stripped", body["model"])
	}
	if _, ok := body["response_format"]; !ok {
		t.Errorf("json mode not requested")
	}
}

func TestVisionOrdersParts(t *testing.T) {
	var body map[string]any
	srv := newServer(t, http.StatusOK, okReply, &body)
	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL}, nil)

	parts := []llm.Part{
		llm.TextPart(0, "intro"),
		llm.TextPart(1, "page one"),
		llm.ImagePart(1, []byte{0x89, 'P', 'N', 'G'}),
	}
	if _, _, err := c.Vision(context.Background(), llm.VisionRequest{Model: "gpt-4o", Parts: parts}); err != nil {
		t.Fatalf("Vision: %v", err)
	}
	msgs := body["messages"].([]any)
	content := msgs[0].(map[string]any)["content"].([]any)
	if len(content) != 3 {
		t.Fatalf("content items = %d, want 3", len(content))
	}
	wantTypes := []string{"text", "text", "image_url"}
	for i, item := range content {
		if got := item.(map[string]any)["type"]; got != wantTypes[i] {
			t.Errorf("item %d type = %v, want %s", i, got, wantTypes[i])
		}
	}
	url := content[2].(map[string]any)["image_url"].(map[string]any)["url"].(string)
	if !strings.HasPrefix(url, "data:image/png;base64,") {
		t.Errorf("image url = %q", url)
	}
}

func TestChatErrors(t *testing.T) {
	testCases := []struct {
		name   string
		status int
		reply  string
	}{
		{"server error", http.StatusInternalServerError, `{"error":"boom"}`},
		{"no choices", http.StatusOK, `{"choices":[]}`},
		{"garbage", http.StatusOK, `not json`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newServer(t, tc.status, tc.reply, nil)
			c := NewClient(Config{APIKey: "k", BaseURL: srv.URL}, nil)
			_, _, err := c.Chat(context.Background(), llm.ChatRequest{Model: "gpt-4o"})
			if !errors.Is(err, common.ErrTransport) {
				t.Errorf("err = %v, want ErrTransport", err)
			}
		})
	}
}

func TestHTTPErrorCarriesRequestID(t *testing.T) {
	var gotID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = r.Header.Get("X-Request-ID")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"slow down"}`))
	}))
	t.Cleanup(srv.Close)

	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL}, nil)
	ctx := common.WithRequestID(context.Background(), "req-42")
	_, _, err := c.Chat(ctx, llm.ChatRequest{Model: "gpt-4o"})

	var httpErr *llm.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("err = %v, want *llm.HTTPError", err)
	}
	if httpErr.Status != http.StatusTooManyRequests || httpErr.ReqID != "req-42" || gotID != "req-42" {
		t.Errorf("httpErr = %+v, header id = %q", httpErr, gotID)
	}
	if !strings.Contains(httpErr.Body, "slow down") {
		t.Errorf("body = %q", httpErr.Body)
	}
}
