package claude

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/brettericmartin/teed-sub011/internal/inference"
	"github.com/brettericmartin/teed-sub011/internal/services"
)

func messagesServer(t *testing.T, status int, capture *map[string]any) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if capture != nil {
			_ = json.NewDecoder(r.Body).Decode(capture)
		}
		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`))
			return
		}
		_, _ = w.Write([]byte(`{
			"id":"msg_1","type":"message","role":"assistant","model":"claude-test",
			"content":[{"type":"text","text":"{\"brand\":\"Acme\"}"}],
			"stop_reason":"end_turn",
			"usage":{"input_tokens":12,"output_tokens":5}
		}`))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestCompleteJSONReturnsTextBlock(t *testing.T) {
	var captured map[string]any
	server := messagesServer(t, http.StatusOK, &captured)
	client := NewClient(Config{APIKey: "k", Model: "claude-test", BaseURL: server.URL, MaxRetries: 1}, nil)

	content, err := client.CompleteJSON(context.Background(), inference.Request{
		Operation: "identify",
		System:    "identify products",
		Prompt:    "what is this",
		Images:    []inference.Image{{Data: []byte{0xff, 0xd8, 0xff}, MediaType: "image/jpeg"}},
	})
	if err != nil {
		t.Fatalf("CompleteJSON: %v", err)
	}
	if content != `{"brand":"Acme"}` {
		t.Fatalf("unexpected content %q", content)
	}
	messages, ok := captured["messages"].([]any)
	if !ok || len(messages) != 1 {
		t.Fatalf("expected one message, got %v", captured["messages"])
	}
	blocks := messages[0].(map[string]any)["content"].([]any)
	if len(blocks) != 2 || blocks[0].(map[string]any)["type"] != "image" {
		t.Fatalf("expected image block before text, got %v", blocks)
	}
}

func TestCompleteJSONClassifiesRateLimit(t *testing.T) {
	server := messagesServer(t, http.StatusTooManyRequests, nil)
	client := NewClient(Config{APIKey: "k", Model: "claude-test", BaseURL: server.URL, MaxRetries: 1}, nil)
	_, err := client.CompleteJSON(context.Background(), inference.Request{System: "s", Prompt: "p"})
	if !errors.Is(err, services.ErrRateLimited) {
		t.Fatalf("expected rate limited, got %v", err)
	}
}

func TestCompleteJSONRequiresKey(t *testing.T) {
	client := NewClient(Config{Model: "claude-test"}, nil)
	_, err := client.CompleteJSON(context.Background(), inference.Request{System: "s", Prompt: "p"})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
