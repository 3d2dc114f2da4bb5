package inference_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/brettericmartin/teed-sub011/internal/inference"
	"github.com/brettericmartin/teed-sub011/internal/services"
)

func TestDecodeJSONHandlesCodeFencesAndProse(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"plain", `{"name":"Driver X"}`},
		{"fenced", "```json\n{\"name\":\"Driver X\"}\n```"},
		{"prose", "Here you go: {\"name\":\"Driver X\"} hope it helps"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out struct {
				Name string `json:"name"`
			}
			if err := inference.DecodeJSON(tt.content, &out); err != nil {
				t.Fatalf("DecodeJSON: %v", err)
			}
			if out.Name != "Driver X" {
				t.Fatalf("unexpected name %q", out.Name)
			}
		})
	}
}

func TestDecodeJSONRejectsGarbage(t *testing.T) {
	var out map[string]any
	if err := inference.DecodeJSON("   ", &out); err == nil {
		t.Fatal("expected error for empty payload")
	}
	err := inference.DecodeJSON("not json at all", &out)
	if err == nil || !strings.Contains(err.Error(), "payload snippet") {
		t.Fatalf("expected snippet in error, got %v", err)
	}
}

func TestCallClassifiesFailures(t *testing.T) {
	ctx := context.Background()
	var out map[string]any

	malformed := inference.ClientFunc(func(context.Context, inference.Request) (string, error) {
		return "nope", nil
	})
	if err := inference.Call(ctx, malformed, "census", inference.Request{Operation: "scan"}, &out); !errors.Is(err, services.ErrMalformedResponse) {
		t.Fatalf("expected malformed response, got %v", err)
	}

	transport := inference.ClientFunc(func(context.Context, inference.Request) (string, error) {
		return "", errors.New("connection refused")
	})
	if err := inference.Call(ctx, transport, "census", inference.Request{Operation: "scan"}, &out); !errors.Is(err, services.ErrInferenceUnavailable) {
		t.Fatalf("expected inference unavailable, got %v", err)
	}

	limited := inference.ClientFunc(func(context.Context, inference.Request) (string, error) {
		return "", services.Wrap(services.ErrRateLimited, "llm", "complete", "http 429", nil)
	})
	err := inference.Call(ctx, limited, "census", inference.Request{Operation: "scan"}, &out)
	if !errors.Is(err, services.ErrRateLimited) || errors.Is(err, services.ErrInferenceUnavailable) {
		t.Fatalf("expected only rate limited marker, got %v", err)
	}

	if err := inference.Call(ctx, nil, "census", inference.Request{}, &out); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestImageDataURI(t *testing.T) {
	img := inference.Image{Data: []byte{0xff, 0xd8}, MediaType: "image/jpeg"}
	if got := img.DataURI(); !strings.HasPrefix(got, "data:image/jpeg;base64,") {
		t.Fatalf("unexpected data uri %q", got)
	}
	remote := inference.Image{URL: "https://cdn.example.com/a.png"}
	if remote.DataURI() != remote.URL {
		t.Fatalf("expected url passthrough")
	}
}

func TestRateLimitedDelegatesAndHonoursCancel(t *testing.T) {
	calls := 0
	next := inference.ClientFunc(func(context.Context, inference.Request) (string, error) {
		calls++
		return "{}", nil
	})
	if got := inference.NewRateLimited(next, 0); got == nil {
		t.Fatal("expected passthrough client")
	}
	limited := inference.NewRateLimited(next, 60)
	if _, err := limited.CompleteJSON(context.Background(), inference.Request{}); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected delegate call, got %d", calls)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := limited.CompleteJSON(ctx, inference.Request{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
}
