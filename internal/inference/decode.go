package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/brettericmartin/teed-sub011/internal/services"
)

// DecodeJSON decodes JSON from a model response, handling common formatting quirks
// such as code fences and leading prose.
func DecodeJSON(content string, target any) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return errors.New("empty payload")
	}

	directErr := json.Unmarshal([]byte(trimmed), target)
	if directErr == nil {
		return nil
	}

	sanitized := sanitizeJSONPayload(trimmed)
	if sanitized == "" || sanitized == trimmed {
		return fmt.Errorf("%w (payload snippet: %s)", directErr, SummarizeSnippet(trimmed))
	}

	sanitizedErr := json.Unmarshal([]byte(sanitized), target)
	if sanitizedErr == nil {
		return nil
	}
	return fmt.Errorf("%w (sanitized payload snippet: %s)", sanitizedErr, SummarizeSnippet(sanitized))
}

// Call issues req through client and decodes the response into target. Failures
// carry a taxonomy marker: transport errors keep the provider's marker,
// undecodable payloads become ErrMalformedResponse.
func Call(ctx context.Context, client Client, stage string, req Request, target any) error {
	if client == nil {
		return services.Wrap(services.ErrConfiguration, stage, req.Operation, "no inference client configured", nil)
	}
	content, err := client.CompleteJSON(ctx, req)
	if err != nil {
		return Classify(err, stage, req.Operation)
	}
	if err := DecodeJSON(content, target); err != nil {
		return services.Wrap(services.ErrMalformedResponse, stage, req.Operation, "decode model response", err)
	}
	return nil
}

// Classify tags err with an inference marker unless it already carries one.
// Context cancellation passes through untouched.
func Classify(err error, stage, operation string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, services.ErrRateLimited),
		errors.Is(err, services.ErrInferenceUnavailable),
		errors.Is(err, services.ErrConfiguration),
		errors.Is(err, services.ErrMalformedResponse):
		return fmt.Errorf("%s: %s: %w", stage, operation, err)
	default:
		return services.Wrap(services.ErrInferenceUnavailable, stage, operation, "inference call", err)
	}
}

func sanitizeJSONPayload(content string) string {
	trimmed := strings.TrimSpace(stripCodeFenceBlock(content))
	if trimmed == "" {
		return ""
	}
	if trimmed[0] == '{' || trimmed[0] == '[' {
		return trimmed
	}
	if start := strings.Index(trimmed, "{"); start >= 0 {
		if end := strings.LastIndex(trimmed, "}"); end > start {
			return strings.TrimSpace(trimmed[start : end+1])
		}
	}
	if start := strings.Index(trimmed, "["); start >= 0 {
		if end := strings.LastIndex(trimmed, "]"); end > start {
			return strings.TrimSpace(trimmed[start : end+1])
		}
	}
	return trimmed
}

func stripCodeFenceBlock(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	body := strings.TrimLeft(trimmed[3:], " \t\r\n")
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = strings.TrimLeft(body[4:], " \t\r\n")
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}

// SummarizeSnippet collapses whitespace and truncates content for log and error messages.
func SummarizeSnippet(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "<empty>"
	}
	clean := strings.Join(strings.Fields(trimmed), " ")
	const limit = 160
	runes := []rune(clean)
	if len(runes) > limit {
		clean = string(runes[:limit]) + "..."
	}
	return clean
}
