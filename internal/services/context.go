package services

import "context"

type contextKey string

const (
	evidenceRefKey  contextKey = "evidence_ref"
	stageKey        contextKey = "stage"
	queryContextKey contextKey = "query_context"
	requestIDKey    contextKey = "request_id"
)

// WithEvidenceRef annotates context with the evidence item being processed
// (for example "image[2]" or a canonical URL).
func WithEvidenceRef(ctx context.Context, ref string) context.Context {
	if ref == "" {
		return ctx
	}
	return context.WithValue(ctx, evidenceRefKey, ref)
}

// EvidenceRefFromContext extracts the evidence reference if present.
func EvidenceRefFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(evidenceRefKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithStage annotates context with the pipeline stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(stageKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithQueryContext annotates context with the client-supplied query context
// that groups superseding requests.
func WithQueryContext(ctx context.Context, key string) context.Context {
	if key == "" {
		return ctx
	}
	return context.WithValue(ctx, queryContextKey, key)
}

// QueryContextFromContext returns the query context key if present.
func QueryContextFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(queryContextKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
