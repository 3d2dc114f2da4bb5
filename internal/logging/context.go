package logging

import (
	"context"
	"log/slog"

	"github.com/brettericmartin/teed-sub011/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldStage is the standardized structured logging key for pipeline stage names.
	FieldStage = "stage"
	// FieldEvidenceRef identifies the evidence item a log line refers to.
	FieldEvidenceRef = "evidence_ref"
	// FieldQueryContext is the client-supplied key grouping superseding requests.
	FieldQueryContext = "query_context"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldEventType classifies warnings and errors for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint suggests the next step an operator should take.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldDecisionType names the decision point being logged.
	FieldDecisionType = "decision_type"
	// FieldDecisionResult is the outcome of a decision point.
	FieldDecisionResult = "decision_result"
	// FieldDecisionReason explains the outcome of a decision point.
	FieldDecisionReason = "decision_reason"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if ref, ok := services.EvidenceRefFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldEvidenceRef, ref))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if key, ok := services.QueryContextFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldQueryContext, key))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
