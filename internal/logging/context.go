package logging

import (
	"context"
	"log/slog"

	"curator/internal/services"
)

// Canonical attribute keys shared across packages so that log lines stay
// consistent and machine-filterable.
const (
	FieldComponent     = "component"
	FieldJobID         = "job_id"
	FieldGroupID       = "group_id"
	FieldCorrelationID = "correlation_id"
	FieldEventType     = "event_type"
	FieldStatus        = "status"
	FieldPath          = "path"
	FieldErrorHint     = "error_hint"
	FieldDurationMS    = "duration_ms"
	FieldAttempt       = "attempt"
)

// ContextFields extracts request-scoped identifiers from ctx as log attributes.
func ContextFields(ctx context.Context) []Attr {
	if ctx == nil {
		return nil
	}
	attrs := make([]Attr, 0, 3)
	if component, ok := services.ComponentFromContext(ctx); ok {
		attrs = append(attrs, String(FieldComponent, component))
	}
	if jobID, ok := services.JobIDFromContext(ctx); ok {
		attrs = append(attrs, String(FieldJobID, jobID))
	}
	if requestID, ok := services.RequestIDFromContext(ctx); ok {
		attrs = append(attrs, String(FieldCorrelationID, requestID))
	}
	return attrs
}

// WithContext returns logger enriched with any identifiers present in ctx.
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
