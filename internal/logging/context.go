package logging

import (
	"context"
	"log/slog"

	"mvx/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldRunID is the correlation key shared by every log line of one invocation.
	FieldRunID = "run_id"
	// FieldItem is the 1-based batch item index.
	FieldItem = "item"
	// FieldStage is the pipeline stage (detect, probe, plan, execute, finalize).
	FieldStage       = "stage"
	FieldSource      = "source"
	FieldDestination = "destination"
	FieldStrategy    = "strategy"
	FieldBackend     = "backend"
	// FieldAlert flags warnings or anomalies that should stand out in structured logs.
	FieldAlert           = "alert"
	FieldEventType       = "event_type"
	FieldErrorHint       = "error_hint"
	FieldImpact          = "impact"
	FieldProgressPercent = "progress_percent"
	FieldProgressETA     = "progress_eta"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if idx, ok := services.ItemFromContext(ctx); ok {
		fields = append(fields, slog.Int(FieldItem, idx))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if rid, ok := services.RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunID, rid))
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
	return logger.With(Args(fields...)...)
}
