package logging

import (
	"context"
	"log/slog"

	"framecast/internal/services"
)

// Standard structured keys. Log tailing filters on FieldProjectID and
// FieldOperationID, so renaming them breaks `framecast logs --project`.
const (
	FieldComponent     = "component"
	FieldProjectID     = "project_id"
	FieldStage         = "stage"
	FieldCorrelationID = "correlation_id"
	FieldOperationID   = "operation_id"
	FieldEventType     = "event_type"
	FieldErrorKind     = "error_kind"
	FieldErrorHint     = "error_hint"
	FieldAlert         = "alert"
)

var contextKeys = []struct {
	field string
	get   func(context.Context) (string, bool)
}{
	{FieldProjectID, services.ProjectIDFromContext},
	{FieldStage, services.StageFromContext},
	{FieldCorrelationID, services.RequestIDFromContext},
	{FieldOperationID, services.OperationIDFromContext},
}

// ContextFields returns the request-scoped attributes carried by ctx.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	var fields []slog.Attr
	for _, k := range contextKeys {
		if v, ok := k.get(ctx); ok {
			fields = append(fields, slog.String(k.field, v))
		}
	}
	return fields
}

// WithContext tags logger with the project, stage, request and operation
// identifiers found in ctx.
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
