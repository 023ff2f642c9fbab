package services

import "context"

type contextKey int

const (
	projectIDKey contextKey = iota
	stageKey
	requestIDKey
	operationIDKey
)

func withValue(ctx context.Context, key contextKey, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func value(ctx context.Context, key contextKey) (string, bool) {
	v, _ := ctx.Value(key).(string)
	return v, v != ""
}

// WithProjectID scopes ctx to a project; empty ids leave ctx unchanged.
func WithProjectID(ctx context.Context, id string) context.Context {
	return withValue(ctx, projectIDKey, id)
}

func ProjectIDFromContext(ctx context.Context) (string, bool) { return value(ctx, projectIDKey) }

// WithStage records the stage currently executing.
func WithStage(ctx context.Context, stage string) context.Context {
	return withValue(ctx, stageKey, stage)
}

func StageFromContext(ctx context.Context) (string, bool) { return value(ctx, stageKey) }

// WithRequestID attaches the API correlation id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withValue(ctx, requestIDKey, id)
}

func RequestIDFromContext(ctx context.Context) (string, bool) { return value(ctx, requestIDKey) }

// WithOperationID attaches the id of the async operation doing the work.
func WithOperationID(ctx context.Context, id string) context.Context {
	return withValue(ctx, operationIDKey, id)
}

func OperationIDFromContext(ctx context.Context) (string, bool) { return value(ctx, operationIDKey) }
