package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type ctxKey int

const (
	loggerKey ctxKey = iota
	requestIDKey
	tenantIDKey
	userIDKey
)

// WithContext stores the logger in ctx
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the request logger, or a no-op logger outside a request
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}

// L returns the context logger with the active trace and span ids attached
func L(ctx context.Context) *zap.Logger {
	l := FromContext(ctx)
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return l
	}
	return l.With(
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	)
}

// WithRequestID records the request id in ctx and on the context logger
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return with(ctx, requestIDKey, "request_id", requestID)
}

// WithTenantID records the tenant in ctx and on the context logger. The
// tenant guard on the database reads it back.
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return with(ctx, tenantIDKey, "tenant_id", tenantID)
}

// WithUserID records the acting user in ctx and on the context logger
func WithUserID(ctx context.Context, userID string) context.Context {
	return with(ctx, userIDKey, "user_id", userID)
}

func with(ctx context.Context, key ctxKey, field, value string) context.Context {
	ctx = context.WithValue(ctx, key, value)
	return WithContext(ctx, FromContext(ctx).With(zap.String(field, value)))
}

// GetRequestID returns the request id stored in ctx
func GetRequestID(ctx context.Context) string { return value(ctx, requestIDKey) }

// GetTenantID returns the tenant id stored in ctx
func GetTenantID(ctx context.Context) string { return value(ctx, tenantIDKey) }

// GetUserID returns the user id stored in ctx
func GetUserID(ctx context.Context) string { return value(ctx, userIDKey) }

func value(ctx context.Context, key ctxKey) string {
	s, _ := ctx.Value(key).(string)
	return s
}
