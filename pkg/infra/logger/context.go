// Package logger carries request-scoped log fields through a context.
//
// Fields attached with WithRequestID or WithFields are added to every entry
// written through FromContext. When the context holds a valid OpenTelemetry
// span its trace_id and span_id are added as well.
package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	"github.com/kart-io/logger"
	"github.com/kart-io/logger/core"
)

type contextKey int

const fieldsKey contextKey = iota

// WithRequestID adds request_id to the context logger fields.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return WithFields(ctx, "request_id", requestID)
}

// WithFields adds key-value pairs to the context logger fields.
// A trailing key without a value is dropped.
func WithFields(ctx context.Context, keysAndValues ...any) context.Context {
	if len(keysAndValues)%2 != 0 {
		keysAndValues = keysAndValues[:len(keysAndValues)-1]
	}
	if len(keysAndValues) == 0 {
		return ctx
	}

	parent := fields(ctx)
	merged := make([]any, 0, len(parent)+len(keysAndValues))
	merged = append(merged, parent...)
	merged = append(merged, keysAndValues...)
	return context.WithValue(ctx, fieldsKey, merged)
}

// Fields returns the context logger fields, including trace identifiers.
func Fields(ctx context.Context) []any {
	out := fields(ctx)
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		out = append(out[:len(out):len(out)], "trace_id", sc.TraceID().String(), "span_id", sc.SpanID().String())
	}
	return out
}

// FromContext returns the global logger with the context fields attached.
func FromContext(ctx context.Context) core.Logger {
	base := logger.Global()
	if f := Fields(ctx); len(f) > 0 {
		return base.With(f...)
	}
	return base
}

func fields(ctx context.Context) []any {
	if f, ok := ctx.Value(fieldsKey).([]any); ok {
		return f
	}
	return nil
}
