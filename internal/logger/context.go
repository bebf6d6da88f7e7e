package logger

import (
	"context"

	"go.uber.org/zap"
)

// loggerContextKey is the private type used to stash a logger in a context.Context.
type loggerContextKey struct{}

// ToContext returns a new context carrying the provided logger.
func ToContext(ctx context.Context, l *zap.SugaredLogger) context.Context {
	return context.WithValue(ctx, loggerContextKey{}, l)
}

// FromContext extracts the logger stashed in ctx, falling back to the global
// logger when the context carries none.
func FromContext(ctx context.Context) *zap.SugaredLogger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerContextKey{}).(*zap.SugaredLogger); ok && l != nil {
			return l
		}
	}

	return global
}

// WithName returns a context whose logger is tagged with a "component" field,
// derived from the logger already present in ctx (or the global logger).
func WithName(ctx context.Context, name string) context.Context {
	return ToContext(ctx, FromContext(ctx).With("component", name))
}

// WithKV returns a context whose logger carries the provided key-value pairs,
// derived from the logger already present in ctx (or the global logger).
func WithKV(ctx context.Context, kvs ...any) context.Context {
	return ToContext(ctx, FromContext(ctx).With(kvs...))
}
