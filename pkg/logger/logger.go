package logger

import (
	"context"
)

// Logger takes a message and alternating key/value pairs.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
	Fatal(msg string, keysAndValues ...any)
	// With returns a logger that adds keysAndValues to every entry.
	With(keysAndValues ...any) Logger
}

// ForComponent scopes l to one engine component, e.g. "resolver".
func ForComponent(l Logger, name string) Logger {
	return l.With("component", name)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any) {}
func (nopLogger) Warn(string, ...any) {}
func (nopLogger) Error(string, ...any) {}
func (nopLogger) Fatal(string, ...any) {}
func (n nopLogger) With(...any) Logger { return n }

func NewNop() Logger {
	return nopLogger{}
}

type ctxKey struct{}

func WithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext falls back to a no-op logger so handlers never check for nil.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(ctxKey{}).(Logger); ok {
		return l
	}
	return nopLogger{}
}
