// Package observability carries structured logging context (session, build,
// stage, service) through context.Context so nested components log with the
// same identifiers without threading loggers by hand.
package observability

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/svcbuilder/internal/logfields"
)

// LogContext holds structured logging context information.
type LogContext struct {
	SessionID string
	BuildID   string
	Stage     string
	Variant   string
}

type logContextKeyType string

const logContextKey logContextKeyType = "log-context"

// WithSessionID adds a watch session ID to the context.
func WithSessionID(ctx context.Context, id string) context.Context {
	lc := extractLogContext(ctx)
	lc.SessionID = id
	return context.WithValue(ctx, logContextKey, lc)
}

// WithBuildID adds a build (dispatch) ID to the context.
func WithBuildID(ctx context.Context, id string) context.Context {
	lc := extractLogContext(ctx)
	lc.BuildID = id
	return context.WithValue(ctx, logContextKey, lc)
}

// WithStage adds a stage name to the context.
func WithStage(ctx context.Context, stage string) context.Context {
	lc := extractLogContext(ctx)
	lc.Stage = stage
	return context.WithValue(ctx, logContextKey, lc)
}

// WithVariant adds the build variant to the context.
func WithVariant(ctx context.Context, variant string) context.Context {
	lc := extractLogContext(ctx)
	lc.Variant = variant
	return context.WithValue(ctx, logContextKey, lc)
}

// GetContext returns the structured log context from the provided context.
func GetContext(ctx context.Context) LogContext {
	return extractLogContext(ctx)
}

func extractLogContext(ctx context.Context) LogContext {
	if ctx == nil {
		return LogContext{}
	}
	if lc, ok := ctx.Value(logContextKey).(LogContext); ok {
		return lc
	}
	return LogContext{}
}

func getLogAttrs(ctx context.Context) []slog.Attr {
	lc := extractLogContext(ctx)
	attrs := make([]slog.Attr, 0, 4)
	if lc.SessionID != "" {
		attrs = append(attrs, logfields.SessionID(lc.SessionID))
	}
	if lc.BuildID != "" {
		attrs = append(attrs, logfields.BuildID(lc.BuildID))
	}
	if lc.Stage != "" {
		attrs = append(attrs, slog.String("stage", lc.Stage))
	}
	if lc.Variant != "" {
		attrs = append(attrs, logfields.Variant(lc.Variant))
	}
	return attrs
}

func logContext(ctx context.Context, level slog.Level, msg string, attrs []slog.Attr) {
	all := append(getLogAttrs(ctx), attrs...)
	slog.LogAttrs(ctx, level, msg, all...)
}

// InfoContext logs an info message with context information.
func InfoContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	logContext(ctx, slog.LevelInfo, msg, attrs)
}

// WarnContext logs a warning message with context information.
func WarnContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	logContext(ctx, slog.LevelWarn, msg, attrs)
}

// ErrorContext logs an error message with context information.
func ErrorContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	logContext(ctx, slog.LevelError, msg, attrs)
}

// DebugContext logs a debug message with context information.
func DebugContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	logContext(ctx, slog.LevelDebug, msg, attrs)
}
