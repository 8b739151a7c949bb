package logger

import (
	"context"
	"log/slog"
)

type contextKey string

const (
	// loggerKey is the context key for the logger.
	loggerKey contextKey = "tokdrop.logger"
	// requestIDKey is the context key for request ID.
	requestIDKey contextKey = "tokdrop.request_id"
	// updateIDKey is the context key for the Bot API update id.
	updateIDKey contextKey = "tokdrop.update_id"
)

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext extracts the logger from context, falling back to
// slog.Default.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext extracts the request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// WithUpdateID adds the Bot API update id being handled to the context.
func WithUpdateID(ctx context.Context, updateID int64) context.Context {
	return context.WithValue(ctx, updateIDKey, updateID)
}

// UpdateIDFromContext extracts the update id from context.
func UpdateIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(updateIDKey).(int64)
	return id, ok
}

// L returns the context logger tagged with the request and update ids
// carried by ctx.
func L(ctx context.Context) *slog.Logger {
	l := FromContext(ctx)
	if reqID := RequestIDFromContext(ctx); reqID != "" {
		l = l.With("request_id", reqID)
	}
	if updateID, ok := UpdateIDFromContext(ctx); ok {
		l = l.With("update_id", updateID)
	}
	return l
}
