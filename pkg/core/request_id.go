package core

import (
	"context"

	"github.com/google/uuid"
)

type requestIDKey struct{}

// RequestIDField is the logger field carrying the request id
const RequestIDField = "request_id"

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// GenerateRequestID returns a time-ordered UUIDv7, so ids sort by the
// moment a connection or alert run started.
func GenerateRequestID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// EnsureRequestID keeps an id already on ctx and otherwise attaches a new one
func EnsureRequestID(ctx context.Context) (context.Context, string) {
	if id := GetRequestID(ctx); id != "" {
		return ctx, id
	}
	id := GenerateRequestID()
	return WithRequestID(ctx, id), id
}

// LoggerFor tags logger with the request id on ctx, if any
func LoggerFor(ctx context.Context, logger Logger) Logger {
	if id := GetRequestID(ctx); id != "" {
		return logger.WithFields(map[string]interface{}{RequestIDField: id})
	}
	return logger
}
