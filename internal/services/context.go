package services

import "context"

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	renditionKey contextKey = "rendition"
)

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRendition annotates context with the rendition key being served.
func WithRendition(ctx context.Context, key string) context.Context {
	if key == "" {
		return ctx
	}
	return context.WithValue(ctx, renditionKey, key)
}

// RenditionFromContext returns the rendition key if present.
func RenditionFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(renditionKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
