// Package requestcontext provides typed accessors for request-scoped values.
// Middleware writes them once; services and handlers read them without
// knowing about HTTP.
package requestcontext

import "context"

type requestIDKey struct{}
type userAgentKey struct{}
type clientDeviceKey struct{}

// WithRequestID stores the request ID in the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestID returns the request ID, or "" when not set.
func RequestID(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey{}).(string)
	return v
}

// WithUserAgent stores the raw User-Agent header in the context.
func WithUserAgent(ctx context.Context, ua string) context.Context {
	return context.WithValue(ctx, userAgentKey{}, ua)
}

// UserAgent returns the raw User-Agent header, or "" when not set.
func UserAgent(ctx context.Context) string {
	v, _ := ctx.Value(userAgentKey{}).(string)
	return v
}

// WithClientDevice stores a normalized "browser/os" description of the
// caller, used to enrich audit payloads.
func WithClientDevice(ctx context.Context, device string) context.Context {
	return context.WithValue(ctx, clientDeviceKey{}, device)
}

// ClientDevice returns the normalized device description, or "" when not set.
func ClientDevice(ctx context.Context) string {
	v, _ := ctx.Value(clientDeviceKey{}).(string)
	return v
}
