package gateway

import (
	"context"

	"resume-insight/internal/shared/telemetry"
)

// WithRequestID attaches a request ID to ctx; it is forwarded as X-Request-Id.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return telemetry.WithRequestID(ctx, requestID)
}

// RequestIDFromContext returns the request ID attached by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	return telemetry.RequestID(ctx)
}
