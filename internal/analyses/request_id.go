package analyses

import (
	"context"

	"resume-insight/internal/gateway"
)

// WithRequestID attaches a request ID to the context for logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return gateway.WithRequestID(ctx, requestID)
}

func requestIDFromContext(ctx context.Context) string {
	return gateway.RequestIDFromContext(ctx)
}

// backgroundWithRequestID detaches from the request lifetime but keeps its ID.
func backgroundWithRequestID(ctx context.Context) context.Context {
	requestID := requestIDFromContext(ctx)
	if requestID == "" {
		return context.Background()
	}
	return gateway.WithRequestID(context.Background(), requestID)
}
