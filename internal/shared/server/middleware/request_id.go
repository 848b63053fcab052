package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"resume-insight/internal/shared/telemetry"
)

const (
	requestIDKey    = "requestId"
	maxRequestIDLen = 128
)

var requestIDHeaders = []string{"X-Request-Id", "X-Correlation-Id"}

// RequestID reuses a caller supplied request ID or generates one, then exposes it
// on the gin context, the request context and the response header.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := incomingRequestID(c)
		if id == "" {
			id = strings.ReplaceAll(uuid.NewString(), "-", "")
		}
		c.Set(requestIDKey, id)
		c.Request = c.Request.WithContext(telemetry.WithRequestID(c.Request.Context(), id))
		c.Writer.Header().Set("X-Request-Id", id)
		c.Next()
	}
}

func incomingRequestID(c *gin.Context) string {
	for _, h := range requestIDHeaders {
		id := strings.TrimSpace(c.GetHeader(h))
		if id != "" && len(id) <= maxRequestIDLen && printable(id) {
			return id
		}
	}
	return ""
}

func printable(s string) bool {
	for _, r := range s {
		if r < 0x21 || r > 0x7e {
			return false
		}
	}
	return true
}

// RequestIDFromContext fetches the request ID stored by RequestID middleware.
func RequestIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	if val, ok := c.Get(requestIDKey); ok {
		if id, ok := val.(string); ok {
			return id
		}
	}
	if c.Request != nil {
		return telemetry.RequestID(c.Request.Context())
	}
	return ""
}
