package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"resume-insight/internal/shared/telemetry"
)

// Logging emits a structured log per request.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.EqualFold(c.Request.Method, "OPTIONS") {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()

		fields := map[string]any{
			"request_id":  RequestIDFromContext(c),
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"route":       c.FullPath(),
			"status":      status,
			"duration_ms": float64(latency.Microseconds()) / 1000.0,
			"client_ip":   ClientIdentity(c),
			"user_agent":  c.Request.UserAgent(),
		}
		if userID := UserIDFromContext(c); userID != "" {
			fields["user_id"] = userID
		}
		if analysisID := c.GetString("analysisId"); analysisID != "" {
			fields["analysis_id"] = analysisID
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}

		if strings.HasPrefix(c.Request.URL.Path, "/api/resume/status/") && status < 400 {
			// Clients poll this route every few seconds.
			telemetry.Debug("request.complete", fields)
			return
		}
		telemetry.Info("request.complete", fields)
	}
}
