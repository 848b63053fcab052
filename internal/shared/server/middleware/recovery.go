package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"resume-insight/internal/shared/metrics"
	"resume-insight/internal/shared/server/respond"
	"resume-insight/internal/shared/telemetry"
)

// Recovery turns a handler panic into a 500 envelope. If the handler already
// started writing, the response is left as is and only the panic is logged.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			metrics.IncPanicRecovered("http")
			fields := map[string]any{
				"request_id": RequestIDFromContext(c),
				"panic":      fmt.Sprint(rec),
				"stack":      string(debug.Stack()),
				"path":       c.Request.URL.Path,
				"method":     c.Request.Method,
				"written":    c.Writer.Written(),
			}
			if userID := UserIDFromContext(c); userID != "" {
				fields["user_id"] = userID
			}
			telemetry.Error("http.panic", fields)
			if c.Writer.Written() {
				c.Abort()
				return
			}
			respond.Error(c, http.StatusInternalServerError, "internal", "Unexpected server error", nil)
		}()
		c.Next()
	}
}
