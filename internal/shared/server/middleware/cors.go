package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"resume-insight/internal/shared/server/respond"
)

const (
	corsAllowMethods  = "GET,POST,PATCH,DELETE,OPTIONS"
	corsAllowHeaders  = "Content-Type, Authorization, X-Request-Id, X-Correlation-Id"
	corsExposeHeaders = "X-Request-Id, Retry-After"
	corsMaxAge        = "600"
)

// CORS allows the configured origins. A single "*" entry allows any origin
// without credentials. Preflights from other origins get 403.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	origins := make(map[string]struct{})
	wildcard := false
	for _, o := range allowedOrigins {
		trimmed := strings.TrimRight(strings.TrimSpace(o), "/")
		switch trimmed {
		case "":
		case "*":
			wildcard = true
		default:
			origins[trimmed] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		preflight := c.Request.Method == http.MethodOptions && c.GetHeader("Access-Control-Request-Method") != ""

		allowed := false
		if origin != "" {
			h := c.Writer.Header()
			h.Add("Vary", "Origin")
			if _, ok := origins[origin]; ok {
				allowed = true
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Credentials", "true")
			} else if wildcard {
				allowed = true
				h.Set("Access-Control-Allow-Origin", "*")
			}
			if allowed {
				h.Set("Access-Control-Expose-Headers", corsExposeHeaders)
			}
		}

		if !preflight {
			c.Next()
			return
		}
		if !allowed {
			respond.Error(c, http.StatusForbidden, "cors_forbidden", "Origin not allowed", map[string]any{"origin": origin})
			return
		}
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Methods", corsAllowMethods)
		h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
		h.Set("Access-Control-Max-Age", corsMaxAge)
		c.AbortWithStatus(http.StatusNoContent)
	}
}
