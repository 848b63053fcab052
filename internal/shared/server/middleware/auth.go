package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"resume-insight/internal/shared/auth"
	"resume-insight/internal/shared/server/respond"
)

const (
	userIDKey    = "userId"
	userEmailKey = "userEmail"
	userNameKey  = "userName"
	userRoleKey  = "userRole"
)

// TokenVerifier validates session tokens.
type TokenVerifier interface {
	Verify(token string) (auth.Claims, error)
}

// Auth reads an optional Bearer token and stores identity in context.
// Requests without a token continue anonymously; a malformed or invalid token is rejected.
func Auth(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if authHeader == "" {
			c.Next()
			return
		}
		if !strings.HasPrefix(authHeader, "Bearer ") {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
		if token == "" || verifier == nil {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}

		claims, err := verifier.Verify(token)
		if err != nil {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}

		c.Set(userIDKey, claims.Subject)
		if claims.Email != "" {
			c.Set(userEmailKey, claims.Email)
		}
		if claims.Name != "" {
			c.Set(userNameKey, claims.Name)
		}
		role := claims.Role
		if role == "" {
			role = auth.RoleUser
		}
		c.Set(userRoleKey, role)
		c.Next()
	}
}

// RequireAuth rejects requests that carry no verified identity.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if UserIDFromContext(c) == "" {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "authentication required", nil)
			return
		}
		c.Next()
	}
}

// RequireRole rejects authenticated requests whose role does not match.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if UserIDFromContext(c) == "" {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "authentication required", nil)
			return
		}
		if UserRoleFromContext(c) != role {
			respond.Error(c, http.StatusForbidden, "forbidden", "insufficient permissions", nil)
			return
		}
		c.Next()
	}
}

// UserIDFromContext fetches the user ID set by the auth middleware.
func UserIDFromContext(c *gin.Context) string {
	return stringFromContext(c, userIDKey)
}

// UserEmailFromContext fetches the user email set by the auth middleware.
func UserEmailFromContext(c *gin.Context) string {
	return stringFromContext(c, userEmailKey)
}

// UserNameFromContext fetches the user name set by the auth middleware.
func UserNameFromContext(c *gin.Context) string {
	return stringFromContext(c, userNameKey)
}

// UserRoleFromContext fetches the user role set by the auth middleware.
func UserRoleFromContext(c *gin.Context) string {
	return stringFromContext(c, userRoleKey)
}

func stringFromContext(c *gin.Context, key string) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(key)
	if s, ok := val.(string); ok {
		return s
	}
	return ""
}
