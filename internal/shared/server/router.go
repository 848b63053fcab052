package server

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"resume-insight/internal/admin"
	"resume-insight/internal/analyses"
	googleauth "resume-insight/internal/auth"
	"resume-insight/internal/contact"
	"resume-insight/internal/services/health"
	"resume-insight/internal/shared/config"
	"resume-insight/internal/shared/metrics"
	"resume-insight/internal/shared/server/middleware"
	"resume-insight/internal/users"
)

// RouterDeps holds the handlers the router mounts. Nil handlers are skipped.
type RouterDeps struct {
	Config          config.Config
	Verifier        middleware.TokenVerifier
	RateCounter     middleware.WindowCounter
	AnalysisHandler *analyses.Handler
	UserHandler     *users.Handler
	GoogleAuth      *googleauth.GoogleService
	ContactHandler  *contact.Handler
	AdminHandler    *admin.Handler
	Health          *health.Service
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.RateLimit(rateLimitConfig(deps.Config.RateLimit, deps.RateCounter)),
		middleware.Auth(deps.Verifier),
	)

	if deps.Health != nil {
		r.GET("/health", deps.Health.Handler())
	}
	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api")
	if deps.Health != nil {
		api.GET("/health", deps.Health.Handler())
	}
	if deps.AnalysisHandler != nil {
		deps.AnalysisHandler.RegisterRoutes(api)
	}
	if deps.UserHandler != nil {
		deps.UserHandler.RegisterRoutes(api)
	}
	if deps.GoogleAuth != nil {
		deps.GoogleAuth.RegisterRoutes(api)
	}
	if deps.ContactHandler != nil {
		deps.ContactHandler.RegisterRoutes(api)
	}
	if deps.AdminHandler != nil {
		deps.AdminHandler.RegisterRoutes(api)
	}

	return r
}

var exemptPaths = map[string]bool{
	"/health":     true,
	"/api/health": true,
	"/metrics":    true,
}

var otpPaths = map[string]bool{
	"/api/auth/register":        true,
	"/api/auth/verify-otp":      true,
	"/api/auth/resend-otp":      true,
	"/api/auth/forgot-password": true,
	"/api/auth/reset-password":  true,
}

func rateLimitConfig(cfg config.RateLimitConfig, counter middleware.WindowCounter) middleware.RateLimitConfig {
	return middleware.RateLimitConfig{
		Rules: map[string]middleware.RateLimitRule{
			middleware.RateGroupAPI:    {Max: cfg.APIMax, Window: cfg.APIWindow},
			middleware.RateGroupUpload: {Max: cfg.UploadMax, Window: cfg.UploadWindow},
			middleware.RateGroupLogin:  {Max: cfg.LoginMax, Window: cfg.LoginWindow},
			middleware.RateGroupOTP:    {Max: cfg.OTPMax, Window: cfg.OTPWindow},
		},
		DefaultGroup: middleware.RateGroupAPI,
		GroupFor:     rateGroupFor,
		Exempt: func(c *gin.Context) bool {
			return exemptPaths[c.Request.URL.Path]
		},
		Counter: counter,
	}
}

func rateGroupFor(c *gin.Context) string {
	path := strings.TrimRight(c.Request.URL.Path, "/")
	switch {
	case path == "/api/resume/analyze":
		return middleware.RateGroupUpload
	case path == "/api/auth/login":
		return middleware.RateGroupLogin
	case otpPaths[path]:
		return middleware.RateGroupOTP
	default:
		return middleware.RateGroupAPI
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}

// ReadHeaderTimeout bounds slow clients sending headers.
const ReadHeaderTimeout = 10 * time.Second
