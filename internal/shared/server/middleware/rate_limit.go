package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"resume-insight/internal/shared/metrics"
	"resume-insight/internal/shared/server/respond"
	"resume-insight/internal/shared/telemetry"
)

// Route groups with their own counters.
const (
	RateGroupAPI    = "API"
	RateGroupUpload = "UPLOAD"
	RateGroupLogin  = "LOGIN"
	RateGroupOTP    = "OTP"
)

// RateLimitRule allows Max requests per fixed Window.
type RateLimitRule struct {
	Max    int
	Window time.Duration
}

type RateLimitConfig struct {
	Rules        map[string]RateLimitRule
	DefaultGroup string
	GroupFor     func(*gin.Context) string
	Exempt       func(*gin.Context) bool
	Counter      WindowCounter
}

// WindowCounter records a hit for key in the current fixed window and returns
// the hit count so far plus the time until the window resets.
type WindowCounter interface {
	Hit(ctx context.Context, key string, window time.Duration) (int, time.Duration, error)
}

// MemoryCounter keeps fixed-window counters in process memory.
type MemoryCounter struct {
	mu      sync.Mutex
	windows map[string]*fixedWindow
	now     func() time.Time
	hits    int
}

type fixedWindow struct {
	count   int
	resetAt time.Time
}

const pruneEvery = 1024

func NewMemoryCounter(now func() time.Time) *MemoryCounter {
	if now == nil {
		now = time.Now
	}
	return &MemoryCounter{
		windows: make(map[string]*fixedWindow),
		now:     now,
	}
}

func (m *MemoryCounter) Hit(_ context.Context, key string, window time.Duration) (int, time.Duration, error) {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	m.hits++
	if m.hits%pruneEvery == 0 {
		m.pruneLocked(now)
	}

	w, ok := m.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &fixedWindow{resetAt: now.Add(window)}
		m.windows[key] = w
	}
	w.count++
	return w.count, w.resetAt.Sub(now), nil
}

func (m *MemoryCounter) pruneLocked(now time.Time) {
	for k, w := range m.windows {
		if !now.Before(w.resetAt) {
			delete(m.windows, k)
		}
	}
}

// RateLimit rejects requests once an identity exceeds the rule of its route group.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.Counter == nil {
		cfg.Counter = NewMemoryCounter(nil)
	}
	if cfg.DefaultGroup == "" {
		cfg.DefaultGroup = RateGroupAPI
	}
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions || (cfg.Exempt != nil && cfg.Exempt(c)) {
			c.Next()
			return
		}
		group := cfg.DefaultGroup
		if cfg.GroupFor != nil {
			if g := strings.TrimSpace(cfg.GroupFor(c)); g != "" {
				group = g
			}
		}
		rule, ok := cfg.Rules[group]
		if !ok || rule.Max <= 0 || rule.Window <= 0 {
			c.Next()
			return
		}

		identity := ClientIdentity(c)
		key := group + "|" + identity
		count, resetIn, err := cfg.Counter.Hit(c.Request.Context(), key, rule.Window)
		if err != nil {
			telemetry.Warn("rate_limit.counter_error", map[string]any{
				"group": group,
				"error": err.Error(),
			})
			c.Next()
			return
		}
		if count <= rule.Max {
			c.Next()
			return
		}

		metrics.IncRateLimited(group)
		telemetry.Warn("rate_limit.exceeded", map[string]any{
			"request_id": RequestIDFromContext(c),
			"identity":   identity,
			"group":      group,
			"path":       c.Request.URL.Path,
			"method":     c.Request.Method,
			"count":      count,
			"limit":      rule.Max,
		})

		retryAfterSeconds := int(math.Ceil(resetIn.Seconds()))
		if retryAfterSeconds <= 0 {
			retryAfterSeconds = 1
		}
		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds))
		respond.Error(c, http.StatusTooManyRequests, "rate_limited", "Too many requests, please try again later", gin.H{
			"retryAfterMs": retryAfterSeconds * 1000,
		})
	}
}

// ClientIdentity returns the first X-Forwarded-For entry, or the connection address.
func ClientIdentity(c *gin.Context) string {
	if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if ip := c.RemoteIP(); ip != "" {
		return ip
	}
	return "unknown"
}
