package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"resume-insight/internal/shared/server/respond"
	"resume-insight/internal/shared/telemetry"
)

// Dependency states reported by Status.
const (
	StateUp       = "up"
	StateDown     = "down"
	StateDisabled = "disabled"
)

// PingFunc probes one dependency.
type PingFunc func(ctx context.Context) error

// AIChecker probes the external analysis service.
type AIChecker interface {
	CheckHealth(ctx context.Context) bool
}

// Service encapsulates health-related checks. Nil probes are reported as disabled.
type Service struct {
	AI       AIChecker
	Database PingFunc
	Cache    PingFunc
	Timeout  time.Duration

	now func() time.Time
}

// NewService constructs a new health service.
func NewService(ai AIChecker, database, cache PingFunc) *Service {
	return &Service{AI: ai, Database: database, Cache: cache, Timeout: 3 * time.Second, now: time.Now}
}

// Report is the health payload. OK is false when a required store is down;
// an unreachable AI service only degrades the report.
type Report struct {
	OK        bool      `json:"ok"`
	AIService string    `json:"aiService"`
	Database  string    `json:"database"`
	Cache     string    `json:"cache"`
	Timestamp time.Time `json:"timestamp"`
}

// Status probes all dependencies concurrently.
func (s *Service) Status(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	rep := Report{AIService: StateDisabled, Database: StateDisabled, Cache: StateDisabled, Timestamp: s.now().UTC()}
	var wg sync.WaitGroup
	if s.AI != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rep.AIService = StateDown
			if s.AI.CheckHealth(ctx) {
				rep.AIService = StateUp
			}
		}()
	}
	if s.Database != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rep.Database = probe(ctx, "database", s.Database)
		}()
	}
	if s.Cache != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rep.Cache = probe(ctx, "cache", s.Cache)
		}()
	}
	wg.Wait()

	rep.OK = rep.Database != StateDown && rep.Cache != StateDown
	return rep
}

func probe(ctx context.Context, name string, ping PingFunc) string {
	if err := ping(ctx); err != nil {
		telemetry.Warn("health.check_failed", map[string]any{"dependency": name, "error": err.Error()})
		return StateDown
	}
	return StateUp
}

// Handler serves the health report, with 503 when OK is false.
func (s *Service) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		rep := s.Status(c.Request.Context())
		status := http.StatusOK
		if !rep.OK {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, rep)
	}
}
