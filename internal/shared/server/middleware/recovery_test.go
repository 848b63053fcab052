package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"resume-insight/internal/shared/telemetry"
)

func TestRecoveryReturnsEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID(), Recovery())
	router.GET("/boom", func(c *gin.Context) {
		panic("boom")
	})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/boom", nil))

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
	if resp.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header")
	}
}

func TestRequestIDHonoursIncomingHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID())
	router.GET("/x", func(c *gin.Context) {
		c.String(http.StatusOK, RequestIDFromContext(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-Id", "abc123")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Body.String() != "abc123" {
		t.Fatalf("expected echoed id, got %q", resp.Body.String())
	}
}

func TestRequestIDFallsBackToCorrelationHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID())
	router.GET("/x", func(c *gin.Context) {
		c.String(http.StatusOK, telemetry.RequestID(c.Request.Context()))
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Correlation-Id", "corr-7")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Body.String() != "corr-7" {
		t.Fatalf("expected correlation id in request context, got %q", resp.Body.String())
	}
	if got := resp.Header().Get("X-Request-Id"); got != "corr-7" {
		t.Fatalf("expected response header corr-7, got %q", got)
	}
}

func TestRequestIDReplacesUnprintableHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID())
	router.GET("/x", func(c *gin.Context) {
		c.String(http.StatusOK, RequestIDFromContext(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-Id", "bad id")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if got := resp.Body.String(); got == "bad id" || len(got) != 32 {
		t.Fatalf("expected a generated 32 char id, got %q", got)
	}
}

func TestRecoveryKeepsPartialResponse(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Recovery())
	router.GET("/half", func(c *gin.Context) {
		c.String(http.StatusOK, "partial")
		panic("late")
	})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/half", nil))

	if resp.Code != http.StatusOK || resp.Body.String() != "partial" {
		t.Fatalf("expected untouched partial response, got %d %q", resp.Code, resp.Body.String())
	}
}
