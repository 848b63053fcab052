package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type aiStub bool

func (a aiStub) CheckHealth(context.Context) bool { return bool(a) }

func ok(context.Context) error   { return nil }
func fail(context.Context) error { return errors.New("connection refused") }

func TestStatusReportsEachDependency(t *testing.T) {
	rep := NewService(aiStub(true), ok, nil).Status(context.Background())
	assert.True(t, rep.OK)
	assert.Equal(t, StateUp, rep.AIService)
	assert.Equal(t, StateUp, rep.Database)
	assert.Equal(t, StateDisabled, rep.Cache)
}

func TestAIDownOnlyDegrades(t *testing.T) {
	rep := NewService(aiStub(false), ok, ok).Status(context.Background())
	assert.True(t, rep.OK)
	assert.Equal(t, StateDown, rep.AIService)
}

func TestHandlerReturns503WhenStoreDown(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/health", NewService(aiStub(true), fail, ok).Handler())

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
	assert.Contains(t, resp.Body.String(), `"database":"down"`)
}
