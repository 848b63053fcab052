package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-insight/internal/analyses"
	"resume-insight/internal/contact"
	"resume-insight/internal/shared/auth"
	"resume-insight/internal/shared/server/middleware"
	"resume-insight/internal/users"
)

type fixture struct {
	router   *gin.Engine
	signer   *auth.Signer
	users    *users.MemoryRepo
	contacts *contact.Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	signer, err := auth.NewSigner("admin-test-secret", time.Hour)
	require.NoError(t, err)

	userRepo := users.NewMemoryRepo()
	userSvc := &users.Service{Repo: userRepo}
	history := analyses.NewMemoryRepo()
	analysisSvc := analyses.NewService(nil, nil, history, nil)
	contacts := contact.NewService(contact.NewMemoryRepo(), nil, "")

	r := gin.New()
	r.Use(middleware.Auth(signer))
	NewHandler(userSvc, analysisSvc, contacts).RegisterRoutes(r.Group("/api"))
	return fixture{router: r, signer: signer, users: userRepo, contacts: contacts}
}

func (f fixture) do(t *testing.T, method, path, role, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if role != "" {
		token, err := f.signer.Sign("admin-1", "boss@example.com", "Boss", role)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	f.router.ServeHTTP(resp, req)
	return resp
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/api/admin/stats", "", "").Code)
	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodGet, "/api/admin/stats", auth.RoleUser, "").Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/admin/stats", auth.RoleAdmin, "").Code)
}

func TestAdminStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.users.Create(ctx, users.User{ID: "u1", Email: "a@example.com", Role: auth.RoleUser}))
	_, err := f.contacts.Submit(ctx, contact.SubmitInput{Name: "A", Email: "a@example.com", Message: "hi"})
	require.NoError(t, err)

	resp := f.do(t, http.MethodGet, "/api/admin/stats", auth.RoleAdmin, "")
	require.Equal(t, http.StatusOK, resp.Code)
	var payload struct {
		Users        int            `json:"users"`
		OpenContacts int            `json:"openContacts"`
		Analyses     analyses.Stats `json:"analyses"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &payload))
	assert.Equal(t, 1, payload.Users)
	assert.Equal(t, 1, payload.OpenContacts)
	assert.Equal(t, 0, payload.Analyses.Total)
}

func TestAdminDeleteUser(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.users.Create(context.Background(), users.User{ID: "u1", Email: "a@example.com"}))

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodDelete, "/api/admin/users/admin-1", auth.RoleAdmin, "").Code)
	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/api/admin/users/u1", auth.RoleAdmin, "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodDelete, "/api/admin/users/u1", auth.RoleAdmin, "").Code)
}

func TestAdminUpdateContact(t *testing.T) {
	f := newFixture(t)
	msg, err := f.contacts.Submit(context.Background(), contact.SubmitInput{Name: "A", Email: "a@example.com", Message: "hi"})
	require.NoError(t, err)

	resp := f.do(t, http.MethodPatch, "/api/admin/contacts/"+msg.ID, auth.RoleAdmin, `{"status":"resolved"}`)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"status":"resolved"`)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPatch, "/api/admin/contacts/"+msg.ID, auth.RoleAdmin, `{"status":"bogus"}`).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPatch, "/api/admin/contacts/missing", auth.RoleAdmin, `{"status":"open"}`).Code)

	resp = f.do(t, http.MethodGet, "/api/admin/contacts?status=open", auth.RoleAdmin, "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"items":[]`)
}
