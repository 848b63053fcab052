package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"resume-insight/internal/jobstore"
	"resume-insight/internal/users"
)

type fakeIssuer struct {
	got users.GoogleProfile
}

func (f *fakeIssuer) SignInWithGoogle(_ context.Context, p users.GoogleProfile) (users.Session, error) {
	f.got = p
	return users.Session{Token: "signed-token", User: users.User{Email: p.Email}}, nil
}

func newGoogleRouter(svc *GoogleService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	svc.RegisterRoutes(r.Group("/api"))
	return r
}

func TestStartNotConfigured(t *testing.T) {
	svc := NewGoogleService(GoogleConfig{}, jobstore.NewMemoryStore(0, nil), &fakeIssuer{})
	r := newGoogleRouter(svc)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/auth/google/start", nil))
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
}

func TestStartStoresState(t *testing.T) {
	store := jobstore.NewMemoryStore(0, nil)
	svc := NewGoogleService(GoogleConfig{ClientID: "id", ClientSecret: "secret", RedirectURL: "http://localhost/cb"}, store, &fakeIssuer{})
	r := newGoogleRouter(svc)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/auth/google/start", nil))
	require.Equal(t, http.StatusFound, resp.Code)

	loc, err := url.Parse(resp.Header().Get("Location"))
	require.NoError(t, err)
	state := loc.Query().Get("state")
	require.NotEmpty(t, state)
	assert.True(t, svc.consumeState(context.Background(), state))
	assert.False(t, svc.consumeState(context.Background(), state), "state is single use")
}

func TestCallbackRejectsUnknownState(t *testing.T) {
	svc := NewGoogleService(GoogleConfig{ClientID: "id", ClientSecret: "secret", RedirectURL: "http://localhost/cb"}, jobstore.NewMemoryStore(0, nil), &fakeIssuer{})
	r := newGoogleRouter(svc)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/auth/google/callback?state=nope&code=abc", nil))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestCallbackSignsInAndRedirects(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/token":
			_, _ = w.Write([]byte(`{"access_token":"at","token_type":"Bearer","expires_in":3600}`))
		case "/userinfo":
			assert.Equal(t, "Bearer at", r.Header.Get("Authorization"))
			_, _ = w.Write([]byte(`{"id":"1","email":"g@example.com","verified_email":true,"name":"G"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer provider.Close()

	store := jobstore.NewMemoryStore(0, nil)
	issuer := &fakeIssuer{}
	svc := NewGoogleService(GoogleConfig{
		ClientID:     "id",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost/cb",
		UIRedirect:   "http://ui.local/auth/callback",
	}, store, issuer)
	svc.oauthConfig.Endpoint = oauth2.Endpoint{AuthURL: provider.URL + "/auth", TokenURL: provider.URL + "/token"}
	svc.userInfoURL = provider.URL + "/userinfo"
	require.NoError(t, store.Set(context.Background(), statePrefix+"s1", []byte("1"), 0))

	r := newGoogleRouter(svc)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/auth/google/callback?state=s1&code=abc", nil))

	require.Equal(t, http.StatusFound, resp.Code, resp.Body.String())
	assert.Equal(t, "http://ui.local/auth/callback?token=signed-token", resp.Header().Get("Location"))
	assert.Equal(t, "g@example.com", issuer.got.Email)
	assert.True(t, issuer.got.EmailVerified)
}

func TestAppendToken(t *testing.T) {
	got, err := appendToken("http://ui.local/cb?x=1", "tok")
	require.NoError(t, err)
	assert.Equal(t, "http://ui.local/cb?token=tok&x=1", got)

	_, err = appendToken("", "tok")
	assert.Error(t, err)
}
