package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"resume-insight/internal/jobstore"
	"resume-insight/internal/shared/server/respond"
	"resume-insight/internal/shared/telemetry"
	"resume-insight/internal/users"
)

const (
	statePrefix     = "oauthstate:"
	defaultUserInfo = "https://www.googleapis.com/oauth2/v2/userinfo"
)

// SessionIssuer signs in a Google identity.
type SessionIssuer interface {
	SignInWithGoogle(ctx context.Context, p users.GoogleProfile) (users.Session, error)
}

// GoogleConfig configures Google sign-in.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	UIRedirect   string
}

// GoogleService handles Google OAuth flows.
type GoogleService struct {
	oauthConfig *oauth2.Config
	uiRedirect  string
	stateTTL    time.Duration
	states      jobstore.Store
	users       SessionIssuer
	userInfoURL string
}

// NewGoogleService builds a GoogleService. OAuth state is kept in states so
// any instance sharing the store can finish the flow.
func NewGoogleService(cfg GoogleConfig, states jobstore.Store, issuer SessionIssuer) *GoogleService {
	return &GoogleService{
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		},
		uiRedirect:  cfg.UIRedirect,
		stateTTL:    5 * time.Minute,
		states:      states,
		users:       issuer,
		userInfoURL: defaultUserInfo,
	}
}

// Configured reports whether client credentials are present.
func (s *GoogleService) Configured() bool {
	return s.oauthConfig.ClientID != "" && s.oauthConfig.ClientSecret != "" && s.oauthConfig.RedirectURL != ""
}

// RegisterRoutes attaches Google auth routes.
func (s *GoogleService) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/auth/google/start", s.start)
	rg.GET("/auth/google/callback", s.callback)
}

func (s *GoogleService) start(c *gin.Context) {
	if !s.Configured() {
		respond.Error(c, http.StatusServiceUnavailable, "auth_not_configured", "Google auth not configured", nil)
		return
	}

	state := uuid.NewString()
	if err := s.states.Set(c.Request.Context(), statePrefix+state, []byte("1"), s.stateTTL); err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to start sign-in", nil)
		return
	}

	c.Redirect(http.StatusFound, s.oauthConfig.AuthCodeURL(state))
}

func (s *GoogleService) callback(c *gin.Context) {
	state := c.Query("state")
	code := c.Query("code")
	if state == "" || code == "" {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "missing state or code", nil)
		return
	}

	ctx := c.Request.Context()
	if !s.consumeState(ctx, state) {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "invalid or expired state", nil)
		return
	}

	token, err := s.oauthConfig.Exchange(ctx, code)
	if err != nil {
		telemetry.Warn("auth.google_exchange_failed", map[string]any{"error": err.Error()})
		respond.Error(c, http.StatusBadRequest, "invalid_request", "failed to exchange code", nil)
		return
	}

	info, err := s.fetchUserInfo(ctx, token)
	if err != nil {
		telemetry.Warn("auth.google_profile_failed", map[string]any{"error": err.Error()})
		respond.Error(c, http.StatusBadGateway, "auth_failed", "failed to fetch user profile", nil)
		return
	}
	if info.Email == "" {
		respond.Error(c, http.StatusBadGateway, "auth_failed", "invalid user profile", nil)
		return
	}

	session, err := s.users.SignInWithGoogle(ctx, users.GoogleProfile{
		Email:         info.Email,
		Name:          info.Name,
		EmailVerified: info.VerifiedEmail,
	})
	if err != nil {
		respond.Error(c, http.StatusForbidden, "auth_failed", "unable to sign in with this Google account", nil)
		return
	}

	redirectURL, err := appendToken(s.uiRedirect, session.Token)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to redirect", nil)
		return
	}

	c.Redirect(http.StatusFound, redirectURL)
}

func (s *GoogleService) consumeState(ctx context.Context, state string) bool {
	key := statePrefix + state
	_, ok, err := s.states.Get(ctx, key)
	if err != nil || !ok {
		return false
	}
	_ = s.states.Delete(ctx, key)
	return true
}

type googleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func (s *GoogleService) fetchUserInfo(ctx context.Context, token *oauth2.Token) (googleUserInfo, error) {
	client := s.oauthConfig.Client(ctx, token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.userInfoURL, nil)
	if err != nil {
		return googleUserInfo{}, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return googleUserInfo{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return googleUserInfo{}, fmt.Errorf("userinfo status %d", resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return googleUserInfo{}, errors.Wrap(err, "decode userinfo")
	}
	return info, nil
}

func appendToken(rawURL, token string) (string, error) {
	if rawURL == "" {
		return "", errors.New("redirect url required")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
