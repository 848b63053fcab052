package users

import (
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"

	"resume-insight/internal/otp"
	"resume-insight/internal/shared/apperr"
	"resume-insight/internal/shared/server/middleware"
	"resume-insight/internal/shared/server/respond"
)

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches the password and OTP auth routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/auth")
	g.POST("/register", h.register)
	g.POST("/verify-otp", h.verifyOTP)
	g.POST("/resend-otp", h.resendOTP)
	g.POST("/login", h.login)
	g.POST("/forgot-password", h.forgotPassword)
	g.POST("/reset-password", h.resetPassword)
	g.GET("/me", middleware.RequireAuth(), h.me)
}

type emailRequest struct {
	Email string `json:"email"`
}

type verifyRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type resetRequest struct {
	Email    string `json:"email"`
	OTP      string `json:"otp"`
	Password string `json:"password"`
}

func (h *Handler) register(c *gin.Context) {
	var req RegisterInput
	if !bind(c, &req) {
		return
	}
	if err := h.Svc.Register(c.Request.Context(), req); err != nil {
		writeError(c, err)
		return
	}
	respond.Accepted(c, gin.H{"message": "Verification code sent", "email": req.Email})
}

func (h *Handler) verifyOTP(c *gin.Context) {
	var req verifyRequest
	if !bind(c, &req) {
		return
	}
	session, err := h.Svc.VerifyRegistration(c.Request.Context(), req.Email, req.OTP)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.Created(c, session)
}

func (h *Handler) resendOTP(c *gin.Context) {
	var req emailRequest
	if !bind(c, &req) {
		return
	}
	if err := h.Svc.ResendRegistrationCode(c.Request.Context(), req.Email); err != nil {
		writeError(c, err)
		return
	}
	respond.Accepted(c, gin.H{"message": "Verification code sent"})
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if !bind(c, &req) {
		return
	}
	session, err := h.Svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, session)
}

func (h *Handler) forgotPassword(c *gin.Context) {
	var req emailRequest
	if !bind(c, &req) {
		return
	}
	if err := h.Svc.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		writeError(c, err)
		return
	}
	respond.Accepted(c, gin.H{"message": "If the account exists, a reset code has been sent"})
}

func (h *Handler) resetPassword(c *gin.Context) {
	var req resetRequest
	if !bind(c, &req) {
		return
	}
	if err := h.Svc.ResetPassword(c.Request.Context(), req.Email, req.OTP, req.Password); err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, gin.H{"message": "Password updated"})
}

func (h *Handler) me(c *gin.Context) {
	user, err := h.Svc.GetByID(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "user not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load user", nil)
		return
	}
	respond.OK(c, user)
}

func bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid JSON body", nil)
		return false
	}
	return true
}

func writeError(c *gin.Context, err error) {
	if v, ok := apperr.AsValidation(err); ok {
		respond.Error(c, http.StatusBadRequest, "validation_error", v.Message, nil)
		return
	}
	switch {
	case errors.Is(err, ErrEmailTaken):
		respond.Error(c, http.StatusConflict, "email_taken", "An account with this email already exists", nil)
	case errors.Is(err, ErrInvalidCredentials):
		respond.Error(c, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password", nil)
	case errors.Is(err, otp.ErrInvalidCode):
		respond.Error(c, http.StatusBadRequest, "invalid_otp", "Invalid verification code", nil)
	case errors.Is(err, otp.ErrExpired):
		respond.Error(c, http.StatusBadRequest, "otp_expired", "Verification code expired, request a new one", nil)
	case errors.Is(err, otp.ErrTooManyAttempts):
		respond.Error(c, http.StatusTooManyRequests, "otp_locked", "Too many attempts, request a new code", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "request failed", nil)
	}
}
