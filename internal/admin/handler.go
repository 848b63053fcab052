// Package admin serves the operator console API.
package admin

import (
	"context"
	"net/http"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"

	"resume-insight/internal/analyses"
	"resume-insight/internal/contact"
	"resume-insight/internal/shared/apperr"
	"resume-insight/internal/shared/auth"
	"resume-insight/internal/shared/server/middleware"
	"resume-insight/internal/shared/server/respond"
	"resume-insight/internal/shared/telemetry"
	"resume-insight/internal/users"
)

type UserDirectory interface {
	List(ctx context.Context, limit, offset int) ([]users.User, error)
	Count(ctx context.Context) (int, error)
	Delete(ctx context.Context, userID string) error
}

type AnalysisHistory interface {
	ListAll(ctx context.Context, limit, offset int) ([]analyses.Record, error)
	Stats(ctx context.Context) (analyses.Stats, error)
}

type ContactInbox interface {
	List(ctx context.Context, status string, limit, offset int) ([]contact.Message, error)
	SetStatus(ctx context.Context, id, status string) (contact.Message, error)
	CountOpen(ctx context.Context) (int, error)
}

type Handler struct {
	Users    UserDirectory
	Analyses AnalysisHistory
	Contacts ContactInbox
}

func NewHandler(u UserDirectory, a AnalysisHistory, c ContactInbox) *Handler {
	return &Handler{Users: u, Analyses: a, Contacts: c}
}

// RegisterRoutes attaches admin routes. Every route requires the admin role.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/admin", middleware.RequireRole(auth.RoleAdmin))
	g.GET("/stats", h.stats)
	g.GET("/users", h.listUsers)
	g.DELETE("/users/:id", h.deleteUser)
	g.GET("/analyses", h.listAnalyses)
	g.GET("/contacts", h.listContacts)
	g.PATCH("/contacts/:id", h.updateContact)
}

func (h *Handler) stats(c *gin.Context) {
	ctx := c.Request.Context()
	userCount, err := h.Users.Count(ctx)
	if err != nil {
		h.internal(c, "stats", err)
		return
	}
	analysisStats, err := h.Analyses.Stats(ctx)
	if err != nil {
		h.internal(c, "stats", err)
		return
	}
	openContacts, err := h.Contacts.CountOpen(ctx)
	if err != nil {
		h.internal(c, "stats", err)
		return
	}
	respond.OK(c, gin.H{
		"users":        userCount,
		"analyses":     analysisStats,
		"openContacts": openContacts,
	})
}

func (h *Handler) listUsers(c *gin.Context) {
	limit, offset := pageParams(c)
	list, err := h.Users.List(c.Request.Context(), limit, offset)
	if err != nil {
		h.internal(c, "list_users", err)
		return
	}
	respond.OK(c, gin.H{"items": list, "limit": limit, "offset": offset})
}

func (h *Handler) deleteUser(c *gin.Context) {
	id := c.Param("id")
	if id == middleware.UserIDFromContext(c) {
		respond.Error(c, http.StatusBadRequest, "validation_error", "admins cannot delete their own account", nil)
		return
	}
	if err := h.Users.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, users.ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "user not found", nil)
			return
		}
		h.internal(c, "delete_user", err)
		return
	}
	telemetry.Info("admin.user_deleted", map[string]any{
		"admin_id": middleware.UserIDFromContext(c),
		"user_id":  id,
	})
	c.Status(http.StatusNoContent)
}

func (h *Handler) listAnalyses(c *gin.Context) {
	limit, offset := pageParams(c)
	list, err := h.Analyses.ListAll(c.Request.Context(), limit, offset)
	if err != nil {
		h.internal(c, "list_analyses", err)
		return
	}
	respond.OK(c, gin.H{"items": list, "limit": limit, "offset": offset})
}

func (h *Handler) listContacts(c *gin.Context) {
	limit, offset := pageParams(c)
	list, err := h.Contacts.List(c.Request.Context(), c.Query("status"), limit, offset)
	if err != nil {
		if v, ok := apperr.AsValidation(err); ok {
			respond.Error(c, http.StatusBadRequest, "validation_error", v.Message, nil)
			return
		}
		h.internal(c, "list_contacts", err)
		return
	}
	respond.OK(c, gin.H{"items": list, "limit": limit, "offset": offset})
}

type contactPatch struct {
	Status string `json:"status"`
}

func (h *Handler) updateContact(c *gin.Context) {
	var req contactPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid JSON body", nil)
		return
	}
	msg, err := h.Contacts.SetStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		if v, ok := apperr.AsValidation(err); ok {
			respond.Error(c, http.StatusBadRequest, "validation_error", v.Message, nil)
			return
		}
		if errors.Is(err, contact.ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "contact message not found", nil)
			return
		}
		h.internal(c, "update_contact", err)
		return
	}
	respond.OK(c, msg)
}

func (h *Handler) internal(c *gin.Context, op string, err error) {
	telemetry.Error("admin.failed", map[string]any{
		"op":         op,
		"request_id": middleware.RequestIDFromContext(c),
		"error":      err.Error(),
	})
	respond.Error(c, http.StatusInternalServerError, "internal_error", "request failed", nil)
}

func pageParams(c *gin.Context) (int, int) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
