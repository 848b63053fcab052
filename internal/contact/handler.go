package contact

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"resume-insight/internal/shared/apperr"
	"resume-insight/internal/shared/server/respond"
)

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/contact", h.submit)
}

func (h *Handler) submit(c *gin.Context) {
	var req SubmitInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid JSON body", nil)
		return
	}
	msg, err := h.Svc.Submit(c.Request.Context(), req)
	if err != nil {
		if v, ok := apperr.AsValidation(err); ok {
			respond.Error(c, http.StatusBadRequest, "validation_error", v.Message, nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to send message", nil)
		return
	}
	respond.Created(c, gin.H{"id": msg.ID, "message": "Thanks, we will get back to you soon"})
}
