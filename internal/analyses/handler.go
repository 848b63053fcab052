package analyses

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"

	"resume-insight/internal/documents"
	"resume-insight/internal/shared/apperr"
	"resume-insight/internal/shared/server/middleware"
	"resume-insight/internal/shared/server/respond"
)

// Form fields of an analysis submission.
const (
	FieldResume         = "resume"
	FieldJobDescription = "jobDescription"
)

// multipart framing allowance on top of two maximum-size files
const formOverheadBytes = 1 << 20

// Handler wires HTTP handlers to the analyses service.
type Handler struct {
	Svc    *Service
	Policy documents.Policy
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, policy documents.Policy) *Handler {
	return &Handler{Svc: svc, Policy: policy}
}

// RegisterRoutes attaches job and history routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/resume/analyze", h.submit)
	rg.GET("/resume/status/:analysisId", h.status)
	rg.GET("/resume/result/:analysisId", h.result)

	history := rg.Group("/analyses", middleware.RequireAuth())
	history.GET("", h.listHistory)
	history.GET("/:id", h.getHistory)
	history.DELETE("/:id", h.deleteHistory)
}

func (h *Handler) submit(c *gin.Context) {
	formMemory := formMemoryFor(h.Policy)
	if h.Policy.MaxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, formMemory)
	}
	if err := c.Request.ParseMultipartForm(formMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			respond.Error(c, http.StatusRequestEntityTooLarge, "payload_too_large", "upload exceeds the maximum allowed size", nil)
			return
		}
		respond.Error(c, http.StatusBadRequest, "validation_error", "Missing files", nil)
		return
	}

	defer c.Request.MultipartForm.RemoveAll()
	files := c.Request.MultipartForm.File
	resumes, jds := files[FieldResume], files[FieldJobDescription]
	if len(resumes) == 0 || len(jds) == 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "Missing files", nil)
		return
	}
	if len(resumes) > 1 || len(jds) > 1 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "exactly one resume and one jobDescription file are allowed", nil)
		return
	}
	resumeHeader, jdHeader := resumes[0], jds[0]
	resume, err := documents.FromFileHeader(resumeHeader, FieldResume, h.Policy)
	if err != nil {
		h.writeSubmitError(c, err)
		return
	}
	jd, err := documents.FromFileHeader(jdHeader, FieldJobDescription, h.Policy)
	if err != nil {
		h.writeSubmitError(c, err)
		return
	}

	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	status, err := h.Svc.Submit(ctx, SubmitInput{
		Resume:         resume,
		JobDescription: jd,
		UserID:         middleware.UserIDFromContext(c),
	})
	if err != nil {
		h.writeSubmitError(c, err)
		return
	}
	c.Set("analysisId", status.AnalysisID)
	respond.Accepted(c, gin.H{
		"analysisId": status.AnalysisID,
		"status":     status.Status,
	})
}

// formMemoryFor sizes the multipart memory budget to the body ceiling so that
// accepted uploads are never spooled to temporary files.
func formMemoryFor(p documents.Policy) int64 {
	if p.MaxBytes <= 0 {
		return 32 << 20
	}
	return 2*p.MaxBytes + formOverheadBytes
}

func (h *Handler) writeSubmitError(c *gin.Context, err error) {
	if v, ok := apperr.AsValidation(err); ok {
		respond.Error(c, http.StatusBadRequest, "validation_error", v.Message, nil)
		return
	}
	respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to start analysis", nil)
}

func (h *Handler) status(c *gin.Context) {
	id := c.Param("analysisId")
	c.Set("analysisId", id)
	st, err := h.Svc.Status(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "Analysis not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load analysis status", nil)
		return
	}
	respond.OK(c, st)
}

func (h *Handler) result(c *gin.Context) {
	id := c.Param("analysisId")
	c.Set("analysisId", id)
	report, err := h.Svc.Result(c.Request.Context(), id)
	if err != nil {
		var failed *JobFailedError
		switch {
		case errors.Is(err, ErrStillProcessing):
			respond.Accepted(c, gin.H{
				"analysisId": id,
				"status":     StatusProcessing,
				"message":    "Analysis still processing",
			})
		case errors.As(err, &failed):
			respond.Error(c, http.StatusUnprocessableEntity, "analysis_failed", failed.Message, gin.H{"analysisId": id})
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "Analysis not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load analysis result", nil)
		}
		return
	}
	respond.OK(c, gin.H{
		"analysisId": id,
		"status":     StatusCompleted,
		"result":     report,
	})
}

func (h *Handler) listHistory(c *gin.Context) {
	limit, offset := pageParams(c)
	records, err := h.Svc.ListHistory(c.Request.Context(), middleware.UserIDFromContext(c), limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list analyses", nil)
		return
	}
	respond.OK(c, gin.H{"items": records, "limit": limit, "offset": offset})
}

func (h *Handler) getHistory(c *gin.Context) {
	entry, err := h.Svc.GetHistory(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load analysis", nil)
		return
	}
	respond.OK(c, entry)
}

func (h *Handler) deleteHistory(c *gin.Context) {
	err := h.Svc.DeleteHistory(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to delete analysis", nil)
		return
	}
	c.Status(http.StatusNoContent)
}

// pageParams reads limit and offset query parameters, ignoring bad values.
func pageParams(c *gin.Context) (int, int) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
