package submissions

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"submission-backend/internal/shared/server/middleware"
	"submission-backend/internal/shared/server/respond"
	"submission-backend/internal/shared/storage/object"
)

// DefaultMaxUploadBytes caps a workbook upload when no limit is configured.
const DefaultMaxUploadBytes int64 = 20 << 20

// Handler wires HTTP handlers to the submissions service.
type Handler struct {
	Svc            *Service
	MaxUploadBytes int64
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &Handler{Svc: svc, MaxUploadBytes: maxUploadBytes}
}

// RegisterRoutes attaches submission routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/submissions", h.upload)
	rg.GET("/submissions", h.listMine)
	rg.GET("/submissions/:id", h.preview)
	rg.GET("/submissions/:id/file", h.download)
	rg.POST("/submissions/:id/submit", h.submit)

	manager := rg.Group("/manager/submissions")
	manager.GET("", h.listPendingForManager)
	manager.POST("/:id/approve", h.approveAsManager)
	manager.POST("/:id/reject", h.rejectAsManager)

	senior := rg.Group("/senior/submissions")
	senior.GET("", h.listPendingForSenior)
	senior.POST("/:id/approve", h.approveAsSenior)
	senior.POST("/:id/reject", h.rejectAsSenior)
}

func actorFromContext(c *gin.Context) Actor {
	return Actor{
		ID:    middleware.UserIDFromContext(c),
		Roles: middleware.RolesFromContext(c),
	}
}

func (h *Handler) upload(c *gin.Context) {
	actor := actorFromContext(c)
	if !actor.HasRole(RoleDataProvider) {
		writeError(c, ErrForbidden, "")
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes)
	fileHeader, err := c.FormFile("file")
	if err != nil {
		if bodyTooLarge(err) {
			respond.Error(c, http.StatusRequestEntityTooLarge, "file_too_large", "file exceeds upload limit", gin.H{"maxBytes": h.MaxUploadBytes})
			return
		}
		respond.Error(c, http.StatusBadRequest, "validation_error", "No file provided", nil)
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "could not read uploaded file", nil)
		return
	}
	defer f.Close()

	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	sub, err := h.Svc.Upload(ctx, actor, fileHeader.Filename, f)
	if err != nil {
		writeError(c, err, "failed to create submission")
		return
	}
	c.Set(middleware.SubmissionIDKey, sub.ID)
	respond.Created(c, gin.H{"id": sub.ID, "status": sub.Status})
}

func (h *Handler) preview(c *gin.Context) {
	id := c.Param("id")
	c.Set(middleware.SubmissionIDKey, id)
	sub, err := h.Svc.Preview(c.Request.Context(), actorFromContext(c), id)
	if err != nil {
		writeError(c, err, "failed to fetch submission")
		return
	}
	respond.OK(c, previewBody(sub))
}

func (h *Handler) download(c *gin.Context) {
	id := c.Param("id")
	c.Set(middleware.SubmissionIDKey, id)
	sub, rc, err := h.Svc.OpenWorkbook(c.Request.Context(), actorFromContext(c), id)
	if err != nil {
		writeError(c, err, "failed to load workbook")
		return
	}
	defer rc.Close()

	c.Header("Content-Type", object.WorkbookContentType)
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": sub.FileName}))
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, rc)
}

func (h *Handler) listMine(c *gin.Context) {
	limit, offset := pagination(c)
	subs, err := h.Svc.ListMine(c.Request.Context(), actorFromContext(c), limit, offset)
	if err != nil {
		writeError(c, err, "failed to list submissions")
		return
	}
	respond.OK(c, gin.H{"items": ToSummaries(subs), "limit": limit, "offset": offset})
}

func (h *Handler) listPendingForManager(c *gin.Context) {
	limit, offset := pagination(c)
	subs, err := h.Svc.ListPendingForManager(c.Request.Context(), actorFromContext(c), limit, offset)
	if err != nil {
		writeError(c, err, "failed to list submissions")
		return
	}
	respond.OK(c, gin.H{"items": ToSummaries(subs), "limit": limit, "offset": offset})
}

func (h *Handler) listPendingForSenior(c *gin.Context) {
	limit, offset := pagination(c)
	subs, err := h.Svc.ListPendingForSenior(c.Request.Context(), actorFromContext(c), limit, offset)
	if err != nil {
		writeError(c, err, "failed to list submissions")
		return
	}
	respond.OK(c, gin.H{"items": ToSummaries(subs), "limit": limit, "offset": offset})
}

func (h *Handler) submit(c *gin.Context) {
	h.transition(c, h.Svc.Submit)
}

func (h *Handler) approveAsManager(c *gin.Context) {
	h.transition(c, h.Svc.ApproveAsManager)
}

func (h *Handler) rejectAsManager(c *gin.Context) {
	comment := readComment(c)
	h.transition(c, func(ctx context.Context, a Actor, id string) (Submission, error) {
		return h.Svc.RejectAsManager(ctx, a, id, comment)
	})
}

func (h *Handler) approveAsSenior(c *gin.Context) {
	h.transition(c, h.Svc.ApproveAsSenior)
}

func (h *Handler) rejectAsSenior(c *gin.Context) {
	comment := readComment(c)
	h.transition(c, func(ctx context.Context, a Actor, id string) (Submission, error) {
		return h.Svc.RejectAsSenior(ctx, a, id, comment)
	})
}

func (h *Handler) transition(c *gin.Context, fn func(ctx context.Context, actor Actor, id string) (Submission, error)) {
	id := c.Param("id")
	c.Set(middleware.SubmissionIDKey, id)
	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	sub, err := fn(ctx, actorFromContext(c), id)
	if err != nil {
		writeError(c, err, "failed to update submission")
		return
	}
	c.Set(middleware.StatusTransitionKey, "->"+string(sub.Status))
	respond.OK(c, gin.H{"id": sub.ID, "status": sub.Status})
}

// readComment accepts a JSON body or a form field. A missing or malformed
// body yields an empty comment, which the workflow rejects.
func readComment(c *gin.Context) string {
	var req rejectRequest
	if c.ContentType() == "application/json" {
		_ = c.ShouldBindJSON(&req)
		return req.Comment
	}
	return c.PostForm("comment")
}

func pagination(c *gin.Context) (int, int) {
	limit := 50
	offset := 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > 500 {
		limit = 500
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			offset = parsed
		}
	}
	return limit, offset
}

// writeError maps workflow errors onto the response envelope. Internal
// failures never echo their cause.
func writeError(c *gin.Context, err error, internalMessage string) {
	switch {
	case errors.Is(err, ErrValidation):
		respond.Error(c, http.StatusBadRequest, "validation_error", validationMessage(err), nil)
	case errors.Is(err, ErrForbidden):
		respond.Error(c, http.StatusForbidden, "forbidden", "not permitted", nil)
	case errors.Is(err, ErrNotFound), errors.Is(err, object.ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "submission not found", nil)
	case errors.Is(err, ErrPreconditionFailed):
		respond.Error(c, http.StatusConflict, "precondition_failed", "submission is not in the required state", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", internalMessage, nil)
	}
}

// bodyTooLarge detects the MaxBytesReader limit. multipart parsing does not
// always wrap the reader error, so the message is checked as well.
func bodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large")
}

func validationMessage(err error) string {
	return strings.TrimPrefix(err.Error(), ErrValidation.Error()+": ")
}
