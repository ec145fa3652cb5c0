package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"submission-backend/internal/shared/server/respond"
	"submission-backend/internal/shared/telemetry"
)

// Recovery turns a handler panic into a 500 envelope and logs the stack.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				telemetry.Error("http.panic", map[string]any{
					"request_id":    RequestIDFromContext(c),
					"submission_id": c.GetString(SubmissionIDKey),
					"error":         rec,
					"stack":         string(debug.Stack()),
					"path":          c.Request.URL.Path,
					"method":        c.Request.Method,
				})
				respond.Error(c, http.StatusInternalServerError, "internal_error", "unexpected server error", nil)
			}
		}()
		c.Next()
	}
}
