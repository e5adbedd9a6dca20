package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"basegraph.app/insight/internal/apperr"
	"basegraph.app/insight/internal/http/dto"
)

// Recovery converts panics into a taxonomy-shaped 500 so clients never
// see a half-written body.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				ctx := c.Request.Context()
				stack := string(debug.Stack())

				slog.ErrorContext(ctx, "panic recovered",
					"error", err,
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
					"stack", stack,
				)

				c.AbortWithStatusJSON(http.StatusInternalServerError,
					dto.NewErrorResponse(apperr.KindServerError, "internal server error", nil))
			}
		}()
		c.Next()
	}
}
