package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"basegraph.app/insight/internal/apperr"
	"basegraph.app/insight/internal/http/dto"
	"basegraph.app/insight/internal/store"
)

// respondError writes the taxonomy failure body for err. Missing rows
// map to a plain 404 with the caller-supplied message instead.
func respondError(c *gin.Context, err error, missing string) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": missing})
		return
	}

	status := apperr.KindOf(err).HTTPStatus()
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(c.Request.Context(), "request handling failed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"error", err,
		)
	}
	c.JSON(status, dto.ToErrorResponse(err))
}

// pathID parses a positive snowflake ID from a path parameter. On
// failure it writes the 400 body and reports false.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest,
			dto.NewErrorResponse(apperr.KindBadRequest, "invalid "+name, nil))
		return 0, false
	}
	return id, true
}
