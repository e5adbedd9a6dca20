package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"basegraph.app/insight/internal/apperr"
	"basegraph.app/insight/internal/http/dto"
	"basegraph.app/insight/internal/model"
	"basegraph.app/insight/internal/service"
)

type ViewSwitchHandler struct {
	switcher service.ViewSwitchService
}

func NewViewSwitchHandler(switcher service.ViewSwitchService) *ViewSwitchHandler {
	return &ViewSwitchHandler{switcher: switcher}
}

// Switch serves the requested view from the stored results, generating
// it inline from the intermediate artifacts on a cache miss.
func (h *ViewSwitchHandler) Switch(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	view := c.Query("view")
	if view == "" {
		c.JSON(http.StatusBadRequest,
			dto.NewErrorResponse(apperr.KindBadRequest, "view query parameter is required", nil))
		return
	}

	sw, err := h.switcher.Switch(c.Request.Context(), id, model.ViewName(view))
	if err != nil {
		respondError(c, err, "document not found")
		return
	}

	c.JSON(http.StatusOK, dto.ToSwitchViewResponse(sw))
}
