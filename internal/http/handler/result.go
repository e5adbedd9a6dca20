package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"basegraph.app/insight/internal/http/dto"
	"basegraph.app/insight/internal/model"
	"basegraph.app/insight/internal/service"
)

type ResultHandler struct {
	results service.ResultService
}

func NewResultHandler(results service.ResultService) *ResultHandler {
	return &ResultHandler{results: results}
}

// Result serves stored view artifacts. With ?view= it returns that one
// view, with ?views=a,b the stored subset, and with neither the full
// multi-view bundle.
func (h *ResultHandler) Result(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	if view := c.Query("view"); view != "" {
		res, err := h.results.SingleView(ctx, id, model.ViewName(view))
		if err != nil {
			respondError(c, err, "no stored result for view")
			return
		}
		c.JSON(http.StatusOK, dto.ToSingleViewResultResponse(res))
		return
	}

	if raw := c.Query("views"); raw != "" {
		res, err := h.results.SelectedViews(ctx, id, splitViews(raw))
		if err != nil {
			respondError(c, err, "no stored results for requested views")
			return
		}
		c.JSON(http.StatusOK, dto.ToSelectedViewsResponse(res))
		return
	}

	res, err := h.results.MultiView(ctx, id)
	if err != nil {
		respondError(c, err, "no results stored for document")
		return
	}
	c.JSON(http.StatusOK, dto.ToMultiViewResultResponse(res))
}

func (h *ResultHandler) ViewsStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	status, err := h.results.Status(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "document not found")
		return
	}

	c.JSON(http.StatusOK, dto.ToViewsStatusResponse(status))
}
