package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"basegraph.app/insight/internal/http/dto"
	"basegraph.app/insight/internal/service"
)

type RecommendHandler struct {
	recommend service.RecommendService
}

func NewRecommendHandler(recommend service.RecommendService) *RecommendHandler {
	return &RecommendHandler{recommend: recommend}
}

// Recommend re-runs view detection against the stored intermediate
// artifacts without touching the persisted profile.
func (h *RecommendHandler) Recommend(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	rec, err := h.recommend.Recommend(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "no extracted content for document")
		return
	}

	c.JSON(http.StatusOK, dto.ToRecommendViewsResponse(rec))
}
