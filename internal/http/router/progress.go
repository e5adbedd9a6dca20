package router

import (
	"github.com/gin-gonic/gin"

	"basegraph.app/insight/internal/http/handler"
)

// ProgressRouter mounts the WebSocket progress stream.
func ProgressRouter(rg *gin.RouterGroup, h *handler.ProgressWSHandler) {
	rg.GET("/:task_id", h.Stream)
}
