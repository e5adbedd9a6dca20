package router

import (
	"github.com/gin-gonic/gin"

	"basegraph.app/insight/internal/http/handler"
)

// DocumentRouter wires the document lifecycle routes. The static
// routes sit beside the :id tree; gin resolves them first.
func DocumentRouter(rg *gin.RouterGroup,
	uploads *handler.UploadHandler,
	documents *handler.DocumentHandler,
	results *handler.ResultHandler,
	switcher *handler.ViewSwitchHandler,
	recommend *handler.RecommendHandler,
) {
	rg.POST("/upload", uploads.Upload)
	rg.GET("/history", documents.History)

	rg.GET("/:id", documents.Get)
	rg.DELETE("/:id", documents.Delete)
	rg.GET("/:id/progress", documents.Progress)
	rg.GET("/:id/result", results.Result)
	rg.GET("/:id/views/status", results.ViewsStatus)
	rg.POST("/:id/switch-view", switcher.Switch)
	rg.POST("/:id/recommend-views", recommend.Recommend)
}
