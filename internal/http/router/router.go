package router

import (
	"github.com/gin-gonic/gin"

	"basegraph.app/insight/internal/http/handler"
	"basegraph.app/insight/internal/progress"
	"basegraph.app/insight/internal/service"
)

func SetupRoutes(router *gin.Engine, services *service.Services, broker *progress.Broker) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	wsHandler := handler.NewProgressWSHandler(broker)
	ProgressRouter(router.Group("/ws/progress"), wsHandler)

	v1 := router.Group("/api/v1")
	{
		DocumentRouter(v1.Group("/documents"),
			handler.NewUploadHandler(services.Upload()),
			handler.NewDocumentHandler(services.Documents()),
			handler.NewResultHandler(services.Results()),
			handler.NewViewSwitchHandler(services.ViewSwitch()),
			handler.NewRecommendHandler(services.Recommend()),
		)
	}
}
