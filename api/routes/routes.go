package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/feichai0017/factcheck-gateway/api/handlers"
	"github.com/feichai0017/factcheck-gateway/api/middleware"
	"github.com/feichai0017/factcheck-gateway/pkg/logger"
)

// SetupRoutes registers every endpoint on r.
func SetupRoutes(r *gin.Engine, h *handlers.Handlers, log logger.Logger) {
	r.Use(middleware.CORS())
	r.Use(middleware.RequestID(log))

	r.POST("/process", h.Check.Process)
	r.GET("/api/models", h.System.Models)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", h.System.Health)
		v1.GET("/diagnostics", h.System.Diagnostics)

		checks := v1.Group("/checks")
		checks.POST("", h.Jobs.Submit)
		checks.POST("/batch", h.Jobs.Batch)
		checks.GET("/:jobId", h.Jobs.Status)
		checks.DELETE("/:jobId", h.Jobs.Cancel)
	}
}
