package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/factcheck-gateway/pkg/logger"
)

type SystemHandler struct {
	catalog     ModelCatalog
	diagnostics DiagnosticsSource
	redis       Pinger
	logger      logger.Logger
}

func NewSystemHandler(catalog ModelCatalog, diagnostics DiagnosticsSource, redis Pinger, log logger.Logger) *SystemHandler {
	return &SystemHandler{catalog: catalog, diagnostics: diagnostics, redis: redis, logger: log.Named("system")}
}

// Models lists the models of both providers, falling back to static lists
// for a provider that cannot be reached.
func (h *SystemHandler) Models(c *gin.Context) {
	c.JSON(http.StatusOK, h.catalog.Models(c.Request.Context()))
}

func (h *SystemHandler) Diagnostics(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"streams": h.diagnostics.Diagnostics()})
}

func (h *SystemHandler) Health(c *gin.Context) {
	body := gin.H{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)}
	if h.redis == nil {
		c.JSON(http.StatusOK, body)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	err := h.redis.Ping(ctx)
	status, state := healthStatus(err)
	body["status"] = state
	body["redis"] = state
	if err != nil {
		h.logger.Warn("Redis health check failed", logger.Error(err))
	}
	c.JSON(status, body)
}
