package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/factcheck-gateway/internal/models"
	"github.com/feichai0017/factcheck-gateway/internal/service/factcheck"
	"github.com/feichai0017/factcheck-gateway/internal/utils/validator"
	"github.com/feichai0017/factcheck-gateway/pkg/logger"
	"github.com/feichai0017/factcheck-gateway/pkg/sse"
)

// ModelCatalog lists models per provider.
type ModelCatalog interface {
	Models(ctx context.Context) map[models.ProviderKind][]string
}

// DiagnosticsSource reports stream decoding counters.
type DiagnosticsSource interface {
	Diagnostics() map[models.ProviderKind]sse.Snapshot
}

// Pinger checks a backing service.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handlers struct {
	Check  *CheckHandler
	Jobs   *JobHandler
	System *SystemHandler
}

type Deps struct {
	Service     *factcheck.Service
	Validator   *validator.UploadValidator
	Catalog     ModelCatalog
	Diagnostics DiagnosticsSource
	// Redis is optional.
	Redis Pinger
}

func NewHandlers(d Deps, log logger.Logger) *Handlers {
	return &Handlers{
		Check:  NewCheckHandler(d.Service, d.Validator, log),
		Jobs:   NewJobHandler(d.Service, d.Validator, log),
		System: NewSystemHandler(d.Catalog, d.Diagnostics, d.Redis, log),
	}
}

// ErrorResponse is the body of every failed JSON call.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func handleError(c *gin.Context, log logger.Logger, status int, message string, err error) {
	logger.FromContext(c.Request.Context(), log).Error(message,
		logger.String("path", c.Request.URL.Path),
		logger.Error(err),
	)

	response := ErrorResponse{Message: message}
	if err != nil {
		response.Error = err.Error()
	}
	c.AbortWithStatusJSON(status, response)
}

func healthStatus(err error) (int, string) {
	if err != nil {
		return http.StatusServiceUnavailable, "degraded"
	}
	return http.StatusOK, "ok"
}
