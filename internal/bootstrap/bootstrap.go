// Package bootstrap wires the components shared by the server and worker
// binaries.
package bootstrap

import (
	"context"

	"github.com/feichai0017/factcheck-gateway/config"
	"github.com/feichai0017/factcheck-gateway/internal/agent/document"
	"github.com/feichai0017/factcheck-gateway/internal/agent/document/pdf"
	"github.com/feichai0017/factcheck-gateway/internal/agent/provider"
	"github.com/feichai0017/factcheck-gateway/internal/models"
	"github.com/feichai0017/factcheck-gateway/internal/service/factcheck"
	"github.com/feichai0017/factcheck-gateway/pkg/logger"
	"github.com/feichai0017/factcheck-gateway/pkg/queue"
	"github.com/feichai0017/factcheck-gateway/pkg/storage"
)

type App struct {
	Providers *provider.Set
	Service   *factcheck.Service
	Catalog   *factcheck.Catalog
	Queue     *queue.AsynqQueue
}

func (a *App) Close() error {
	return a.Queue.Close()
}

// NewLogger builds the process logger for the binary named service.
func NewLogger(cfg *config.Config, service string) (logger.Logger, error) {
	outputs := cfg.Log.Outputs
	if len(outputs) == 0 {
		outputs = []string{"stdout", "logs/" + service + ".log"}
	}
	return logger.NewLogger(
		logger.WithLevel(cfg.Log.Level),
		logger.WithEncoding(cfg.Log.Encoding),
		logger.WithOutputPaths(outputs),
		logger.WithService(service),
	)
}

// New builds the fact-check service and everything it depends on. An
// unreachable object store disables async checks; streaming keeps working.
func New(ctx context.Context, cfg *config.Config, log logger.Logger) *App {
	set := provider.NewSet(cfg.Providers, log)

	rasterizer := pdf.NewRasterizer(pdf.DefaultBinary, cfg.Server.PDFDPI, log.Named("pdf"))
	if err := rasterizer.Available(); err != nil {
		log.Warn("PDF rendering disabled for vision models", logger.Error(err))
	}
	preprocessor := document.NewPreprocessor(rasterizer, nil, log.Named("preprocess"))
	orchestrator := factcheck.NewOrchestrator(set, preprocessor, log)

	q := queue.NewAsynqQueue(queue.Config{
		RedisAddr: cfg.Redis.Addr,
		RedisDB:   cfg.Redis.DB,
		StatusTTL: cfg.Storage.Retention,
	}, log)

	var store storage.Storage
	s, err := storage.NewStorage(ctx, cfg.Storage, log.Named("storage"))
	if err != nil {
		log.Warn("Object storage unavailable, async checks disabled", logger.Error(err))
	} else {
		store = s
	}

	service := factcheck.NewService(orchestrator, q, store, log, &factcheck.ServiceConfig{
		UploadDir:       cfg.Server.UploadDir,
		RetentionPeriod: cfg.Storage.Retention,
	})

	catalog := factcheck.NewCatalog(
		map[models.ProviderKind]factcheck.ModelLister{
			models.ProviderGemini: set.Gemini,
			models.ProviderGroq:   set.Groq,
		},
		map[models.ProviderKind][]string{
			models.ProviderGemini: cfg.Providers.Gemini.Fallback,
			models.ProviderGroq:   cfg.Providers.Groq.Fallback,
		},
		log,
	)

	return &App{
		Providers: set,
		Service:   service,
		Catalog:   catalog,
		Queue:     q,
	}
}
