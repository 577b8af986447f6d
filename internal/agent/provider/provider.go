// Package provider defines what the orchestrator needs from an inference
// backend and selects between the supported ones.
package provider

import (
	"context"
	"fmt"
	"io"
	"iter"
	"net/http"

	"github.com/feichai0017/factcheck-gateway/config"
	"github.com/feichai0017/factcheck-gateway/internal/agent/provider/gemini"
	"github.com/feichai0017/factcheck-gateway/internal/agent/provider/groq"
	"github.com/feichai0017/factcheck-gateway/internal/models"
	"github.com/feichai0017/factcheck-gateway/pkg/logger"
	"github.com/feichai0017/factcheck-gateway/pkg/sse"
)

// Provider is one inference backend.
type Provider interface {
	Kind() models.ProviderKind
	NormalizeModel(model string) string
	BuildRequest(ctx context.Context, intent models.Intent, att models.Attachments) (*http.Request, error)
	// Execute returns the response with its body open; the caller closes it.
	Execute(req *http.Request) (*http.Response, error)
	Decode(ctx context.Context, body io.Reader) iter.Seq2[string, error]
	Stats() *sse.Stats
}

// Uploader is implemented by providers that take media by reference.
type Uploader interface {
	Upload(ctx context.Context, path, mimeType string) (*models.UploadedFile, error)
}

// Set holds one client per supported provider.
type Set struct {
	Gemini *gemini.Client
	Groq   *groq.Client
}

// NewSet builds both clients from cfg over a shared HTTP client.
func NewSet(cfg config.ProvidersConfig, log logger.Logger) *Set {
	client := cfg.HTTPClient()
	return &Set{
		Gemini: gemini.NewClient(gemini.Config{
			APIKey:       cfg.Gemini.APIKey,
			BaseURL:      cfg.Gemini.BaseURL,
			DefaultModel: cfg.Gemini.DefaultModel,
			HTTPClient:   client,
		}, log),
		Groq: groq.NewClient(groq.Config{
			APIKey:       cfg.Groq.APIKey,
			BaseURL:      cfg.Groq.BaseURL,
			DefaultModel: cfg.Groq.DefaultModel,
			HTTPClient:   client,
		}, log),
	}
}

// Select returns the client for kind.
func (s *Set) Select(kind models.ProviderKind) (Provider, error) {
	switch kind {
	case models.ProviderGemini, "":
		return s.Gemini, nil
	case models.ProviderGroq:
		return s.Groq, nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", kind)
	}
}

// Diagnostics reports stream decoding counters per provider.
func (s *Set) Diagnostics() map[models.ProviderKind]sse.Snapshot {
	return map[models.ProviderKind]sse.Snapshot{
		models.ProviderGemini: s.Gemini.Stats().Snapshot(),
		models.ProviderGroq:   s.Groq.Stats().Snapshot(),
	}
}
