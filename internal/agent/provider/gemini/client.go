// Package gemini speaks the Generative Language API: resumable file
// uploads and server-sent streamGenerateContent responses.
package gemini

import (
	"context"
	"io"
	"iter"
	"net/http"
	"strings"

	"github.com/feichai0017/factcheck-gateway/internal/agent/provider/transport"
	"github.com/feichai0017/factcheck-gateway/internal/models"
	"github.com/feichai0017/factcheck-gateway/pkg/logger"
	"github.com/feichai0017/factcheck-gateway/pkg/sse"
)

const (
	filesUploadPath = "/upload/v1beta/files"
	apiVersionPath  = "/v1beta/"
	apiKeyHeader    = "x-goog-api-key"
	providerName    = "gemini"
)

type Config struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	HTTPClient   *http.Client
}

type Client struct {
	config Config
	stats  sse.Stats
	logger logger.Logger
}

func NewClient(cfg Config, log logger.Logger) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{config: cfg, logger: log.Named(providerName)}
}

func (c *Client) Kind() models.ProviderKind { return models.ProviderGemini }

// Stats counts decoded and skipped stream chunks.
func (c *Client) Stats() *sse.Stats { return &c.stats }

// NormalizeModel substitutes the default model and adds the resource
// prefix the REST API expects. Already-prefixed ids are left alone.
func (c *Client) NormalizeModel(model string) string {
	return NormalizeModel(model, c.config.DefaultModel)
}

func NormalizeModel(model, fallback string) string {
	model = strings.TrimSpace(model)
	if model == "" {
		model = fallback
	}
	if strings.HasPrefix(model, "models/") || strings.HasPrefix(model, "tunedModels/") {
		return model
	}
	return "models/" + model
}

func (c *Client) Execute(req *http.Request) (*http.Response, error) {
	return transport.Do(c.config.HTTPClient, req, providerName)
}

func (c *Client) Decode(ctx context.Context, body io.Reader) iter.Seq2[string, error] {
	return sse.Decode(ctx, body, sse.Config{
		Extract: extractText,
		Stats:   &c.stats,
		Logger:  c.logger,
	})
}
