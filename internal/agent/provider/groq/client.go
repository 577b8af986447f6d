// Package groq speaks Groq's OpenAI-compatible chat completions API with
// inline base64 images.
package groq

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
	completionsPath = "/chat/completions"
	doneSentinel    = "[DONE]"
	providerName    = "groq"
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

func (c *Client) Kind() models.ProviderKind { return models.ProviderGroq }

func (c *Client) Stats() *sse.Stats { return &c.stats }

// NormalizeModel substitutes the default model. Groq model ids carry no
// namespace, so anything else passes through.
func (c *Client) NormalizeModel(model string) string {
	if model = strings.TrimSpace(model); model == "" {
		return c.config.DefaultModel
	}
	return model
}

func (c *Client) Execute(req *http.Request) (*http.Response, error) {
	return transport.Do(c.config.HTTPClient, req, providerName)
}

func (c *Client) Decode(ctx context.Context, body io.Reader) iter.Seq2[string, error] {
	return sse.Decode(ctx, body, sse.Config{
		Sentinel: doneSentinel,
		Extract:  extractDelta,
		Stats:    &c.stats,
		Logger:   c.logger,
	})
}
