package gemini

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"github.com/feichai0017/factcheck-gateway/internal/agent/provider/transport"
)

type modelList struct {
	Models []struct {
		Name                       string   `json:"name"`
		SupportedGenerationMethods []string `json:"supportedGenerationMethods"`
	} `json:"models"`
}

// ListModels returns the ids of models that support generateContent,
// without the models/ prefix.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	header := http.Header{}
	header.Set(apiKeyHeader, c.config.APIKey)

	var list modelList
	if err := transport.GetJSON(ctx, c.config.HTTPClient, c.config.BaseURL+apiVersionPath+"models", header, providerName, &list); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		if slices.Contains(m.SupportedGenerationMethods, "generateContent") {
			ids = append(ids, strings.TrimPrefix(m.Name, "models/"))
		}
	}
	return ids, nil
}
