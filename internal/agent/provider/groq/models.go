package groq

import (
	"context"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/feichai0017/factcheck-gateway/internal/agent/provider/transport"
)

// ListModels returns every model id the account can use.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.config.APIKey)

	var list openai.ModelsList
	if err := transport.GetJSON(ctx, c.config.HTTPClient, c.config.BaseURL+"/models", header, providerName, &list); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		ids = append(ids, m.ID)
	}
	return ids, nil
}
