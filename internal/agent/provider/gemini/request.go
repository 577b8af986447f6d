package gemini

import (
	"context"
	"net/http"

	"github.com/feichai0017/factcheck-gateway/internal/agent/provider/transport"
	"github.com/feichai0017/factcheck-gateway/internal/models"
)

type generateRequest struct {
	Contents []content `json:"contents"`
	Tools    []tool    `json:"tools,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text     string    `json:"text,omitempty"`
	FileData *fileData `json:"file_data,omitempty"`
}

type fileData struct {
	MimeType string `json:"mime_type"`
	FileURI  string `json:"file_uri"`
}

type tool struct {
	GoogleSearch *struct{} `json:"googleSearch,omitempty"`
}

// buildBody assembles the generateContent payload. An uploaded file goes
// before the prompt text.
func buildBody(intent models.Intent, att models.Attachments) generateRequest {
	parts := make([]part, 0, 2)
	if att.File != nil {
		parts = append(parts, part{FileData: &fileData{
			MimeType: att.File.MimeType,
			FileURI:  att.File.URI,
		}})
	}
	parts = append(parts, part{Text: intent.Prompt})

	body := generateRequest{Contents: []content{{Parts: parts}}}
	if intent.WebSearch {
		body.Tools = []tool{{GoogleSearch: &struct{}{}}}
	}
	return body
}

// BuildRequest returns the streaming generateContent call for intent.
// Gemini cannot take inline media here; att.Inline is ignored.
func (c *Client) BuildRequest(ctx context.Context, intent models.Intent, att models.Attachments) (*http.Request, error) {
	url := c.config.BaseURL + apiVersionPath + c.NormalizeModel(intent.Model) + ":streamGenerateContent?alt=sse"

	req, err := transport.NewJSONRequest(ctx, url, buildBody(intent, att))
	if err != nil {
		return nil, models.NewError(models.ErrProviderRequestFailed, "failed to build gemini request", err)
	}
	req.Header.Set(apiKeyHeader, c.config.APIKey)
	req.Header.Set("Accept", "text/event-stream")
	return req, nil
}
