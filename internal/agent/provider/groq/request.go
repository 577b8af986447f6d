package groq

import (
	"context"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/feichai0017/factcheck-gateway/internal/agent/document/image"
	"github.com/feichai0017/factcheck-gateway/internal/agent/provider/transport"
	"github.com/feichai0017/factcheck-gateway/internal/models"
)

// buildBody returns a single user turn: the prompt, then one image part per
// inline image, each as a data URI. Groq has no search tool, so
// intent.WebSearch is not mapped.
func (c *Client) buildBody(intent models.Intent, att models.Attachments) (openai.ChatCompletionRequest, error) {
	parts := make([]openai.ChatMessagePart, 0, 1+len(att.Inline))
	parts = append(parts, openai.ChatMessagePart{
		Type: openai.ChatMessagePartTypeText,
		Text: intent.Prompt,
	})
	for _, img := range att.Inline {
		uri, err := image.DataURI(img.Path, img.MimeType)
		if err != nil {
			return openai.ChatCompletionRequest{}, err
		}
		parts = append(parts, openai.ChatMessagePart{
			Type:     openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{URL: uri},
		})
	}

	return openai.ChatCompletionRequest{
		Model: c.NormalizeModel(intent.Model),
		Messages: []openai.ChatCompletionMessage{{
			Role:         openai.ChatMessageRoleUser,
			MultiContent: parts,
		}},
		Stream: true,
	}, nil
}

// BuildRequest returns the streaming chat completion call for intent.
// Groq takes no uploads; att.File is ignored.
func (c *Client) BuildRequest(ctx context.Context, intent models.Intent, att models.Attachments) (*http.Request, error) {
	body, err := c.buildBody(intent, att)
	if err != nil {
		return nil, models.NewError(models.ErrProviderRequestFailed, "failed to encode image", err)
	}

	req, err := transport.NewJSONRequest(ctx, c.config.BaseURL+completionsPath, body)
	if err != nil {
		return nil, models.NewError(models.ErrProviderRequestFailed, "failed to build groq request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Accept", "text/event-stream")
	return req, nil
}
