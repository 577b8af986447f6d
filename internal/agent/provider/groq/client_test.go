package groq

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/factcheck-gateway/internal/models"
	"github.com/feichai0017/factcheck-gateway/pkg/logger"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		APIKey:       "gsk-test",
		BaseURL:      srv.URL,
		DefaultModel: "llama3-70b-8192",
		HTTPClient:   srv.Client(),
	}, logger.NewTestLogger())
}

func TestNormalizeModel(t *testing.T) {
	c := NewClient(Config{DefaultModel: "llama3-70b-8192"}, logger.NewNop())

	assert.Equal(t, "llama3-70b-8192", c.NormalizeModel(""))
	assert.Equal(t, "mixtral-8x7b-32768", c.NormalizeModel("mixtral-8x7b-32768"))
	assert.Equal(t, c.NormalizeModel("x"), c.NormalizeModel(c.NormalizeModel("x")))
}

func TestExtractDelta(t *testing.T) {
	text, ok := extractDelta([]byte(`{"id":"1","choices":[{"index":0,"delta":{"content":"True"}}]}`))
	assert.True(t, ok)
	assert.Equal(t, "True", text)

	text, ok = extractDelta([]byte(`{"id":"1","choices":[{"index":0,"delta":{"role":"assistant"}}]}`))
	assert.True(t, ok)
	assert.Empty(t, text)

	_, ok = extractDelta([]byte(`{"id":"1","choices":[]}`))
	assert.False(t, ok)

	_, ok = extractDelta([]byte(`nope`))
	assert.False(t, ok)
}

func TestBuildRequestInlinesImages(t *testing.T) {
	page := filepath.Join(t.TempDir(), "doc_page_0.jpg")
	require.NoError(t, os.WriteFile(page, []byte{0xff, 0xd8, 0xff}, 0o600))

	c := NewClient(Config{APIKey: "gsk", BaseURL: "https://api.example.test/openai/v1/", DefaultModel: "llama3-70b-8192"}, logger.NewNop())
	intent := models.Intent{Prompt: "check this", WebSearch: true}
	att := models.Attachments{Inline: []models.InlineImage{{Path: page, MimeType: "image/jpeg"}}}

	req, err := c.BuildRequest(context.Background(), intent, att)
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.test/openai/v1/chat/completions", req.URL.String())
	assert.Equal(t, "Bearer gsk", req.Header.Get("Authorization"))

	var body openai.ChatCompletionRequest
	require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
	assert.Equal(t, "llama3-70b-8192", body.Model)
	assert.True(t, body.Stream)
	assert.Empty(t, body.Tools, "web search has no groq equivalent")
	require.Len(t, body.Messages, 1)

	parts := body.Messages[0].MultiContent
	require.Len(t, parts, 2)
	assert.Equal(t, openai.ChatMessagePartTypeText, parts[0].Type)
	assert.Equal(t, "check this", parts[0].Text)
	assert.Equal(t, openai.ChatMessagePartTypeImageURL, parts[1].Type)
	assert.Equal(t, "data:image/jpeg;base64,/9j/", parts[1].ImageURL.URL)
}

func TestBuildRequestMissingImage(t *testing.T) {
	c := NewClient(Config{BaseURL: "https://api.example.test"}, logger.NewNop())
	att := models.Attachments{Inline: []models.InlineImage{{Path: "/does/not/exist.jpg", MimeType: "image/jpeg"}}}

	_, err := c.BuildRequest(context.Background(), models.Intent{Prompt: "p"}, att)
	assert.Equal(t, models.ErrProviderRequestFailed, models.KindOf(err))
}

func TestStreamStopsAtDone(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"role\":\"assistant\"}}]}\n\n")
		_, _ = io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Verdict: \"}}]}\n\n")
		_, _ = io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"False\"}}]}\n\n")
		_, _ = io.WriteString(w, "data: [DONE]\n\n")
		_, _ = io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"ignored\"}}]}\n\n")
	})

	req, err := c.BuildRequest(context.Background(), models.Intent{Prompt: "p"}, models.Attachments{})
	require.NoError(t, err)
	resp, err := c.Execute(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var sb strings.Builder
	for text, err := range c.Decode(context.Background(), resp.Body) {
		require.NoError(t, err)
		sb.WriteString(text)
	}
	assert.Equal(t, "Verdict: False", sb.String())
	assert.EqualValues(t, 3, c.Stats().Payloads())
	assert.Zero(t, c.Stats().Skipped())
}

func TestListModels(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		assert.Equal(t, "Bearer gsk-test", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"object":"list","data":[{"id":"llama3-8b-8192"},{"id":"whisper-large-v3"}]}`)
	})

	ids, err := c.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"llama3-8b-8192", "whisper-large-v3"}, ids)
}
