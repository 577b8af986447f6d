package gemini

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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/factcheck-gateway/internal/models"
	"github.com/feichai0017/factcheck-gateway/pkg/logger"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		APIKey:       "test-key",
		BaseURL:      srv.URL + "/",
		DefaultModel: "gemini-2.0-flash",
		HTTPClient:   srv.Client(),
	}, logger.NewTestLogger())
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestNormalizeModel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "models/gemini-2.0-flash"},
		{"gemini-1.5-pro", "models/gemini-1.5-pro"},
		{"models/gemini-1.5-pro", "models/gemini-1.5-pro"},
		{"tunedModels/my-tune", "tunedModels/my-tune"},
		{"  gemini-1.5-flash ", "models/gemini-1.5-flash"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := NormalizeModel(tt.in, "gemini-2.0-flash")
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, NormalizeModel(got, "gemini-2.0-flash"), "normalization is idempotent")
		})
	}
}

func TestExtractText(t *testing.T) {
	text, ok := extractText([]byte(`{"candidates":[{"content":{"parts":[{"text":"Verdict: false"}]}}]}`))
	assert.True(t, ok)
	assert.Equal(t, "Verdict: false", text)

	_, ok = extractText([]byte(`{"usageMetadata":{"totalTokenCount":12}}`))
	assert.False(t, ok)

	_, ok = extractText([]byte(`{"candidates":[`))
	assert.False(t, ok)
}

func TestBuildRequestTextOnly(t *testing.T) {
	c := NewClient(Config{APIKey: "k", BaseURL: "https://example.test", DefaultModel: "gemini-2.0-flash"}, logger.NewNop())

	req, err := c.BuildRequest(context.Background(), models.Intent{Prompt: "The moon is made of cheese"}, models.Attachments{})
	require.NoError(t, err)

	assert.Equal(t, "https://example.test/v1beta/models/gemini-2.0-flash:streamGenerateContent?alt=sse", req.URL.String())
	assert.Equal(t, "k", req.Header.Get(apiKeyHeader))

	var body map[string]any
	require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
	parts := body["contents"].([]any)[0].(map[string]any)["parts"].([]any)
	require.Len(t, parts, 1)
	assert.Equal(t, "The moon is made of cheese", parts[0].(map[string]any)["text"])
	assert.NotContains(t, body, "tools")
}

func TestBuildRequestFileFirstWithSearch(t *testing.T) {
	c := NewClient(Config{BaseURL: "https://example.test", DefaultModel: "gemini-2.0-flash"}, logger.NewNop())
	intent := models.Intent{Prompt: "check", WebSearch: true, Model: "models/gemini-1.5-pro"}
	att := models.Attachments{File: &models.UploadedFile{URI: "https://files/abc", MimeType: "application/pdf"}}

	req, err := c.BuildRequest(context.Background(), intent, att)
	require.NoError(t, err)
	assert.Contains(t, req.URL.Path, "/v1beta/models/gemini-1.5-pro:streamGenerateContent")

	raw, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"contents":[{"parts":[
			{"file_data":{"mime_type":"application/pdf","file_uri":"https://files/abc"}},
			{"text":"check"}
		]}],
		"tools":[{"googleSearch":{}}]
	}`, string(raw))
}

func TestUpload(t *testing.T) {
	path := writeTemp(t, "claim.pdf", "%PDF-1.4 test")
	var transferred string

	mux := http.NewServeMux()
	var sessionURL string
	mux.HandleFunc("/upload/v1beta/files", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "resumable", r.Header.Get("X-Goog-Upload-Protocol"))
		assert.Equal(t, "start", r.Header.Get("X-Goog-Upload-Command"))
		assert.Equal(t, "13", r.Header.Get("X-Goog-Upload-Header-Content-Length"))
		assert.Equal(t, "application/pdf", r.Header.Get("X-Goog-Upload-Header-Content-Type"))
		w.Header().Set(uploadURLHeader, sessionURL)
	})
	mux.HandleFunc("/session/1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "upload, finalize", r.Header.Get("X-Goog-Upload-Command"))
		assert.Equal(t, "0", r.Header.Get("X-Goog-Upload-Offset"))
		data, _ := io.ReadAll(r.Body)
		transferred = string(data)
		_, _ = io.WriteString(w, `{"file":{"name":"files/1","uri":"https://files/1","mimeType":"application/pdf"}}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	sessionURL = srv.URL + "/session/1"

	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL, HTTPClient: srv.Client()}, logger.NewNop())
	file, err := c.Upload(context.Background(), path, "application/pdf")

	require.NoError(t, err)
	assert.Equal(t, "https://files/1", file.URI)
	assert.Equal(t, "application/pdf", file.MimeType)
	assert.Equal(t, "%PDF-1.4 test", transferred)
}

func TestUploadInitWithoutSessionHeader(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 200 without the session header still fails
		_, _ = io.WriteString(w, `{"error":"quota"}`)
	}))

	_, err := c.Upload(context.Background(), writeTemp(t, "a.png", "png"), "image/png")

	require.Error(t, err)
	assert.Equal(t, models.ErrUploadInitFailed, models.KindOf(err))
	assert.Contains(t, err.Error(), "failed to get upload URL")
}

func TestUploadTransferFailure(t *testing.T) {
	var srvURL string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/upload/") {
			w.Header().Set(uploadURLHeader, srvURL+"/session")
			return
		}
		http.Error(w, "too large", http.StatusRequestEntityTooLarge)
	}))
	srvURL = c.config.BaseURL

	_, err := c.Upload(context.Background(), writeTemp(t, "a.png", "png"), "image/png")

	require.Error(t, err)
	assert.Equal(t, models.ErrUploadTransferFailed, models.KindOf(err))
	assert.Contains(t, err.Error(), "413")
}

func TestUploadTransferWithoutURI(t *testing.T) {
	var srvURL string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/upload/") {
			w.Header().Set(uploadURLHeader, srvURL+"/session")
			return
		}
		_, _ = io.WriteString(w, `{"file":{}}`)
	}))
	srvURL = c.config.BaseURL

	_, err := c.Upload(context.Background(), writeTemp(t, "a.png", "png"), "image/png")
	assert.Equal(t, models.ErrUploadTransferFailed, models.KindOf(err))
}

func TestExecuteAndDecode(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"The moon \"}]}}]}\n\n")
		_, _ = io.WriteString(w, "data: {not json}\n\n")
		_, _ = io.WriteString(w, "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"is rock.\"}]}}]}\n\n")
	}))

	req, err := c.BuildRequest(context.Background(), models.Intent{Prompt: "p"}, models.Attachments{})
	require.NoError(t, err)
	resp, err := c.Execute(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var got []string
	for text, err := range c.Decode(context.Background(), resp.Body) {
		require.NoError(t, err)
		got = append(got, text)
	}
	assert.Equal(t, []string{"The moon ", "is rock."}, got)
	assert.EqualValues(t, 1, c.Stats().Skipped())
}

func TestExecuteNon2xx(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"API key not valid"}}`, http.StatusBadRequest)
	}))

	req, err := c.BuildRequest(context.Background(), models.Intent{Prompt: "p"}, models.Attachments{})
	require.NoError(t, err)
	_, err = c.Execute(req)

	assert.Equal(t, models.ErrProviderRequestFailed, models.KindOf(err))
	assert.Contains(t, err.Error(), "gemini returned status 400")
	assert.Contains(t, err.Error(), "API key not valid")
}

func TestListModels(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models", r.URL.Path)
		_, _ = io.WriteString(w, `{"models":[
			{"name":"models/gemini-2.0-flash","supportedGenerationMethods":["generateContent","countTokens"]},
			{"name":"models/text-embedding-004","supportedGenerationMethods":["embedContent"]}
		]}`)
	}))

	ids, err := c.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"gemini-2.0-flash"}, ids)
}
