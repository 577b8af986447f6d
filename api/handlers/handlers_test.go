package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/factcheck-gateway/api/handlers"
	"github.com/feichai0017/factcheck-gateway/api/middleware"
	"github.com/feichai0017/factcheck-gateway/api/routes"
	"github.com/feichai0017/factcheck-gateway/config"
	"github.com/feichai0017/factcheck-gateway/internal/agent/document"
	"github.com/feichai0017/factcheck-gateway/internal/agent/provider"
	"github.com/feichai0017/factcheck-gateway/internal/models"
	"github.com/feichai0017/factcheck-gateway/internal/service/factcheck"
	"github.com/feichai0017/factcheck-gateway/internal/utils/validator"
	"github.com/feichai0017/factcheck-gateway/pkg/logger"
	"github.com/feichai0017/factcheck-gateway/pkg/queue"
	"github.com/feichai0017/factcheck-gateway/pkg/sse"
)

type noRasterizer struct{}

func (noRasterizer) Available() error {
	return errors.New("PDF support not available (poppler/pdftoppm missing)")
}
func (noRasterizer) PageCount(string) (int, error) { return 0, errors.New("unreachable") }
func (noRasterizer) RenderPage(context.Context, string, int, string) error {
	return errors.New("unreachable")
}

type fakeQueue struct {
	mu   sync.Mutex
	jobs map[string]*models.CheckResult
	// capacity rejects enqueues once that many jobs are held; zero is unlimited
	capacity int
}

func (q *fakeQueue) Enqueue(_ context.Context, job *models.CheckJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.capacity > 0 && len(q.jobs) >= q.capacity {
		return errors.New("queue full")
	}
	q.jobs[job.ID] = &models.CheckResult{JobID: job.ID, Status: models.JobPending}
	return nil
}

func (q *fakeQueue) GetStatus(_ context.Context, id string) (*models.CheckResult, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if r, ok := q.jobs[id]; ok {
		return r, nil
	}
	return nil, queue.ErrJobNotFound
}

func (q *fakeQueue) Cancel(_ context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	r, ok := q.jobs[id]
	if !ok {
		return queue.ErrJobNotFound
	}
	if r.Status == models.JobCompleted {
		return queue.ErrJobFinished
	}
	r.Status = models.JobCancelled
	return nil
}

func (q *fakeQueue) SaveStatus(_ context.Context, r *models.CheckResult) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs[r.JobID] = r
	return nil
}

type fakeStorage struct{}

func (fakeStorage) Store(_ context.Context, r io.Reader, key string) (string, error) {
	_, err := io.Copy(io.Discard, r)
	return key, err
}
func (fakeStorage) Get(context.Context, string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(nil)), nil
}
func (fakeStorage) Delete(context.Context, string) error           { return nil }
func (fakeStorage) CleanupBefore(context.Context, time.Time) error { return nil }

type fakeCatalog map[models.ProviderKind][]string

func (c fakeCatalog) Models(context.Context) map[models.ProviderKind][]string { return c }

type harness struct {
	router *gin.Engine
	queue  *fakeQueue
}

func newHarness(t *testing.T, upstream http.HandlerFunc, async bool) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	srv := httptest.NewServer(upstream)
	t.Cleanup(srv.Close)
	cfg := config.DefaultProviders()
	cfg.Gemini.BaseURL = srv.URL
	cfg.Groq.BaseURL = srv.URL

	log := logger.NewTestLogger()
	set := provider.NewSet(cfg, log)
	orch := factcheck.NewOrchestrator(set, document.NewPreprocessor(noRasterizer{}, nil, log), log)

	h := &harness{queue: &fakeQueue{jobs: map[string]*models.CheckResult{}}}
	var svc *factcheck.Service
	if async {
		svc = factcheck.NewService(orch, h.queue, fakeStorage{}, log, &factcheck.ServiceConfig{UploadDir: t.TempDir()})
	} else {
		svc = factcheck.NewService(orch, nil, nil, log, &factcheck.ServiceConfig{UploadDir: t.TempDir()})
	}

	hs := handlers.NewHandlers(handlers.Deps{
		Service:     svc,
		Validator:   validator.NewUploadValidator(1 << 20),
		Catalog:     fakeCatalog{models.ProviderGemini: {"gemini-2.0-flash"}, models.ProviderGroq: {"llama3-8b-8192"}},
		Diagnostics: set,
	}, log)

	h.router = gin.New()
	routes.SetupRoutes(h.router, hs, log)
	return h
}

func multipartBody(t *testing.T, fields map[string]string, fileField, fileName string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileName != "" {
		w, err := mw.CreateFormFile(fileField, fileName)
		require.NoError(t, err)
		_, _ = w.Write(content)
	}
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func (h *harness) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func TestProcessStreamsVerdict(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `data: {"candidates":[{"content":{"parts":[{"text":"Verdict: False"}]}}]}`+"\n\n")
	}, false)

	body, ct := multipartBody(t, map[string]string{"user_input": "The moon is made of cheese"}, "", "", nil)
	req := httptest.NewRequest(http.MethodPost, "/process", body)
	req.Header.Set("Content-Type", ct)
	w := h.do(req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "Verdict: False", w.Body.String())
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
}

func TestProcessPDFWithoutRasterizer(t *testing.T) {
	h := newHarness(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("provider must not be called")
	}, false)

	body, ct := multipartBody(t, map[string]string{"provider": "groq"}, "file", "report.pdf", []byte("%PDF-1.4"))
	req := httptest.NewRequest(http.MethodPost, "/process", body)
	req.Header.Set("Content-Type", ct)
	w := h.do(req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "\n[ERROR: PDF support not available (poppler/pdftoppm missing)]", w.Body.String())
}

func TestProcessUnknownProvider(t *testing.T) {
	h := newHarness(t, func(http.ResponseWriter, *http.Request) {}, false)

	body, ct := multipartBody(t, map[string]string{"provider": "openai", "user_input": "x"}, "", "", nil)
	req := httptest.NewRequest(http.MethodPost, "/process", body)
	req.Header.Set("Content-Type", ct)
	w := h.do(req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"reply":"System Error: unsupported provider: openai"}`, w.Body.String())
}

func TestModels(t *testing.T) {
	h := newHarness(t, func(http.ResponseWriter, *http.Request) {}, false)

	w := h.do(httptest.NewRequest(http.MethodGet, "/api/models", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"gemini":["gemini-2.0-flash"],"groq":["llama3-8b-8192"]}`, w.Body.String())
}

func TestDiagnostics(t *testing.T) {
	h := newHarness(t, func(http.ResponseWriter, *http.Request) {}, false)

	w := h.do(httptest.NewRequest(http.MethodGet, "/api/v1/diagnostics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var got struct {
		Streams map[string]sse.Snapshot `json:"streams"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Contains(t, got.Streams, "gemini")
	assert.Contains(t, got.Streams, "groq")
}

func TestHealthWithoutRedis(t *testing.T) {
	h := newHarness(t, func(http.ResponseWriter, *http.Request) {}, false)

	w := h.do(httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSubmitWithoutAsyncBackend(t *testing.T) {
	h := newHarness(t, func(http.ResponseWriter, *http.Request) {}, false)

	body, ct := multipartBody(t, map[string]string{"user_input": "x"}, "", "", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checks", body)
	req.Header.Set("Content-Type", ct)
	w := h.do(req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSubmitStatusCancel(t *testing.T) {
	h := newHarness(t, func(http.ResponseWriter, *http.Request) {}, true)

	body, ct := multipartBody(t, map[string]string{"user_input": "claim", "provider": "groq"}, "file", "a.png", []byte("png"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checks", body)
	req.Header.Set("Content-Type", ct)
	w := h.do(req)
	require.Equal(t, http.StatusAccepted, w.Code)

	var job handlers.JobResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))
	assert.Equal(t, "groq", job.Provider)
	assert.Equal(t, "a.png", job.FileName)

	w = h.do(httptest.NewRequest(http.MethodGet, "/api/v1/checks/"+job.JobID, nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"pending"`)

	w = h.do(httptest.NewRequest(http.MethodDelete, "/api/v1/checks/"+job.JobID, nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = h.do(httptest.NewRequest(http.MethodGet, "/api/v1/checks/unknown", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSubmitRequiresInput(t *testing.T) {
	h := newHarness(t, func(http.ResponseWriter, *http.Request) {}, true)

	body, ct := multipartBody(t, map[string]string{"provider": "gemini"}, "", "", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checks", body)
	req.Header.Set("Content-Type", ct)
	w := h.do(req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBatch(t *testing.T) {
	h := newHarness(t, func(http.ResponseWriter, *http.Request) {}, true)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("claims", "first claim"))
	require.NoError(t, mw.WriteField("claims", "second claim"))
	fw, err := mw.CreateFormFile("files", "scan.jpg")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("jpg"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checks/batch", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := h.do(req)

	require.Equal(t, http.StatusAccepted, w.Code)
	var got struct {
		Jobs []handlers.JobResponse `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Len(t, got.Jobs, 3)
	assert.Len(t, h.queue.jobs, 3)
}

func TestBatchPartialFailureReturnsQueuedJobs(t *testing.T) {
	h := newHarness(t, func(http.ResponseWriter, *http.Request) {}, true)
	h.queue.capacity = 2

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, claim := range []string{"one", "two", "three"} {
		require.NoError(t, mw.WriteField("claims", claim))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checks/batch", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := h.do(req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var got handlers.BatchErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "Queued 2 of 3 checks", got.Message)
	assert.Contains(t, got.Error, "queue full")
	require.Len(t, got.Jobs, 2)
	for _, job := range got.Jobs {
		assert.Contains(t, h.queue.jobs, job.JobID)
	}
}
