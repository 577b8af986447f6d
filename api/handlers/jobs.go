package handlers

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/factcheck-gateway/internal/models"
	"github.com/feichai0017/factcheck-gateway/internal/service/factcheck"
	"github.com/feichai0017/factcheck-gateway/internal/utils/validator"
	"github.com/feichai0017/factcheck-gateway/pkg/logger"
	"github.com/feichai0017/factcheck-gateway/pkg/queue"
)

type JobHandler struct {
	service   *factcheck.Service
	validator *validator.UploadValidator
	logger    logger.Logger
}

// JobResponse acknowledges a queued check.
type JobResponse struct {
	JobID     string           `json:"jobId"`
	Status    models.JobStatus `json:"status"`
	Provider  string           `json:"provider"`
	FileName  string           `json:"fileName,omitempty"`
	CreatedAt string           `json:"createdAt"`
}

func NewJobHandler(service *factcheck.Service, v *validator.UploadValidator, log logger.Logger) *JobHandler {
	return &JobHandler{service: service, validator: v, logger: log.Named("jobs")}
}

func newJobResponse(job *models.CheckJob) JobResponse {
	return JobResponse{
		JobID:     job.ID,
		Status:    models.JobPending,
		Provider:  string(job.Provider),
		FileName:  job.FileName,
		CreatedAt: job.CreatedAt.Format(time.RFC3339),
	}
}

// Submit queues one check built from the same form fields as /process.
func (h *JobHandler) Submit(c *gin.Context) {
	kind, err := models.ParseProvider(c.PostForm("provider"))
	if err != nil {
		h.fail(c, http.StatusBadRequest, "Invalid provider", err)
		return
	}

	req := factcheck.CheckRequest{
		Input:     c.PostForm("user_input"),
		Provider:  kind,
		Model:     c.PostForm("model"),
		WebSearch: c.PostForm("web_search") == "true",
	}

	header, err := c.FormFile("file")
	switch {
	case err == nil:
		file, closeFn, err := h.openUpload(header)
		if err != nil {
			h.fail(c, http.StatusBadRequest, "Invalid file upload", err)
			return
		}
		defer closeFn()
		req.File = file
	case !errors.Is(err, http.ErrMissingFile) && !errors.Is(err, http.ErrNotMultipart):
		h.fail(c, http.StatusBadRequest, "Invalid form data", err)
		return
	}

	if req.Input == "" && req.File == nil {
		h.fail(c, http.StatusBadRequest, "Nothing to check", errors.New("user_input or file is required"))
		return
	}

	job, err := h.service.Submit(c.Request.Context(), req)
	if err != nil {
		h.fail(c, statusFor(err), "Failed to queue check", err)
		return
	}
	c.JSON(http.StatusAccepted, newJobResponse(job))
}

// Batch queues one check per "claims" value and one per uploaded "files"
// entry. Provider, model and web_search apply to all of them; user_input
// is the prompt for the files.
func (h *JobHandler) Batch(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		h.fail(c, http.StatusBadRequest, "Invalid form data", err)
		return
	}

	kind, err := models.ParseProvider(c.PostForm("provider"))
	if err != nil {
		h.fail(c, http.StatusBadRequest, "Invalid provider", err)
		return
	}
	base := factcheck.CheckRequest{
		Provider:  kind,
		Model:     c.PostForm("model"),
		WebSearch: c.PostForm("web_search") == "true",
	}

	var reqs []factcheck.CheckRequest
	for _, claim := range form.Value["claims"] {
		r := base
		r.Input = claim
		reqs = append(reqs, r)
	}
	for _, header := range form.File["files"] {
		file, closeFn, err := h.openUpload(header)
		if err != nil {
			h.fail(c, http.StatusBadRequest, "Invalid file upload", err)
			return
		}
		defer closeFn()
		r := base
		r.Input = c.PostForm("user_input")
		r.File = file
		reqs = append(reqs, r)
	}
	if len(reqs) == 0 {
		h.fail(c, http.StatusBadRequest, "No claims provided", nil)
		return
	}

	jobs, err := h.service.SubmitBatch(c.Request.Context(), reqs)
	switch {
	case err != nil && len(jobs) == 0:
		h.fail(c, statusFor(err), "Failed to queue checks", err)
		return
	case err != nil:
		// the queued jobs run regardless; hand back their ids so they can be polled
		logger.FromContext(c.Request.Context(), h.logger).Error("Failed to queue some checks",
			logger.Int("queued", len(jobs)),
			logger.Int("requested", len(reqs)),
			logger.Error(err),
		)
		c.AbortWithStatusJSON(statusFor(err), BatchErrorResponse{
			ErrorResponse: ErrorResponse{
				Error:   err.Error(),
				Message: fmt.Sprintf("Queued %d of %d checks", len(jobs), len(reqs)),
			},
			Jobs: jobResponses(jobs),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message": fmt.Sprintf("Queued %d checks", len(jobs)),
		"jobs":    jobResponses(jobs),
	})
}

// BatchErrorResponse reports a batch that was only partly queued.
type BatchErrorResponse struct {
	ErrorResponse
	Jobs []JobResponse `json:"jobs"`
}

func jobResponses(jobs []*models.CheckJob) []JobResponse {
	out := make([]JobResponse, len(jobs))
	for i, job := range jobs {
		out[i] = newJobResponse(job)
	}
	return out
}

func (h *JobHandler) Status(c *gin.Context) {
	result, err := h.service.Status(c.Request.Context(), c.Param("jobId"))
	if err != nil {
		h.fail(c, statusFor(err), "Failed to get status", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *JobHandler) Cancel(c *gin.Context) {
	jobID := c.Param("jobId")
	if err := h.service.Cancel(c.Request.Context(), jobID); err != nil {
		h.fail(c, statusFor(err), "Failed to cancel check", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Check cancelled",
		"jobId":   jobID,
	})
}

func (h *JobHandler) openUpload(header *multipart.FileHeader) (*factcheck.Upload, func(), error) {
	info, err := h.validator.Validate(header)
	if err != nil {
		return nil, nil, err
	}
	f, err := header.Open()
	if err != nil {
		return nil, nil, err
	}
	return &factcheck.Upload{Name: info.Filename, MimeType: info.MimeType, Reader: f}, func() { f.Close() }, nil
}

func (h *JobHandler) fail(c *gin.Context, status int, message string, err error) {
	handleError(c, h.logger, status, message, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, queue.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, queue.ErrJobFinished):
		return http.StatusConflict
	case errors.Is(err, factcheck.ErrAsyncUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
