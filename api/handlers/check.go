package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/factcheck-gateway/internal/models"
	"github.com/feichai0017/factcheck-gateway/internal/service/factcheck"
	"github.com/feichai0017/factcheck-gateway/internal/utils/validator"
	"github.com/feichai0017/factcheck-gateway/pkg/logger"
)

type CheckHandler struct {
	service   *factcheck.Service
	validator *validator.UploadValidator
	logger    logger.Logger
}

func NewCheckHandler(service *factcheck.Service, v *validator.UploadValidator, log logger.Logger) *CheckHandler {
	return &CheckHandler{service: service, validator: v, logger: log.Named("check")}
}

// Process streams a verdict as plain text, one flush per fragment. Only
// failures before the first byte produce a JSON error; later failures
// arrive in-band as an [ERROR: ...] line.
func (h *CheckHandler) Process(c *gin.Context) {
	kind, err := models.ParseProvider(c.PostForm("provider"))
	if err != nil {
		h.systemError(c, err)
		return
	}

	media, err := h.saveAttachment(c)
	if err != nil {
		h.systemError(c, err)
		return
	}

	intent := factcheck.NewIntent(
		c.PostForm("user_input"),
		media,
		c.PostForm("web_search") == "true",
		kind,
		c.PostForm("model"),
	)

	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Content-Type-Options", "nosniff")
	c.Status(http.StatusOK)

	for f := range h.service.Stream(c.Request.Context(), intent) {
		if _, err := io.WriteString(c.Writer, f.Render()); err != nil {
			break
		}
		c.Writer.Flush()
	}
}

// saveAttachment returns nil media when the form carries no file.
func (h *CheckHandler) saveAttachment(c *gin.Context) (*models.MediaRef, error) {
	header, err := c.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		return nil, nil
	case err != nil:
		return nil, err
	case header.Filename == "":
		return nil, nil
	}

	info, err := h.validator.Validate(header)
	if err != nil {
		return nil, err
	}
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	media, err := h.service.SaveUpload(&factcheck.Upload{Name: info.Filename, MimeType: info.MimeType, Reader: f})
	if err != nil {
		return nil, err
	}
	logger.FromContext(c.Request.Context(), h.logger).Info("Attachment received",
		logger.String("filename", info.Filename),
		logger.String("mimeType", media.MimeType),
		logger.Int64("size", info.Size),
		logger.String("sha256", info.Hash),
	)
	return media, nil
}

func (h *CheckHandler) systemError(c *gin.Context, err error) {
	logger.FromContext(c.Request.Context(), h.logger).Error("Failed to start check",
		logger.String("path", c.Request.URL.Path),
		logger.Error(err),
	)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"reply": "System Error: " + err.Error()})
}
