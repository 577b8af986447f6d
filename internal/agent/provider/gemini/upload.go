package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/feichai0017/factcheck-gateway/internal/agent/provider/transport"
	"github.com/feichai0017/factcheck-gateway/internal/models"
	"github.com/feichai0017/factcheck-gateway/pkg/logger"
)

const uploadURLHeader = "X-Goog-Upload-URL"

type uploadMetadata struct {
	File struct {
		DisplayName string `json:"display_name"`
	} `json:"file"`
}

type uploadResponse struct {
	File struct {
		Name     string `json:"name"`
		URI      string `json:"uri"`
		MimeType string `json:"mimeType"`
	} `json:"file"`
}

// Upload registers the file at path with the Files API using the two-step
// resumable protocol and returns the reference to cite in the next
// request. References are not cached; every request uploads again.
func (c *Client) Upload(ctx context.Context, path, mimeType string) (*models.UploadedFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, models.NewError(models.ErrUploadInitFailed, "failed to stat upload", err)
	}

	sessionURL, err := c.initiateUpload(ctx, filepath.Base(path), info.Size(), mimeType)
	if err != nil {
		return nil, err
	}

	file, err := c.transferFile(ctx, sessionURL, path, info.Size())
	if err != nil {
		return nil, err
	}
	if file.MimeType == "" {
		file.MimeType = mimeType
	}

	c.logger.Info("File uploaded",
		logger.String("file", filepath.Base(path)),
		logger.Int64("size", info.Size()),
		logger.String("uri", file.URI),
	)
	return file, nil
}

// initiateUpload declares size and type and returns the session URL. A
// response without the session header fails whatever its status.
func (c *Client) initiateUpload(ctx context.Context, displayName string, size int64, mimeType string) (string, error) {
	var meta uploadMetadata
	meta.File.DisplayName = displayName
	body, err := json.Marshal(meta)
	if err != nil {
		return "", models.NewError(models.ErrUploadInitFailed, "failed to marshal upload metadata", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+filesUploadPath, bytes.NewReader(body))
	if err != nil {
		return "", models.NewError(models.ErrUploadInitFailed, "failed to create upload request", err)
	}
	req.Header.Set(apiKeyHeader, c.config.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Upload-Protocol", "resumable")
	req.Header.Set("X-Goog-Upload-Command", "start")
	req.Header.Set("X-Goog-Upload-Header-Content-Length", strconv.FormatInt(size, 10))
	req.Header.Set("X-Goog-Upload-Header-Content-Type", mimeType)

	resp, err := c.config.HTTPClient.Do(req)
	if err != nil {
		return "", models.NewError(models.ErrUploadInitFailed, "failed to get upload URL", err)
	}
	defer resp.Body.Close()

	sessionURL := resp.Header.Get(uploadURLHeader)
	if sessionURL == "" {
		return "", models.Errorf(models.ErrUploadInitFailed,
			"failed to get upload URL (status %d): %s", resp.StatusCode, transport.ReadErrorBody(resp.Body))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return sessionURL, nil
}

// transferFile streams the whole file to the session in one pass and
// finalizes it.
func (c *Client) transferFile(ctx context.Context, sessionURL, path string, size int64) (*models.UploadedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, models.NewError(models.ErrUploadTransferFailed, "failed to open upload", err)
	}
	defer f.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sessionURL, f)
	if err != nil {
		return nil, models.NewError(models.ErrUploadTransferFailed, "failed to create transfer request", err)
	}
	req.ContentLength = size
	req.Header.Set("X-Goog-Upload-Offset", "0")
	req.Header.Set("X-Goog-Upload-Command", "upload, finalize")

	resp, err := c.config.HTTPClient.Do(req)
	if err != nil {
		return nil, models.NewError(models.ErrUploadTransferFailed, "file upload failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, models.Errorf(models.ErrUploadTransferFailed,
			"file upload failed (status %d): %s", resp.StatusCode, transport.ReadErrorBody(resp.Body))
	}

	var result uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, models.NewError(models.ErrUploadTransferFailed, "failed to decode upload response", err)
	}
	if result.File.URI == "" {
		return nil, models.Errorf(models.ErrUploadTransferFailed, "file upload failed: response has no file uri")
	}
	return &models.UploadedFile{URI: result.File.URI, MimeType: result.File.MimeType}, nil
}

