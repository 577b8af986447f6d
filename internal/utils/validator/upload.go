package validator

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/feichai0017/factcheck-gateway/internal/agent/document"
)

// FileInfo describes an accepted upload.
type FileInfo struct {
	Filename  string `json:"filename"`
	Size      int64  `json:"size"`
	MimeType  string `json:"mimeType"`
	Extension string `json:"extension"`
	Hash      string `json:"hash"`
}

// ValidationError is returned for uploads the gateway refuses.
type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string { return e.Message }

type UploadValidator struct {
	maxFileSize int64
}

// NewUploadValidator accepts files up to maxFileSize bytes; zero means no
// limit.
func NewUploadValidator(maxFileSize int64) *UploadValidator {
	return &UploadValidator{maxFileSize: maxFileSize}
}

// Validate checks header and fingerprints its content. The MIME type is
// the declared one corrected by extension.
func (v *UploadValidator) Validate(header *multipart.FileHeader) (*FileInfo, error) {
	name := filepath.Base(header.Filename)
	if name == "." || name == string(filepath.Separator) || name == "" {
		return nil, &ValidationError{Code: "MISSING_FILENAME", Message: "file has no name"}
	}
	if header.Size == 0 {
		return nil, &ValidationError{Code: "EMPTY_FILE", Message: fmt.Sprintf("file %s is empty", name)}
	}
	if v.maxFileSize > 0 && header.Size > v.maxFileSize {
		return nil, &ValidationError{
			Code:    "FILE_TOO_LARGE",
			Message: fmt.Sprintf("file size exceeds maximum limit of %d bytes", v.maxFileSize),
		}
	}

	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	hash, err := calculateHash(f)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate hash: %w", err)
	}

	return &FileInfo{
		Filename:  name,
		Size:      header.Size,
		MimeType:  document.DetectMimeType(name, header.Header.Get("Content-Type")),
		Extension: strings.ToLower(filepath.Ext(name)),
		Hash:      hash,
	}, nil
}

func calculateHash(r io.Reader) (string, error) {
	hash := sha256.New()
	if _, err := io.Copy(hash, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
