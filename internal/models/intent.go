package models

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ProviderKind tags one of the two supported inference providers.
type ProviderKind string

const (
	ProviderGemini ProviderKind = "gemini"
	ProviderGroq   ProviderKind = "groq"
)

// ParseProvider maps the form value to a ProviderKind. An empty value
// selects Gemini.
func ParseProvider(s string) (ProviderKind, error) {
	switch ProviderKind(strings.ToLower(strings.TrimSpace(s))) {
	case "", ProviderGemini:
		return ProviderGemini, nil
	case ProviderGroq:
		return ProviderGroq, nil
	default:
		return "", fmt.Errorf("unsupported provider: %s", s)
	}
}

// MediaKind separates files sent as-is from paginated documents.
type MediaKind string

const (
	MediaImage    MediaKind = "image"
	MediaDocument MediaKind = "document"
)

// MediaKindFor classifies a MIME type. Anything that is not an image is
// treated as a document.
func MediaKindFor(mimeType string) MediaKind {
	if strings.HasPrefix(mimeType, "image/") {
		return MediaImage
	}
	return MediaDocument
}

// MediaRef points at an attachment on local disk.
type MediaRef struct {
	// Name is what progress messages call the file.
	Name      string
	LocalPath string
	MimeType  string
	Kind      MediaKind
	// Temporary hands ownership of LocalPath to the pipeline, which removes
	// the file once the stream ends.
	Temporary bool
}

// NewMediaRef builds a MediaRef whose kind is derived from mimeType.
func NewMediaRef(path, mimeType string, temporary bool) *MediaRef {
	return &MediaRef{
		Name:      filepath.Base(path),
		LocalPath: path,
		MimeType:  mimeType,
		Kind:      MediaKindFor(mimeType),
		Temporary: temporary,
	}
}

// Intent is one fact-check request, provider-neutral.
type Intent struct {
	Prompt    string
	Media     *MediaRef
	WebSearch bool
	Provider  ProviderKind
	Model     string
}

// UploadedFile is the provider-side reference returned by a resumable
// upload. It is only valid for the request that produced it.
type UploadedFile struct {
	URI      string
	MimeType string
}

// RasterPage is one rendered page of a document.
type RasterPage struct {
	ImagePath string
	Ordinal   int
}

// InlineImage is a local image embedded directly in a request body.
type InlineImage struct {
	Path     string
	MimeType string
}

// Attachments is the provider-ready form of an Intent's media: a remote
// reference for providers that take uploads, inline images for the rest.
type Attachments struct {
	File   *UploadedFile
	Inline []InlineImage
}
