package document

import (
	"path/filepath"
	"strings"
)

// extToMIME overrides whatever MIME type the client declared.
var extToMIME = map[string]string{
	".pdf":  "application/pdf",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

// DetectMimeType corrects the declared MIME type of an upload from its file
// extension.
func DetectMimeType(filename, declared string) string {
	if mimeType, ok := extToMIME[strings.ToLower(filepath.Ext(filename))]; ok {
		return mimeType
	}
	if declared == "" {
		return "application/octet-stream"
	}
	return declared
}
