package document

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopeRelease(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.jpg")
	b := filepath.Join(dir, "b.jpg")
	require.NoError(t, os.WriteFile(a, []byte("a"), 0o600))
	require.NoError(t, os.WriteFile(b, []byte("b"), 0o600))

	s := NewScope()
	s.Track(a)
	s.Track(b)
	s.Track(filepath.Join(dir, "never-created.jpg"))
	s.Track("")

	require.NoError(t, s.Release())
	assert.NoFileExists(t, a)
	assert.NoFileExists(t, b)
	assert.Zero(t, s.Len())
	assert.NoError(t, s.Release(), "second release is a no-op")
}

func TestDetectMimeType(t *testing.T) {
	cases := []struct {
		filename, declared, want string
	}{
		{"claim.PDF", "application/octet-stream", "application/pdf"},
		{"photo.jpeg", "", "image/jpeg"},
		{"photo.JPG", "image/png", "image/jpeg"},
		{"shot.png", "image/jpeg", "image/png"},
		{"notes.txt", "text/plain", "text/plain"},
		{"blob", "", "application/octet-stream"},
	}
	for _, tc := range cases {
		t.Run(tc.filename, func(t *testing.T) {
			assert.Equal(t, tc.want, DetectMimeType(tc.filename, tc.declared))
		})
	}
}
