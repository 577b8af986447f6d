package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/feichai0017/factcheck-gateway/pkg/logger"
)

// DefaultBinary is poppler's page renderer.
const DefaultBinary = "pdftoppm"

// ErrRendererMissing is returned by Available when the renderer binary is
// not installed.
var ErrRendererMissing = errors.New("PDF support not available (poppler/pdftoppm missing)")

// Rasterizer renders PDF pages to JPEG files by shelling out to pdftoppm.
// Page counting uses an in-process PDF parser so a broken file is rejected
// before any rendering starts.
type Rasterizer struct {
	binary string
	dpi    int
	logger logger.Logger
}

func NewRasterizer(binary string, dpi int, log logger.Logger) *Rasterizer {
	if binary == "" {
		binary = DefaultBinary
	}
	if dpi <= 0 {
		dpi = 150
	}
	return &Rasterizer{binary: binary, dpi: dpi, logger: log}
}

// Available reports whether the renderer can run in this environment.
func (r *Rasterizer) Available() error {
	if _, err := exec.LookPath(r.binary); err != nil {
		return ErrRendererMissing
	}
	return nil
}

// PageCount parses the document and returns its number of pages.
func (r *Rasterizer) PageCount(path string) (n int, err error) {
	// the parser panics on some truncated files
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("failed to parse PDF: %v", rec)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	return reader.NumPage(), nil
}

// RenderPage writes page (1-based) of src as a JPEG at dst.
func (r *Rasterizer) RenderPage(ctx context.Context, src string, page int, dst string) error {
	prefix := strings.TrimSuffix(dst, ".jpg")
	pageArg := strconv.Itoa(page)

	cmd := exec.CommandContext(ctx, r.binary,
		"-jpeg",
		"-r", strconv.Itoa(r.dpi),
		"-f", pageArg,
		"-l", pageArg,
		"-singlefile",
		src, prefix,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		r.logger.Error("Page rendering failed",
			logger.String("file", src),
			logger.Int("page", page),
			logger.String("stderr", stderr.String()),
			logger.Error(err),
		)
		return fmt.Errorf("failed to render page %d: %w", page, err)
	}
	return nil
}
