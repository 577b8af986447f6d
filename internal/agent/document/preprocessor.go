package document

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/feichai0017/factcheck-gateway/internal/agent/document/image"
	"github.com/feichai0017/factcheck-gateway/internal/models"
	"github.com/feichai0017/factcheck-gateway/pkg/logger"
)

const (
	// MaxPages caps how many pages of a document reach the provider.
	MaxPages = 5

	mimePDF = "application/pdf"
)

// Rasterizer renders document pages to images.
type Rasterizer interface {
	// Available returns a non-nil error when rendering cannot work here.
	Available() error
	PageCount(path string) (int, error)
	// RenderPage writes page (1-based) of src as a JPEG file at dst.
	RenderPage(ctx context.Context, src string, page int, dst string) error
}

type Options struct {
	MaxPages    int
	MaxEdge     int
	JPEGQuality int
}

// Preprocessor turns an attachment into images a vision model accepts.
type Preprocessor struct {
	rasterizer Rasterizer
	opts       Options
	logger     logger.Logger
}

func NewPreprocessor(rasterizer Rasterizer, opts *Options, log logger.Logger) *Preprocessor {
	o := Options{MaxPages: MaxPages, MaxEdge: 2048, JPEGQuality: 85}
	if opts != nil {
		if opts.MaxPages > 0 && opts.MaxPages < MaxPages {
			o.MaxPages = opts.MaxPages
		}
		if opts.MaxEdge > 0 {
			o.MaxEdge = opts.MaxEdge
		}
		if opts.JPEGQuality > 0 {
			o.JPEGQuality = opts.JPEGQuality
		}
	}
	return &Preprocessor{rasterizer: rasterizer, opts: o, logger: log}
}

// Pages yields the images derived from media in page order. Images pass
// through untouched; PDFs are rendered one page at a time, and pages past
// the cap are dropped. Other documents yield nothing. Every rendered page is a new file the caller must
// delete. The sequence stops after the first error.
func (p *Preprocessor) Pages(ctx context.Context, media models.MediaRef) iter.Seq2[models.RasterPage, error] {
	return func(yield func(models.RasterPage, error) bool) {
		if media.Kind == models.MediaImage {
			yield(models.RasterPage{ImagePath: media.LocalPath, Ordinal: 0}, nil)
			return
		}

		if media.MimeType != mimePDF {
			// a vision model cannot read it; the claim goes out as text only
			p.logger.Debug("No pages for document type",
				logger.String("file", media.LocalPath),
				logger.String("mimeType", media.MimeType),
			)
			return
		}
		if err := p.rasterizer.Available(); err != nil {
			yield(models.RasterPage{}, models.NewError(models.ErrUnsupportedFormat, err.Error(), nil))
			return
		}

		total, err := p.rasterizer.PageCount(media.LocalPath)
		if err != nil {
			yield(models.RasterPage{}, models.NewError(models.ErrPdfConversionFailed, "PDF Conversion failed", err))
			return
		}
		count := min(total, p.opts.MaxPages)
		if total > count {
			p.logger.Debug("Dropping pages beyond cap",
				logger.String("file", media.LocalPath),
				logger.Int("pages", total),
				logger.Int("kept", count),
			)
		}

		base := strings.TrimSuffix(media.LocalPath, ".pdf")
		for i := 0; i < count; i++ {
			dst := fmt.Sprintf("%s_page_%d.jpg", base, i)
			if err := p.renderPage(ctx, media.LocalPath, i, dst); err != nil {
				// dst may exist half-written; hand it over so it is cleaned up
				yield(models.RasterPage{ImagePath: dst, Ordinal: i}, err)
				return
			}
			if !yield(models.RasterPage{ImagePath: dst, Ordinal: i}, nil) {
				return
			}
		}
	}
}

func (p *Preprocessor) renderPage(ctx context.Context, src string, ordinal int, dst string) error {
	if err := p.rasterizer.RenderPage(ctx, src, ordinal+1, dst); err != nil {
		return models.NewError(models.ErrPdfConversionFailed, "PDF Conversion failed", err)
	}
	if err := image.FitJPEG(dst, p.opts.MaxEdge, p.opts.JPEGQuality); err != nil {
		return models.NewError(models.ErrPdfConversionFailed, "PDF Conversion failed", err)
	}
	return nil
}
