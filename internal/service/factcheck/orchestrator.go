// Package factcheck runs fact-check requests against an inference provider
// and turns the result into a single ordered stream of fragments.
package factcheck

import (
	"context"
	"iter"
	"time"

	"github.com/feichai0017/factcheck-gateway/internal/agent/document"
	"github.com/feichai0017/factcheck-gateway/internal/agent/provider"
	"github.com/feichai0017/factcheck-gateway/internal/models"
	"github.com/feichai0017/factcheck-gateway/pkg/logger"
)

const renderedPageMime = "image/jpeg"

// Providers resolves a provider tag to its client.
type Providers interface {
	Select(kind models.ProviderKind) (provider.Provider, error)
}

// Orchestrator drives one Intent through preprocessing or upload, the
// provider call and stream decoding.
type Orchestrator struct {
	providers    Providers
	preprocessor *document.Preprocessor
	logger       logger.Logger
}

func NewOrchestrator(providers Providers, preprocessor *document.Preprocessor, log logger.Logger) *Orchestrator {
	return &Orchestrator{
		providers:    providers,
		preprocessor: preprocessor,
		logger:       log.Named("orchestrator"),
	}
}

// Stream returns the fragments answering intent. The sequence is never
// empty and ends either naturally or with exactly one error fragment.
// Temporary files are removed when the sequence ends, including when the
// consumer stops early. Nothing happens until the sequence is ranged over.
func (o *Orchestrator) Stream(ctx context.Context, intent models.Intent) iter.Seq[models.Fragment] {
	return func(yield func(models.Fragment) bool) {
		log := logger.FromContext(ctx, o.logger).With(
			logger.String("provider", string(intent.Provider)),
			logger.String("model", intent.Model),
		)
		start := time.Now()

		scope := document.NewScope()
		defer func() {
			if err := scope.Release(); err != nil {
				log.Warn("Failed to remove temporary files", logger.Error(err))
			}
		}()
		if intent.Media != nil && intent.Media.Temporary {
			scope.Track(intent.Media.LocalPath)
		}

		r := emitter{yield: yield}
		err := o.run(ctx, intent, scope, &r)
		switch {
		case r.stopped:
			log.Info("Client stopped reading", logger.Int("fragments", r.fragments))
		case err != nil:
			pe := models.AsPipelineError(err)
			log.Error("Fact-check failed",
				logger.String("kind", string(pe.Kind)),
				logger.Error(err),
				logger.Int("fragments", r.fragments),
			)
			yield(models.ErrorFragment(pe))
		default:
			log.Info("Fact-check completed",
				logger.Int("fragments", r.fragments),
				logger.Duration("elapsed", time.Since(start)),
			)
		}
	}
}

// emitter tracks what reached the consumer.
type emitter struct {
	yield     func(models.Fragment) bool
	fragments int
	texts     int
	stopped   bool
}

func (r *emitter) emit(f models.Fragment) bool {
	r.fragments++
	if !r.yield(f) {
		r.stopped = true
		return false
	}
	return true
}

// run returns nil on success or when the consumer stopped early.
func (o *Orchestrator) run(ctx context.Context, intent models.Intent, scope *document.Scope, r *emitter) error {
	p, err := o.providers.Select(intent.Provider)
	if err != nil {
		return models.NewError(models.ErrProviderRequestFailed, err.Error(), nil)
	}

	var att models.Attachments
	if intent.Media != nil {
		if uploader, ok := p.(provider.Uploader); ok {
			if !r.emit(models.ProgressFragment("// Uploading " + intent.Media.Name + " to Google Vault...\n")) {
				return nil
			}
			file, err := uploader.Upload(ctx, intent.Media.LocalPath, intent.Media.MimeType)
			if err != nil {
				return err
			}
			att.File = file
			if !r.emit(models.ProgressFragment("// Upload Complete. Analysis Started...\n")) {
				return nil
			}
		} else {
			inline, err := o.inlineImages(ctx, *intent.Media, scope)
			if err != nil {
				return err
			}
			att.Inline = inline
			if !r.emit(models.ProgressFragment("// Processing " + intent.Media.Name + " for Vision Model...\n")) {
				return nil
			}
		}
	}

	req, err := p.BuildRequest(ctx, intent, att)
	if err != nil {
		return err
	}
	resp, err := p.Execute(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	for text, err := range p.Decode(ctx, resp.Body) {
		if err != nil {
			return models.NewError(models.ErrProviderRequestFailed, "stream interrupted", err)
		}
		r.texts++
		if !r.emit(models.TextFragment(text)) {
			return nil
		}
	}
	if r.texts == 0 {
		return models.Errorf(models.ErrProviderRequestFailed, "empty response")
	}
	return nil
}

// inlineImages collects the images to embed for media. Rendered pages are
// tracked in scope as soon as they exist.
func (o *Orchestrator) inlineImages(ctx context.Context, media models.MediaRef, scope *document.Scope) ([]models.InlineImage, error) {
	var images []models.InlineImage
	for page, err := range o.preprocessor.Pages(ctx, media) {
		if page.ImagePath != "" && page.ImagePath != media.LocalPath {
			scope.Track(page.ImagePath)
		}
		if err != nil {
			return nil, err
		}
		mime := renderedPageMime
		if page.ImagePath == media.LocalPath {
			mime = media.MimeType
		}
		images = append(images, models.InlineImage{Path: page.ImagePath, MimeType: mime})
	}
	return images, nil
}
