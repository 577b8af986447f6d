package factcheck

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/feichai0017/factcheck-gateway/internal/agent/document"
	"github.com/feichai0017/factcheck-gateway/internal/models"
	"github.com/feichai0017/factcheck-gateway/pkg/logger"
	"github.com/feichai0017/factcheck-gateway/pkg/queue"
	"github.com/feichai0017/factcheck-gateway/pkg/storage"
)

// ErrAsyncUnavailable is returned by the async operations when the
// service runs without a queue or an object store.
var ErrAsyncUnavailable = errors.New("async checks are not configured")

// Upload is an attachment as received from a client.
type Upload struct {
	Name     string
	MimeType string
	Reader   io.Reader
}

// CheckRequest is a claim submitted for checking.
type CheckRequest struct {
	Input     string
	Provider  models.ProviderKind
	Model     string
	WebSearch bool
	// File is optional.
	File *Upload
}

type ServiceConfig struct {
	UploadDir       string
	RetentionPeriod time.Duration
	MaxConcurrent   int
}

// Service is the entry point of handlers and workers.
type Service struct {
	orchestrator *Orchestrator
	queue        queue.Queue
	storage      storage.Storage
	logger       logger.Logger
	config       ServiceConfig
}

// NewService wires the service. q and store may be nil, in which case only
// streaming checks are available.
func NewService(orchestrator *Orchestrator, q queue.Queue, store storage.Storage, log logger.Logger, cfg *ServiceConfig) *Service {
	c := ServiceConfig{
		UploadDir:       "tmp_uploads",
		RetentionPeriod: 24 * time.Hour,
		MaxConcurrent:   5,
	}
	if cfg != nil {
		if cfg.UploadDir != "" {
			c.UploadDir = cfg.UploadDir
		}
		if cfg.RetentionPeriod > 0 {
			c.RetentionPeriod = cfg.RetentionPeriod
		}
		if cfg.MaxConcurrent > 0 {
			c.MaxConcurrent = cfg.MaxConcurrent
		}
	}
	return &Service{
		orchestrator: orchestrator,
		queue:        q,
		storage:      store,
		logger:       log.Named("factcheck"),
		config:       c,
	}
}

// Stream runs intent and yields its fragments as they arrive.
func (s *Service) Stream(ctx context.Context, intent models.Intent) iter.Seq[models.Fragment] {
	return s.orchestrator.Stream(ctx, intent)
}

// SaveUpload writes an attachment into the upload directory under a
// unique name. The returned media is temporary: the stream that consumes
// it deletes the file.
func (s *Service) SaveUpload(u *Upload) (*models.MediaRef, error) {
	if err := os.MkdirAll(s.config.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}

	name := filepath.Base(u.Name)
	path := filepath.Join(s.config.UploadDir, uuid.NewString()+"_"+name)
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload file: %w", err)
	}
	if _, err := io.Copy(f, u.Reader); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("failed to save upload: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to save upload: %w", err)
	}

	media := models.NewMediaRef(path, document.DetectMimeType(name, u.MimeType), true)
	media.Name = name
	return media, nil
}

// Collect runs intent to completion and returns the verdict text. Progress
// markers are not part of the verdict.
func (s *Service) Collect(ctx context.Context, intent models.Intent) (string, error) {
	var sb strings.Builder
	for f := range s.orchestrator.Stream(ctx, intent) {
		switch {
		case f.IsError():
			return sb.String(), f.Err
		case !f.Progress:
			sb.WriteString(f.Text)
		}
	}
	return sb.String(), nil
}

func (s *Service) asyncReady() error {
	if s.queue == nil || s.storage == nil {
		return ErrAsyncUnavailable
	}
	return nil
}

// Submit stores the attachment, if any, and queues the check.
func (s *Service) Submit(ctx context.Context, req CheckRequest) (*models.CheckJob, error) {
	if err := s.asyncReady(); err != nil {
		return nil, err
	}

	job := &models.CheckJob{
		ID:        uuid.NewString(),
		Prompt:    req.Input,
		Provider:  req.Provider,
		Model:     req.Model,
		WebSearch: req.WebSearch,
		CreatedAt: time.Now(),
	}

	if req.File != nil {
		name := filepath.Base(req.File.Name)
		key, err := s.storage.Store(ctx, req.File.Reader, storage.AttachmentKey(job.ID, name))
		if err != nil {
			return nil, fmt.Errorf("failed to store attachment: %w", err)
		}
		job.FileKey = key
		job.FileName = name
		job.MimeType = document.DetectMimeType(name, req.File.MimeType)
	}

	if err := s.queue.Enqueue(ctx, job); err != nil {
		s.logger.Error("Failed to enqueue check",
			logger.String("jobId", job.ID),
			logger.Error(err),
		)
		if job.FileKey != "" {
			_ = s.storage.Delete(context.WithoutCancel(ctx), job.FileKey)
		}
		return nil, fmt.Errorf("failed to enqueue check: %w", err)
	}

	s.logger.Info("Check queued",
		logger.String("jobId", job.ID),
		logger.String("provider", string(job.Provider)),
		logger.Bool("attachment", job.FileKey != ""),
	)
	return job, nil
}

// SubmitBatch queues every request concurrently. Jobs queued before a
// failure are returned along with the error.
func (s *Service) SubmitBatch(ctx context.Context, reqs []CheckRequest) ([]*models.CheckJob, error) {
	if err := s.asyncReady(); err != nil {
		return nil, err
	}

	jobs := make([]*models.CheckJob, 0, len(reqs))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.MaxConcurrent)
	for i, req := range reqs {
		g.Go(func() error {
			job, err := s.Submit(gctx, req)
			if err != nil {
				return fmt.Errorf("claim %d: %w", i, err)
			}
			mu.Lock()
			jobs = append(jobs, job)
			mu.Unlock()
			return nil
		})
	}

	err := g.Wait()
	return jobs, err
}

func (s *Service) Status(ctx context.Context, jobID string) (*models.CheckResult, error) {
	if err := s.asyncReady(); err != nil {
		return nil, err
	}
	return s.queue.GetStatus(ctx, jobID)
}

func (s *Service) Cancel(ctx context.Context, jobID string) error {
	if err := s.asyncReady(); err != nil {
		return err
	}
	if err := s.queue.Cancel(ctx, jobID); err != nil {
		return err
	}
	s.logger.Info("Check cancelled", logger.String("jobId", jobID))
	return nil
}

// HandleCheck runs a queued job on a worker. Pipeline failures are part of
// the job's result, not task errors; the returned error only reports that
// the job could not be run at all.
func (s *Service) HandleCheck(ctx context.Context, job *models.CheckJob) error {
	if err := s.asyncReady(); err != nil {
		return err
	}
	log := s.logger.With(logger.String("jobId", job.ID))

	result := &models.CheckResult{JobID: job.ID, Status: models.JobRunning, CreatedAt: job.CreatedAt, UpdatedAt: time.Now()}
	if err := s.queue.SaveStatus(ctx, result); err != nil {
		log.Error("Failed to save running status", logger.Error(err))
	}

	var media *models.MediaRef
	if job.FileKey != "" {
		// the attachment is single use whatever the outcome
		defer func() {
			if err := s.storage.Delete(context.WithoutCancel(ctx), job.FileKey); err != nil {
				log.Warn("Failed to delete attachment", logger.Error(err))
			}
		}()

		m, err := s.fetchAttachment(ctx, job)
		if err != nil {
			return s.finish(ctx, result, "", err)
		}
		media = m
	}

	intent := NewIntent(job.Prompt, media, job.WebSearch, job.Provider, job.Model)
	verdict, err := s.Collect(ctx, intent)
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		result.Status = models.JobCancelled
		result.UpdatedAt = time.Now()
		return s.queue.SaveStatus(context.WithoutCancel(ctx), result)
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		err = fmt.Errorf("check timed out: %w", ctx.Err())
	}
	return s.finish(ctx, result, verdict, err)
}

// finish records the terminal status. It is written even when ctx has
// expired so a timed-out job does not stay running.
func (s *Service) finish(ctx context.Context, result *models.CheckResult, verdict string, err error) error {
	ctx = context.WithoutCancel(ctx)
	result.UpdatedAt = time.Now()
	result.Verdict = verdict
	if err != nil {
		result.Status = models.JobFailed
		result.Error = err.Error()
		var pe *models.PipelineError
		if errors.As(err, &pe) {
			result.ErrorKind = pe.Kind
		}
	} else {
		result.Status = models.JobCompleted
		if p, ok := ExtractProbability(verdict); ok {
			result.Probability = &p
		}
	}

	if err := s.queue.SaveStatus(ctx, result); err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}
	s.logger.Info("Check finished",
		logger.String("jobId", result.JobID),
		logger.String("status", string(result.Status)),
	)
	return nil
}

// fetchAttachment copies the stored attachment to the upload directory.
func (s *Service) fetchAttachment(ctx context.Context, job *models.CheckJob) (*models.MediaRef, error) {
	reader, err := s.storage.Get(ctx, job.FileKey)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch attachment: %w", err)
	}
	defer reader.Close()

	media, err := s.SaveUpload(&Upload{Name: job.FileName, MimeType: job.MimeType, Reader: reader})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch attachment: %w", err)
	}
	return media, nil
}

// Cleanup purges attachments older than the retention period.
func (s *Service) Cleanup(ctx context.Context) error {
	if err := s.asyncReady(); err != nil {
		return err
	}
	threshold := time.Now().Add(-s.config.RetentionPeriod)
	if err := s.storage.CleanupBefore(ctx, threshold); err != nil {
		return fmt.Errorf("failed to cleanup storage: %w", err)
	}
	s.logger.Info("Completed attachment cleanup", logger.Time("threshold", threshold))
	return nil
}
