// Package storage keeps attachments of queued checks until a worker has
// consumed them.
package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/feichai0017/factcheck-gateway/config"
	"github.com/feichai0017/factcheck-gateway/pkg/logger"
	"github.com/feichai0017/factcheck-gateway/pkg/storage/minio"
	"github.com/feichai0017/factcheck-gateway/pkg/storage/s3"
)

// Storage is an object store addressed by key.
type Storage interface {
	// Store writes reader under key and returns the key.
	Store(ctx context.Context, reader io.Reader, key string) (string, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	// CleanupBefore removes every object last modified before threshold.
	CleanupBefore(ctx context.Context, threshold time.Time) error
}

// connectAttempts bounds how often NewStorage dials a store that is still
// coming up.
const connectAttempts = 5

// NewStorage connects to the store selected by cfg.Type, retrying with
// exponential backoff while the store is unreachable.
func NewStorage(ctx context.Context, cfg config.StorageConfig, log logger.Logger) (Storage, error) {
	var connect func(context.Context) (Storage, error)
	switch cfg.Type {
	case config.StorageTypeS3:
		connect = func(ctx context.Context) (Storage, error) { return s3.NewS3Storage(ctx, cfg.S3, log) }
	case config.StorageTypeMinio:
		connect = func(ctx context.Context) (Storage, error) { return minio.NewMinioStorage(ctx, cfg.Minio, log) }
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
	return connectWithRetry(ctx, connect, newBackOff(ctx), log)
}

func newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	return backoff.WithContext(backoff.WithMaxRetries(b, connectAttempts-1), ctx)
}

func connectWithRetry(ctx context.Context, connect func(context.Context) (Storage, error), b backoff.BackOff, log logger.Logger) (Storage, error) {
	var store Storage
	op := func() error {
		s, err := connect(ctx)
		if err != nil {
			return err
		}
		store = s
		return nil
	}
	notify := func(err error, wait time.Duration) {
		log.Warn("Storage not reachable, retrying",
			logger.Error(err),
			logger.Duration("wait", wait),
		)
	}
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return nil, fmt.Errorf("failed to connect to storage: %w", err)
	}
	return store, nil
}

// AttachmentKey is where the attachment of job is stored.
func AttachmentKey(jobID, filename string) string {
	return "attachments/" + jobID + "/" + filename
}
