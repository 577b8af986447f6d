package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/feichai0017/factcheck-gateway/internal/models"
	"github.com/feichai0017/factcheck-gateway/pkg/logger"
	"github.com/feichai0017/factcheck-gateway/pkg/queue"
)

// CheckRunner does the work behind each task type.
type CheckRunner interface {
	HandleCheck(ctx context.Context, job *models.CheckJob) error
	Cleanup(ctx context.Context) error
}

type CheckWorker struct {
	BaseWorker
	runner CheckRunner
}

func NewCheckWorker(cfg *Config, runner CheckRunner, log logger.Logger) (*CheckWorker, error) {
	redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr, DB: cfg.RedisDB}
	queues := cfg.Queues
	if len(queues) == 0 {
		queues = queue.DefaultPriorities()
	}
	log = log.Named("worker")

	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues:      queues,
		RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
			return time.Duration(n) * time.Minute
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			log.Error("Task failed",
				logger.String("type", task.Type()),
				logger.Error(err),
			)
		}),
	})

	w := &CheckWorker{
		BaseWorker: BaseWorker{
			server: server,
			mux:    asynq.NewServeMux(),
			logger: log,
		},
		runner: runner,
	}

	if cfg.CleanupSpec != "" {
		w.scheduler = asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{})
		if _, err := w.scheduler.Register(cfg.CleanupSpec, asynq.NewTask(queue.TaskTypeStorageCleanup, nil),
			asynq.Queue(queue.QueueLow), asynq.MaxRetry(0)); err != nil {
			return nil, fmt.Errorf("failed to schedule cleanup: %w", err)
		}
	}

	w.registerHandlers()
	return w, nil
}

func (w *CheckWorker) registerHandlers() {
	w.mux.HandleFunc(queue.TaskTypeCheck, w.handleCheck)
	w.mux.HandleFunc(queue.TaskTypeStorageCleanup, w.handleCleanup)
}

func (w *CheckWorker) handleCheck(ctx context.Context, t *asynq.Task) error {
	job, err := queue.ParseCheckTask(t)
	if err != nil {
		w.logger.Error("Invalid check task",
			logger.Error(err),
			logger.String("payload", string(t.Payload())),
		)
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	w.logger.Info("Processing check",
		logger.String("jobId", job.ID),
		logger.String("provider", string(job.Provider)),
		logger.Bool("attachment", job.FileKey != ""),
	)
	return w.runner.HandleCheck(ctx, job)
}

func (w *CheckWorker) handleCleanup(ctx context.Context, _ *asynq.Task) error {
	return w.runner.Cleanup(ctx)
}

// Start runs the server, and the scheduler when one is configured, until
// ctx is done.
func (w *CheckWorker) Start(ctx context.Context) error {
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("failed to start worker server: %w", err)
	}
	if w.scheduler != nil {
		if err := w.scheduler.Start(); err != nil {
			w.server.Shutdown()
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	go func() {
		<-ctx.Done()
		w.Stop()
	}()
	return nil
}
