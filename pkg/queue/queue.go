// Package queue schedules fact-check jobs on asynq and keeps their status
// in redis.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/feichai0017/factcheck-gateway/internal/models"
	"github.com/feichai0017/factcheck-gateway/pkg/logger"
)

const (
	TaskTypeCheck          = "check:run"
	TaskTypeStorageCleanup = "storage:cleanup"

	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"

	statusKeyPrefix = "check_status:"
)

// DefaultPriorities weights the queues served by a worker. Each call
// returns a new map.
func DefaultPriorities() map[string]int {
	return map[string]int{
		QueueCritical: 6,
		QueueDefault:  3,
		QueueLow:      1,
	}
}

// saveStatusScript writes ARGV[1] to KEYS[1] with a PX of ARGV[2] unless the
// stored status is cancelled. ARGV[3] == "1" forces the write.
const saveStatusScript = `
local prev = redis.call('GET', KEYS[1])
if ARGV[3] ~= '1' and prev then
	local ok, decoded = pcall(cjson.decode, prev)
	if ok and decoded.status == 'cancelled' then
		return 0
	end
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
return 1
`

var (
	ErrJobNotFound = errors.New("job not found")
	ErrJobFinished = errors.New("job already finished")
)

// Queue is the async side of the fact-check service.
type Queue interface {
	Enqueue(ctx context.Context, job *models.CheckJob) error
	GetStatus(ctx context.Context, jobID string) (*models.CheckResult, error)
	Cancel(ctx context.Context, jobID string) error
	SaveStatus(ctx context.Context, result *models.CheckResult) error
}

type Config struct {
	RedisAddr string
	RedisDB   int
	// Timeout bounds one job on the worker.
	Timeout time.Duration
	// StatusTTL is how long results stay readable.
	StatusTTL time.Duration
	// Priorities names the queues looked up for a job. Defaults to
	// DefaultPriorities.
	Priorities map[string]int
}

type AsynqQueue struct {
	client     *asynq.Client
	inspector  *asynq.Inspector
	redis      redis.UniversalClient
	saveStatus *redis.Script
	config     Config
	logger     logger.Logger
}

func NewAsynqQueue(cfg Config, log logger.Logger) *AsynqQueue {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Minute
	}
	if cfg.StatusTTL <= 0 {
		cfg.StatusTTL = 24 * time.Hour
	}
	if len(cfg.Priorities) == 0 {
		cfg.Priorities = DefaultPriorities()
	}
	redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr, DB: cfg.RedisDB}

	return &AsynqQueue{
		client:     asynq.NewClient(redisOpt),
		inspector:  asynq.NewInspector(redisOpt),
		redis:      redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB}),
		saveStatus: redis.NewScript(saveStatusScript),
		config:     cfg,
		logger:     log.Named("queue"),
	}
}

func (q *AsynqQueue) Close() error {
	return errors.Join(q.client.Close(), q.inspector.Close(), q.redis.Close())
}

// Ping reports whether redis is reachable.
func (q *AsynqQueue) Ping(ctx context.Context) error {
	return q.redis.Ping(ctx).Err()
}

// NewCheckTask wraps job as an asynq task. Jobs are never retried; the
// task id is the job id so the job can be found and cancelled later.
func NewCheckTask(job *models.CheckJob, timeout time.Duration) (*asynq.Task, error) {
	payload, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job: %w", err)
	}
	return asynq.NewTask(TaskTypeCheck, payload,
		asynq.TaskID(job.ID),
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(0),
		asynq.Timeout(timeout),
	), nil
}

// ParseCheckTask is the inverse of NewCheckTask.
func ParseCheckTask(t *asynq.Task) (*models.CheckJob, error) {
	var job models.CheckJob
	if err := json.Unmarshal(t.Payload(), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	if job.ID == "" {
		return nil, fmt.Errorf("invalid job: missing id")
	}
	return &job, nil
}

// Enqueue schedules job and records it as pending.
func (q *AsynqQueue) Enqueue(ctx context.Context, job *models.CheckJob) error {
	task, err := NewCheckTask(job, q.config.Timeout)
	if err != nil {
		return err
	}
	if _, err := q.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}

	if err := q.SaveStatus(ctx, &models.CheckResult{
		JobID:     job.ID,
		Status:    models.JobPending,
		CreatedAt: job.CreatedAt,
	}); err != nil {
		q.logger.Error("Failed to save initial status",
			logger.String("jobId", job.ID),
			logger.Error(err),
		)
	}
	return nil
}

// GetStatus reads the stored result, falling back to asynq's own view of
// the task when nothing has been stored yet.
func (q *AsynqQueue) GetStatus(ctx context.Context, jobID string) (*models.CheckResult, error) {
	data, err := q.redis.Get(ctx, statusKeyPrefix+jobID).Bytes()
	switch {
	case err == nil:
		var result models.CheckResult
		if err := json.Unmarshal(data, &result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal status: %w", err)
		}
		return &result, nil
	case !errors.Is(err, redis.Nil):
		return nil, fmt.Errorf("failed to get status from redis: %w", err)
	}

	for queueName := range q.config.Priorities {
		info, err := q.inspector.GetTaskInfo(queueName, jobID)
		if err == nil {
			return convertTaskInfo(info), nil
		}
	}
	return nil, ErrJobNotFound
}

// Cancel removes a job that has not run yet, or asks the worker to stop
// one that is running.
func (q *AsynqQueue) Cancel(ctx context.Context, jobID string) error {
	current, err := q.GetStatus(ctx, jobID)
	if err != nil {
		return err
	}
	if isTerminal(current.Status) {
		return ErrJobFinished
	}

	deleted := false
	for queueName := range q.config.Priorities {
		if err := q.inspector.DeleteTask(queueName, jobID); err == nil {
			deleted = true
			break
		}
	}
	if !deleted {
		if err := q.inspector.CancelProcessing(jobID); err != nil {
			return fmt.Errorf("failed to cancel job: %w", err)
		}
	}

	current.Status = models.JobCancelled
	current.UpdatedAt = time.Now()
	return q.SaveStatus(ctx, current)
}

// SaveStatus stores result for StatusTTL. A cancelled job keeps that
// status; later writes from a worker that lost the race are dropped. The
// check and the write run as one script so a cancel cannot slip between them.
func (q *AsynqQueue) SaveStatus(ctx context.Context, result *models.CheckResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}

	force := "0"
	if result.Status == models.JobCancelled {
		force = "1"
	}
	key := statusKeyPrefix + result.JobID
	if err := q.saveStatus.Run(ctx, q.redis, []string{key}, data, q.config.StatusTTL.Milliseconds(), force).Err(); err != nil {
		return fmt.Errorf("failed to save status: %w", err)
	}
	return nil
}

func isTerminal(s models.JobStatus) bool {
	return s == models.JobCompleted || s == models.JobFailed || s == models.JobCancelled
}

func convertTaskInfo(info *asynq.TaskInfo) *models.CheckResult {
	result := &models.CheckResult{
		JobID:     info.ID,
		Status:    models.JobPending,
		UpdatedAt: time.Now(),
	}
	if job, err := ParseCheckTask(asynq.NewTask(info.Type, info.Payload)); err == nil {
		result.CreatedAt = job.CreatedAt
	}

	switch info.State {
	case asynq.TaskStateActive:
		result.Status = models.JobRunning
	case asynq.TaskStateCompleted:
		result.Status = models.JobCompleted
		result.UpdatedAt = info.CompletedAt
	case asynq.TaskStateArchived, asynq.TaskStateRetry:
		result.Status = models.JobFailed
		result.Error = info.LastErr
	}
	return result
}
