package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/hibiken/asynq"
	"github.com/staysignal/backend/internal/config"
	"github.com/staysignal/backend/pkg/logger"
)

const (
	queueCritical = "critical"
	queueDefault  = "default"

	workerConcurrency = 10
	maxRetryDelay     = 10 * time.Minute
)

// Worker consumes side-effect tasks from Redis. Alert checks and
// notifications go to the critical queue and are served twice as often as
// draft generation.
type Worker struct {
	server  *asynq.Server
	process func(context.Context, *Task) error
}

// NewWorker returns nil when Redis is disabled; the sync queue runs tasks
// in-process instead.
func NewWorker(cfg *config.RedisConfig, process func(context.Context, *Task) error) *Worker {
	if !cfg.Enabled {
		return nil
	}

	server := asynq.NewServer(redisOpt(cfg), asynq.Config{
		Concurrency:     workerConcurrency,
		Queues:          map[string]int{queueCritical: 6, queueDefault: 3},
		RetryDelayFunc:  retryDelay,
		ShutdownTimeout: 20 * time.Second,
		ErrorHandler:    asynq.ErrorHandlerFunc(logTaskFailure),
	})
	return &Worker{server: server, process: process}
}

// Start registers the task handlers and returns once the server is polling.
func (w *Worker) Start() error {
	mux := asynq.NewServeMux()
	for _, taskType := range []string{TaskTypeNotify, TaskTypeAlertCheck, TaskTypeDraft} {
		mux.HandleFunc(taskType, w.handle)
	}
	if err := w.server.Start(mux); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}
	logger.Info().Int("concurrency", workerConcurrency).Msg("[Worker] Started")
	return nil
}

func (w *Worker) Stop() {
	w.server.Shutdown()
	logger.Infof("[Worker] Stopped")
}

func (w *Worker) handle(ctx context.Context, t *asynq.Task) error {
	task, err := decodeTask(t)
	if err != nil {
		return err
	}
	logger.Debug().Str("type", task.Type).Uint("tenant_id", task.TenantID).Uint("review_id", task.ReviewID).Msg("[Worker] Processing task")
	return w.process(ctx, task)
}

// decodeTask rejects payloads that can never succeed so asynq archives them
// instead of retrying.
func decodeTask(t *asynq.Task) (*Task, error) {
	var task Task
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		return nil, fmt.Errorf("decode %s: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	if task.Type != t.Type() {
		return nil, fmt.Errorf("payload type %q does not match %q: %w", task.Type, t.Type(), asynq.SkipRetry)
	}
	if task.TenantID == 0 {
		return nil, fmt.Errorf("%s without tenant: %w", t.Type(), asynq.SkipRetry)
	}
	return &task, nil
}

// retryDelay backs off 10s, 20s, 40s... capped at maxRetryDelay.
func retryDelay(n int, _ error, _ *asynq.Task) time.Duration {
	if n > 10 {
		return maxRetryDelay
	}
	d := time.Duration(float64(10*time.Second) * math.Pow(2, float64(n)))
	if d > maxRetryDelay {
		return maxRetryDelay
	}
	return d
}

func logTaskFailure(ctx context.Context, t *asynq.Task, err error) {
	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	logger.Warn().Err(err).
		Str("type", t.Type()).
		Int("retried", retried).
		Int("max_retry", maxRetry).
		Msg("[Worker] Task failed")
}
