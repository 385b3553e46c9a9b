package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/staysignal/backend/internal/config"
	"github.com/staysignal/backend/pkg/logger"
)

const (
	TaskTypeNotify     = "notify:send"
	TaskTypeAlertCheck = "alert:check"
	TaskTypeDraft      = "response:draft"
)

// Task is a side effect that runs after the request or tick that caused it.
// Losing one never corrupts state: drafts are retried by the scheduler and
// alert checks re-run every interval.
type Task struct {
	Type     string             `json:"type"`
	TenantID uint               `json:"tenant_id"`
	ReviewID uint               `json:"review_id,omitempty"`
	Event    *NotificationEvent `json:"event,omitempty"`
	At       time.Time          `json:"at"`
}

func NewNotifyTask(event *NotificationEvent) *Task {
	return &Task{Type: TaskTypeNotify, TenantID: event.TenantID, Event: event, At: time.Now().UTC()}
}

func NewAlertCheckTask(tenantID uint, at time.Time) *Task {
	return &Task{Type: TaskTypeAlertCheck, TenantID: tenantID, At: at.UTC()}
}

func NewDraftTask(tenantID, reviewID uint) *Task {
	return &Task{Type: TaskTypeDraft, TenantID: tenantID, ReviewID: reviewID, At: time.Now().UTC()}
}

type TaskQueue interface {
	Enqueue(task *Task) error
	IsAsync() bool
	Close() error
}

// dispatch enqueues a task and only logs a failure.
func dispatch(queue TaskQueue, task *Task) {
	if queue == nil {
		return
	}
	if err := queue.Enqueue(task); err != nil {
		logger.Warn().Err(err).Str("type", task.Type).Uint("tenant_id", task.TenantID).Msg("[TaskQueue] Enqueue failed")
	}
}

// NewTaskQueue picks the Redis-backed queue when it is enabled and
// reachable, otherwise the in-process one.
func NewTaskQueue(cfg *config.RedisConfig) TaskQueue {
	if !cfg.Enabled {
		logger.Infof("[TaskQueue] Redis disabled, running tasks in-process")
		return NewSyncQueue()
	}
	queue, err := NewAsyncQueue(cfg)
	if err != nil {
		logger.Warn().Err(err).Str("addr", cfg.Addr).Msg("[TaskQueue] Redis unreachable, running tasks in-process")
		return NewSyncQueue()
	}
	logger.Info().Str("addr", cfg.Addr).Msg("[TaskQueue] Using Redis")
	return queue
}

func redisOpt(cfg *config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

type AsyncQueue struct {
	client *asynq.Client
}

// NewAsyncQueue fails fast if Redis does not answer.
func NewAsyncQueue(cfg *config.RedisConfig) (*AsyncQueue, error) {
	opt := redisOpt(cfg)
	inspector := asynq.NewInspector(opt)
	defer inspector.Close()
	if _, err := inspector.Queues(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &AsyncQueue{client: asynq.NewClient(opt)}, nil
}

// taskOptions routes alert work to the critical queue. Alert checks for a
// tenant collapse per minute and draft requests per review.
func taskOptions(task *Task) []asynq.Option {
	opts := []asynq.Option{asynq.MaxRetry(3)}
	switch task.Type {
	case TaskTypeAlertCheck:
		opts = append(opts,
			asynq.Queue(queueCritical),
			asynq.TaskID(alertCheckID(task.TenantID, task.At)),
		)
	case TaskTypeNotify:
		opts = append(opts, asynq.Queue(queueCritical))
	case TaskTypeDraft:
		opts = append(opts,
			asynq.Queue(queueDefault),
			asynq.TaskID(fmt.Sprintf("draft:%d:%d", task.TenantID, task.ReviewID)),
			asynq.Timeout(2*time.Minute),
		)
	default:
		opts = append(opts, asynq.Queue(queueDefault))
	}
	return opts
}

func alertCheckID(tenantID uint, at time.Time) string {
	return fmt.Sprintf("alert:%d:%d", tenantID, at.Truncate(time.Minute).Unix())
}

func (q *AsyncQueue) Enqueue(task *Task) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return err
	}

	info, err := q.client.Enqueue(asynq.NewTask(task.Type, payload), taskOptions(task)...)
	switch {
	case errors.Is(err, asynq.ErrDuplicateTask), errors.Is(err, asynq.ErrTaskIDConflict):
		logger.Debug().Str("type", task.Type).Uint("tenant_id", task.TenantID).Msg("[TaskQueue] Duplicate task skipped")
		return nil
	case err != nil:
		return err
	}

	logger.Debug().Str("id", info.ID).Str("type", task.Type).Str("queue", info.Queue).Msg("[TaskQueue] Enqueued")
	return nil
}

func (q *AsyncQueue) IsAsync() bool { return true }

func (q *AsyncQueue) Close() error { return q.client.Close() }

// SyncQueue runs each task on its own goroutine. Close waits for the ones in
// flight so shutdown does not cut a notification in half.
type SyncQueue struct {
	mu        sync.RWMutex
	processor func(context.Context, *Task) error
	wg        sync.WaitGroup
}

func NewSyncQueue() *SyncQueue {
	return &SyncQueue{}
}

// SetProcessor attaches the handler; tasks enqueued before it is set are dropped.
func (q *SyncQueue) SetProcessor(processor func(context.Context, *Task) error) {
	q.mu.Lock()
	q.processor = processor
	q.mu.Unlock()
}

func (q *SyncQueue) Enqueue(task *Task) error {
	q.mu.RLock()
	process := q.processor
	q.mu.RUnlock()

	if process == nil {
		logger.Warn().Str("type", task.Type).Msg("[TaskQueue] No processor attached, task dropped")
		return nil
	}

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		if err := process(context.Background(), task); err != nil {
			logger.Warn().Err(err).Str("type", task.Type).Uint("tenant_id", task.TenantID).Msg("[TaskQueue] Task failed")
		}
	}()
	return nil
}

// Wait blocks until in-flight tasks finish.
func (q *SyncQueue) Wait() {
	q.wg.Wait()
}

func (q *SyncQueue) IsAsync() bool { return false }

func (q *SyncQueue) Close() error {
	q.Wait()
	return nil
}
