package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/staysignal/backend/internal/models"
)

type alertChecker interface {
	CheckAndNotify(ctx context.Context, tenantID uint, now time.Time) ([]AlertPayload, error)
}

type draftGenerator interface {
	GenerateDraft(ctx context.Context, tenantID, reviewID uint) (*models.ReviewResponse, error)
}

// TaskProcessor executes queued side effects. The same processor backs the
// asynq worker and the in-process SyncQueue.
type TaskProcessor struct {
	notifier Notifier
	alerts   alertChecker
	drafts   draftGenerator
}

func NewTaskProcessor(notifier Notifier, alerts alertChecker, drafts draftGenerator) *TaskProcessor {
	return &TaskProcessor{notifier: notifier, alerts: alerts, drafts: drafts}
}

func (p *TaskProcessor) Process(ctx context.Context, task *Task) error {
	switch task.Type {
	case TaskTypeNotify:
		if task.Event == nil {
			return fmt.Errorf("notify task without event")
		}
		return p.notifier.Notify(ctx, task.Event)

	case TaskTypeAlertCheck:
		at := task.At
		if at.IsZero() {
			at = time.Now().UTC()
		}
		_, err := p.alerts.CheckAndNotify(ctx, task.TenantID, at)
		return err

	case TaskTypeDraft:
		_, err := p.drafts.GenerateDraft(ctx, task.TenantID, task.ReviewID)
		// Someone already drafted or the review is gone; nothing to retry.
		if errors.Is(err, ErrInvalidState) || errors.Is(err, ErrNotFound) {
			return nil
		}
		return err

	default:
		return fmt.Errorf("unknown task type %q", task.Type)
	}
}
