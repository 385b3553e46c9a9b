package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/staysignal/backend/internal/models"
	"github.com/staysignal/backend/internal/store"
	"github.com/staysignal/backend/pkg/logger"
)

type EventKind string

const (
	EventAlert          EventKind = "alert"
	EventDigest         EventKind = "digest"
	EventSLABreach      EventKind = "sla_breach"
	EventFeedbackStatus EventKind = "feedback_status"
)

// NotificationEvent is a rendered, channel-agnostic push.
type NotificationEvent struct {
	TenantID uint                   `json:"tenant_id"`
	Kind     EventKind              `json:"kind"`
	Title    string                 `json:"title"`
	Body     string                 `json:"body"`
	Severity string                 `json:"severity,omitempty"`
	Data     map[string]interface{} `json:"data,omitempty"`
}

// Notifier delivers events. Callers treat delivery as best-effort.
type Notifier interface {
	Notify(ctx context.Context, event *NotificationEvent) error
}

// NotificationService fans an event out to the tenant's chat bots.
type NotificationService struct {
	store    store.Store
	adapters func(botType string) NotificationAdapter
}

func NewNotificationService(st store.Store) *NotificationService {
	return &NotificationService{store: st, adapters: getAdapter}
}

func (s *NotificationService) Notify(ctx context.Context, event *NotificationEvent) error {
	bots, err := s.store.ListIMBots(ctx, event.TenantID)
	if err != nil {
		return fmt.Errorf("list bots: %w", err)
	}

	var errs []error
	sent := 0
	for i := range bots {
		bot := &bots[i]
		if !wantsEvent(bot, event.Kind) {
			continue
		}
		if err := s.adapters(bot.Type).Send(ctx, bot, event); err != nil {
			logger.Warnf("[Notification] Bot %s (%s) failed for tenant %d: %v", bot.Name, bot.Type, event.TenantID, err)
			errs = append(errs, fmt.Errorf("bot %d: %w", bot.ID, err))
			continue
		}
		sent++
	}

	if sent == 0 && len(errs) == 0 {
		logger.Debug().Uint("tenant_id", event.TenantID).Str("kind", string(event.Kind)).Msg("[Notification] No bot subscribed")
	}
	return errors.Join(errs...)
}

func wantsEvent(bot *models.IMBot, kind EventKind) bool {
	if !bot.IsActive {
		return false
	}
	if kind == EventDigest {
		return bot.DigestEnabled
	}
	return bot.AlertEnabled
}
