package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/staysignal/backend/internal/config"
	"github.com/staysignal/backend/internal/models"
	"github.com/staysignal/backend/internal/store"
	"github.com/staysignal/backend/pkg/logger"
)

// FeedbackSubmission is what a guest sends from a QR code page.
type FeedbackSubmission struct {
	Rating     int    `json:"rating"`
	Category   string `json:"category"`
	Comment    string `json:"comment"`
	Location   string `json:"location"`
	GuestName  string `json:"guest_name"`
	GuestEmail string `json:"guest_email"`
	GuestPhone string `json:"guest_phone"`
}

func (s *FeedbackSubmission) Validate() error {
	if s.Rating < 1 || s.Rating > 5 {
		return fmt.Errorf("%w: rating must be between 1 and 5, got %d", ErrValidation, s.Rating)
	}
	if strings.TrimSpace(s.Category) == "" {
		return fmt.Errorf("%w: category is required", ErrValidation)
	}
	if len(s.Comment) > 5000 {
		return fmt.Errorf("%w: comment is too long", ErrValidation)
	}
	return nil
}

// FeedbackService is the write path and work queue for internal feedback.
type FeedbackService struct {
	store    store.Store
	settings *TenantSettingsService
	queue    TaskQueue
	audit    *AuditLogger
	alerts   config.AlertConfig
	now      func() time.Time
}

func NewFeedbackService(st store.Store, settings *TenantSettingsService, queue TaskQueue, audit *AuditLogger, cfg *config.Config) *FeedbackService {
	return &FeedbackService{
		store:    st,
		settings: settings,
		queue:    queue,
		audit:    audit,
		alerts:   cfg.Alerts,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *FeedbackService) Submit(ctx context.Context, tenantID uint, sub *FeedbackSubmission) (*models.FeedbackItem, error) {
	if err := sub.Validate(); err != nil {
		return nil, err
	}
	tenant, err := s.store.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, translateStoreErr(err)
	}
	if !tenant.IsActive {
		return nil, fmt.Errorf("%w: tenant %d", ErrNotFound, tenantID)
	}

	now := s.now()
	item := &models.FeedbackItem{
		Rating:     sub.Rating,
		Category:   strings.TrimSpace(sub.Category),
		Comment:    strings.TrimSpace(sub.Comment),
		Location:   strings.TrimSpace(sub.Location),
		GuestName:  strings.TrimSpace(sub.GuestName),
		GuestEmail: strings.TrimSpace(sub.GuestEmail),
		GuestPhone: strings.TrimSpace(sub.GuestPhone),
		Status:     models.FeedbackStatusNew,
		CreatedAt:  now,
	}
	if err := s.store.CreateFeedback(ctx, tenantID, item); err != nil {
		return nil, err
	}

	logger.Info().Uint("tenant_id", tenantID).Uint("feedback_id", item.ID).Int("rating", item.Rating).Str("category", item.Category).Msg("[Feedback] Submitted")

	if item.Rating <= s.alerts.ComplaintMaxRating {
		dispatch(s.queue, NewAlertCheckTask(tenantID, now))
	}
	return item, nil
}

func (s *FeedbackService) Get(ctx context.Context, tenantID, id uint) (*QueueEntry, error) {
	item, err := s.store.GetFeedback(ctx, tenantID, id)
	if err != nil {
		return nil, translateStoreErr(err)
	}
	entry := s.settings.SLAPolicy(ctx, tenantID).Annotate(*item, s.now())
	return &entry, nil
}

// Transition advances an item's status. The write only lands if the stored
// status is still the one the transition was computed from.
func (s *FeedbackService) Transition(ctx context.Context, tenantID, id uint, target models.FeedbackStatus, managerID *uint) (*models.FeedbackItem, error) {
	item, err := s.store.GetFeedback(ctx, tenantID, id)
	if err != nil {
		return nil, translateStoreErr(err)
	}

	next, err := TransitionFeedback(item, target, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateFeedbackStatus(ctx, tenantID, next, item.Status); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, fmt.Errorf("%w: feedback %d changed status concurrently", ErrConflict, id)
		}
		return nil, translateStoreErr(err)
	}

	s.audit.Info(ctx, tenantID, AuditEntry{
		Module:    "feedback",
		Action:    string(target),
		Message:   fmt.Sprintf("Feedback #%d %s -> %s", id, item.Status, target),
		ManagerID: managerID,
		EntityID:  uintPtr(id),
	})
	dispatch(s.queue, NewNotifyTask(feedbackStatusEvent(tenantID, next)))
	return next, nil
}

func feedbackStatusEvent(tenantID uint, item *models.FeedbackItem) *NotificationEvent {
	body := fmt.Sprintf("%d★ %s feedback", item.Rating, item.Category)
	if item.Location != "" {
		body += " from " + item.Location
	}
	return &NotificationEvent{
		TenantID: tenantID,
		Kind:     EventFeedbackStatus,
		Title:    fmt.Sprintf("Feedback #%d %s", item.ID, item.Status),
		Body:     body,
		Data: map[string]interface{}{
			"feedback_id": item.ID,
			"status":      item.Status,
		},
	}
}

// Queue returns open items with their SLA state, highest priority first.
func (s *FeedbackService) Queue(ctx context.Context, tenantID uint, now time.Time) ([]QueueEntry, error) {
	items, err := s.store.ListOpenFeedback(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return s.settings.SLAPolicy(ctx, tenantID).SortByPriority(items, now), nil
}

// SweepSLABreaches pushes one notification per item that has missed its
// acknowledgement deadline. Returns how many were newly pushed.
func (s *FeedbackService) SweepSLABreaches(ctx context.Context, tenantID uint, now time.Time) (int, error) {
	entries, err := s.Queue(ctx, tenantID, now)
	if err != nil {
		return 0, err
	}

	ackWindow := s.settings.SLAPolicy(ctx, tenantID).AckWindow
	pushed := 0
	for _, entry := range entries {
		if entry.SLA.State != SLAStateOverdueAck {
			continue
		}
		alert := &models.AlertLog{
			DedupeKey: fmt.Sprintf("sla_breach:feedback:%d", entry.ID),
			Signal:    string(EventSLABreach),
			Severity:  string(SeverityHigh),
			Summary:   fmt.Sprintf("%d★ %s feedback not acknowledged within %s", entry.Rating, entry.Category, ackWindow),
			CreatedAt: now,
		}
		if err := s.store.LogAlert(ctx, tenantID, alert); err != nil {
			if !errors.Is(err, store.ErrConflict) {
				logger.Warnf("[Feedback] Failed to log SLA breach for #%d: %v", entry.ID, err)
			}
			continue
		}

		dispatch(s.queue, NewNotifyTask(&NotificationEvent{
			TenantID: tenantID,
			Kind:     EventSLABreach,
			Title:    fmt.Sprintf("Feedback #%d overdue for acknowledgement", entry.ID),
			Body:     alert.Summary,
			Severity: string(SeverityHigh),
			Data: map[string]interface{}{
				"feedback_id":     entry.ID,
				"priority":        entry.Priority,
				"hours_remaining": entry.SLA.HoursRemaining,
			},
		}))
		pushed++
	}

	if pushed > 0 {
		logger.Info().Uint("tenant_id", tenantID).Int("count", pushed).Msg("[Feedback] SLA breaches pushed")
	}
	return pushed, nil
}
