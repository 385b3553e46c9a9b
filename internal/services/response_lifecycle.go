package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/staysignal/backend/internal/config"
	"github.com/staysignal/backend/internal/models"
	"github.com/staysignal/backend/internal/store"
	"github.com/staysignal/backend/pkg/logger"
)

// RejectOutcome carries the durable rejection and, when regeneration
// succeeded, the next draft.
type RejectOutcome struct {
	Rejected *models.ReviewResponse `json:"rejected"`
	Draft    *models.ReviewResponse `json:"draft,omitempty"`
}

// ResponseService drives a review's reply through
// draft -> approved -> posted, or draft -> rejected -> next draft.
// Every status change is a conditional write on the expected current status.
type ResponseService struct {
	store     store.Store
	drafter   Drafter
	extractor IssueExtractor
	queue     TaskQueue
	audit     *AuditLogger
	drafting  config.DraftingConfig
	alerts    config.AlertConfig
	now       func() time.Time
}

func NewResponseService(st store.Store, drafter Drafter, extractor IssueExtractor, queue TaskQueue, audit *AuditLogger, cfg *config.Config) *ResponseService {
	if extractor == nil {
		extractor = NewKeywordIssueExtractor()
	}
	return &ResponseService{
		store:     st,
		drafter:   drafter,
		extractor: extractor,
		queue:     queue,
		audit:     audit,
		drafting:  cfg.Drafting,
		alerts:    cfg.Alerts,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// GenerateDraft creates the next draft version for a review. It refuses while
// the review already has a draft or approved response. When the last decided
// version was rejected, the new draft is written against that rejection.
func (s *ResponseService) GenerateDraft(ctx context.Context, tenantID, reviewID uint) (*models.ReviewResponse, error) {
	review, err := s.store.GetExternalReview(ctx, tenantID, reviewID)
	if err != nil {
		return nil, translateStoreErr(err)
	}
	if active, err := s.store.ActiveResponse(ctx, tenantID, reviewID); err == nil {
		return nil, fmt.Errorf("%w: review %d already has %s response v%d", ErrInvalidState, reviewID, active.Status, active.Version)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	tenant, err := s.store.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, translateStoreErr(err)
	}

	dc := s.draftContext(tenant, review)
	rejected, err := s.lastRejected(ctx, tenantID, reviewID)
	if err != nil {
		return nil, err
	}
	if rejected != nil {
		s.applyRejection(dc, review, rejected)
	}
	return s.generate(ctx, review, dc, ErrGenerationFailed)
}

// lastRejected returns the newest response that is not a failed attempt,
// if it was rejected.
func (s *ResponseService) lastRejected(ctx context.Context, tenantID, reviewID uint) (*models.ReviewResponse, error) {
	history, err := s.store.ListResponsesByReview(ctx, tenantID, reviewID)
	if err != nil {
		return nil, err
	}
	for i := len(history) - 1; i >= 0; i-- {
		switch history[i].Status {
		case models.ResponseStatusFailed:
			continue
		case models.ResponseStatusRejected:
			return &history[i], nil
		}
		return nil, nil
	}
	return nil, nil
}

func (s *ResponseService) applyRejection(dc *DraftContext, review *models.ExternalReview, rejected *models.ReviewResponse) {
	dc.Issues = s.extractor.Extract(review.Text)
	dc.RejectionReason = rejected.RejectionReason
	dc.PreviousDraft = rejected.Text
}

func (s *ResponseService) draftContext(tenant *models.Tenant, review *models.ExternalReview) *DraftContext {
	return &DraftContext{
		TenantID:     tenant.ID,
		Platform:     review.Platform,
		GuestName:    review.Author,
		Rating:       review.Rating,
		ReviewText:   review.Text,
		Sentiment:    review.Sentiment,
		BrandVoice:   tenant.BrandVoice,
		ContactEmail: tenant.ContactEmail,
	}
}

// generate calls the drafting service under a timeout and inserts the result
// as a new draft. A failed call records a DraftFailure, inserts nothing and
// is reported as failErr.
func (s *ResponseService) generate(ctx context.Context, review *models.ExternalReview, dc *DraftContext, failErr error) (*models.ReviewResponse, error) {
	maxVersion, err := s.store.MaxResponseVersion(ctx, review.TenantID, review.ID)
	if err != nil {
		return nil, err
	}

	timeout := s.drafting.Timeout
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	draftCtx, cancel := context.WithTimeout(ctx, timeout)
	result, err := s.drafter.Draft(draftCtx, dc)
	cancel()
	if err != nil {
		logger.Warn().Err(err).Uint("tenant_id", review.TenantID).Uint("review_id", review.ID).Msg("[Response] Drafting failed")
		if recErr := s.store.RecordDraftFailure(ctx, review.TenantID, review.ID, err.Error(), s.now()); recErr != nil {
			logger.Warnf("[Response] Failed to record draft failure for review %d: %v", review.ID, recErr)
		}
		return nil, fmt.Errorf("%w: %v", failErr, err)
	}

	contextJSON, _ := json.Marshal(dc)
	resp := &models.ReviewResponse{
		ExternalReviewID: review.ID,
		Version:          maxVersion + 1,
		Text:             result.Text,
		Status:           models.ResponseStatusDraft,
		Priority:         priorityForRating(review.Rating),
		DraftContext:     string(contextJSON),
		ModelUsed:        result.Model,
		CreatedAt:        s.now(),
	}
	if err := s.store.CreateResponse(ctx, review.TenantID, resp); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, fmt.Errorf("%w: a response for review %d was created concurrently", ErrConflict, review.ID)
		}
		return nil, err
	}

	logger.Info().Uint("tenant_id", review.TenantID).Uint("review_id", review.ID).Int("version", resp.Version).Str("model", resp.ModelUsed).Msg("[Response] Draft created")

	if review.Rating <= s.alerts.ComplaintMaxRating {
		dispatch(s.queue, NewAlertCheckTask(review.TenantID, s.now()))
	}
	return resp, nil
}

func priorityForRating(rating int) string {
	if rating <= 2 {
		return models.ResponsePriorityHigh
	}
	return models.ResponsePriorityNormal
}

// loadInState fetches a response and checks it is in the required status.
func (s *ResponseService) loadInState(ctx context.Context, tenantID, id uint, want models.ResponseStatus) (*models.ReviewResponse, error) {
	resp, err := s.store.GetResponse(ctx, tenantID, id)
	if err != nil {
		return nil, translateStoreErr(err)
	}
	if resp.Status != want {
		return nil, fmt.Errorf("%w: response %d is %s, expected %s", ErrInvalidState, id, resp.Status, want)
	}
	return resp, nil
}

func (s *ResponseService) casError(err error, id uint) error {
	if errors.Is(err, store.ErrConflict) {
		return fmt.Errorf("%w: response %d was changed by another decision", ErrConflict, id)
	}
	return translateStoreErr(err)
}

func (s *ResponseService) Approve(ctx context.Context, tenantID, id, managerID uint, notes string) (*models.ReviewResponse, error) {
	if _, err := s.loadInState(ctx, tenantID, id, models.ResponseStatusDraft); err != nil {
		return nil, err
	}

	now := s.now()
	err := s.store.TransitionResponse(ctx, tenantID, id, models.ResponseStatusDraft, map[string]interface{}{
		"status":        models.ResponseStatusApproved,
		"approved_by":   managerID,
		"approved_at":   now,
		"manager_notes": strings.TrimSpace(notes),
	})
	if err != nil {
		return nil, s.casError(err, id)
	}

	s.audit.Info(ctx, tenantID, AuditEntry{
		Module:    "responses",
		Action:    "approve",
		Message:   fmt.Sprintf("Response #%d approved", id),
		ManagerID: uintPtr(managerID),
		EntityID:  uintPtr(id),
	})
	return s.Get(ctx, tenantID, id)
}

// MarkPosted records that a manager published an approved reply. The review
// stops requiring a response in the same transaction.
func (s *ResponseService) MarkPosted(ctx context.Context, tenantID, id uint, managerID *uint) (*models.ReviewResponse, error) {
	if _, err := s.loadInState(ctx, tenantID, id, models.ResponseStatusApproved); err != nil {
		return nil, err
	}
	if err := s.store.MarkPosted(ctx, tenantID, id, s.now()); err != nil {
		return nil, s.casError(err, id)
	}

	s.audit.Info(ctx, tenantID, AuditEntry{
		Module:    "responses",
		Action:    "posted",
		Message:   fmt.Sprintf("Response #%d marked as posted", id),
		ManagerID: managerID,
		EntityID:  uintPtr(id),
	})
	return s.Get(ctx, tenantID, id)
}

// Reject commits the rejection first, then drafts the next version with the
// review's issues and the manager's reason. If drafting fails the rejection
// stands and ErrRegenerationFailed is returned alongside it.
func (s *ResponseService) Reject(ctx context.Context, tenantID, id uint, reason string, managerID *uint) (*RejectOutcome, error) {
	if _, err := s.loadInState(ctx, tenantID, id, models.ResponseStatusDraft); err != nil {
		return nil, err
	}

	reason = strings.TrimSpace(reason)
	err := s.store.TransitionResponse(ctx, tenantID, id, models.ResponseStatusDraft, map[string]interface{}{
		"status":           models.ResponseStatusRejected,
		"rejection_reason": reason,
		"rejected_at":      s.now(),
	})
	if err != nil {
		return nil, s.casError(err, id)
	}

	rejected, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	s.audit.Info(ctx, tenantID, AuditEntry{
		Module:    "responses",
		Action:    "reject",
		Message:   fmt.Sprintf("Response #%d v%d rejected", id, rejected.Version),
		ManagerID: managerID,
		EntityID:  uintPtr(id),
		Extra:     map[string]string{"reason": reason},
	})

	outcome := &RejectOutcome{Rejected: rejected}
	draft, err := s.regenerate(ctx, tenantID, rejected)
	if err != nil {
		logger.Warn().Err(err).Uint("tenant_id", tenantID).Uint("response_id", id).Msg("[Response] Regeneration failed after rejection")
		if errors.Is(err, ErrRegenerationFailed) {
			return outcome, err
		}
		return outcome, fmt.Errorf("%w: %v", ErrRegenerationFailed, err)
	}
	outcome.Draft = draft
	return outcome, nil
}

func (s *ResponseService) regenerate(ctx context.Context, tenantID uint, rejected *models.ReviewResponse) (*models.ReviewResponse, error) {
	review, err := s.store.GetExternalReview(ctx, tenantID, rejected.ExternalReviewID)
	if err != nil {
		return nil, err
	}
	tenant, err := s.store.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	dc := s.draftContext(tenant, review)
	s.applyRejection(dc, review, rejected)
	return s.generate(ctx, review, dc, ErrRegenerationFailed)
}

// EditText replaces a draft's text and bumps its version in place.
func (s *ResponseService) EditText(ctx context.Context, tenantID, id uint, text string, managerID *uint) (*models.ReviewResponse, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: text is required", ErrValidation)
	}
	resp, err := s.loadInState(ctx, tenantID, id, models.ResponseStatusDraft)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateDraftText(ctx, tenantID, id, resp.Version, text); err != nil {
		return nil, s.casError(err, id)
	}

	s.audit.Info(ctx, tenantID, AuditEntry{
		Module:    "responses",
		Action:    "edit",
		Message:   fmt.Sprintf("Response #%d edited (v%d -> v%d)", id, resp.Version, resp.Version+1),
		ManagerID: managerID,
		EntityID:  uintPtr(id),
	})
	return s.Get(ctx, tenantID, id)
}

// MarkFailed writes a terminal failed row for a review whose drafts keep failing.
func (s *ResponseService) MarkFailed(ctx context.Context, tenantID, reviewID uint, cause string) (*models.ReviewResponse, error) {
	maxVersion, err := s.store.MaxResponseVersion(ctx, tenantID, reviewID)
	if err != nil {
		return nil, err
	}
	resp := &models.ReviewResponse{
		ExternalReviewID: reviewID,
		Version:          maxVersion + 1,
		Status:           models.ResponseStatusFailed,
		Priority:         models.ResponsePriorityNormal,
		ManagerNotes:     cause,
		CreatedAt:        s.now(),
	}
	if err := s.store.CreateResponse(ctx, tenantID, resp); err != nil {
		return nil, translateStoreErr(err)
	}

	s.audit.Warning(ctx, tenantID, AuditEntry{
		Module:   "responses",
		Action:   "failed",
		Message:  fmt.Sprintf("Drafting for review #%d gave up: %s", reviewID, cause),
		EntityID: uintPtr(resp.ID),
	})
	return resp, nil
}

func (s *ResponseService) Get(ctx context.Context, tenantID, id uint) (*models.ReviewResponse, error) {
	resp, err := s.store.GetResponse(ctx, tenantID, id)
	if err != nil {
		return nil, translateStoreErr(err)
	}
	return resp, nil
}

func (s *ResponseService) ListByReview(ctx context.Context, tenantID, reviewID uint) ([]models.ReviewResponse, error) {
	if _, err := s.store.GetExternalReview(ctx, tenantID, reviewID); err != nil {
		return nil, translateStoreErr(err)
	}
	return s.store.ListResponsesByReview(ctx, tenantID, reviewID)
}
