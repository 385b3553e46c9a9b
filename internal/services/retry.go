package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/staysignal/backend/internal/config"
	"github.com/staysignal/backend/internal/models"
	"github.com/staysignal/backend/internal/store"
	"github.com/staysignal/backend/pkg/logger"
)

const RetryBatchSize = 10

type RetryStats struct {
	Drafted int `json:"drafted"`
	Failed  int `json:"failed"`
	GaveUp  int `json:"gave_up"`
}

// DraftRetryService drafts replies for reviews that still need one and have
// no draft, e.g. because the drafting service was down at ingest time.
type DraftRetryService struct {
	store       store.Store
	responses   *ResponseService
	settings    *TenantSettingsService
	maxAttempts int
}

func NewDraftRetryService(st store.Store, responses *ResponseService, settings *TenantSettingsService, cfg *config.DraftingConfig) *DraftRetryService {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &DraftRetryService{store: st, responses: responses, settings: settings, maxAttempts: maxAttempts}
}

func (s *DraftRetryService) ProcessTenant(ctx context.Context, tenantID uint) (*RetryStats, error) {
	stats := &RetryStats{}
	if !s.settings.AutoDraftEnabled(ctx, tenantID) {
		return stats, nil
	}

	reviews, err := s.store.ListReviewsNeedingResponse(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	attempted := 0
	for i := range reviews {
		if attempted >= RetryBatchSize || ctx.Err() != nil {
			break
		}
		review := &reviews[i]

		pending, err := s.needsDraft(ctx, tenantID, review.ID)
		if err != nil {
			logger.Warnf("[Retry] Skipping review %d: %v", review.ID, err)
			continue
		}
		if !pending {
			continue
		}

		failures, err := s.failuresSinceLastResponse(ctx, tenantID, review.ID)
		if err != nil {
			logger.Warnf("[Retry] Failed to count failures for review %d: %v", review.ID, err)
			continue
		}
		if failures >= int64(s.maxAttempts) {
			s.giveUp(ctx, tenantID, review.ID, failures, stats)
			continue
		}

		attempted++
		logger.Infof("[Retry] Drafting review %d (attempt %d/%d)", review.ID, failures+1, s.maxAttempts)
		_, err = s.responses.GenerateDraft(ctx, tenantID, review.ID)
		switch {
		case err == nil:
			stats.Drafted++
		case errors.Is(err, ErrGenerationFailed):
			stats.Failed++
			if failures+1 >= int64(s.maxAttempts) {
				s.giveUp(ctx, tenantID, review.ID, failures+1, stats)
			}
		case errors.Is(err, ErrInvalidState), errors.Is(err, ErrConflict):
			// drafted concurrently
		default:
			logger.Warnf("[Retry] Review %d: %v", review.ID, err)
		}
	}

	if stats.Drafted+stats.Failed+stats.GaveUp > 0 {
		logger.Info().Uint("tenant_id", tenantID).Int("drafted", stats.Drafted).Int("failed", stats.Failed).Int("gave_up", stats.GaveUp).Msg("[Retry] Run complete")
	}
	return stats, nil
}

// needsDraft is false while a draft or approved reply exists or after drafting
// was given up.
func (s *DraftRetryService) needsDraft(ctx context.Context, tenantID, reviewID uint) (bool, error) {
	responses, err := s.store.ListResponsesByReview(ctx, tenantID, reviewID)
	if err != nil {
		return false, err
	}
	for _, r := range responses {
		if r.Status.IsActive() {
			return false, nil
		}
	}
	if n := len(responses); n > 0 {
		switch responses[n-1].Status {
		case models.ResponseStatusFailed, models.ResponseStatusPosted:
			return false, nil
		}
	}
	return true, nil
}

func (s *DraftRetryService) failuresSinceLastResponse(ctx context.Context, tenantID, reviewID uint) (int64, error) {
	var since time.Time
	last, err := s.store.LatestResponseAt(ctx, tenantID, reviewID)
	if err != nil {
		return 0, err
	}
	if last != nil {
		since = *last
	}
	return s.store.CountDraftFailuresSince(ctx, tenantID, reviewID, since)
}

func (s *DraftRetryService) giveUp(ctx context.Context, tenantID, reviewID uint, failures int64, stats *RetryStats) {
	cause := fmt.Sprintf("drafting failed %d times", failures)
	if _, err := s.responses.MarkFailed(ctx, tenantID, reviewID, cause); err != nil {
		logger.Warnf("[Retry] Failed to mark review %d as failed: %v", reviewID, err)
		return
	}
	logger.Warnf("[Retry] Review %d exceeded max attempts, marked as failed", reviewID)
	stats.GaveUp++
}
