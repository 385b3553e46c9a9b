package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/staysignal/backend/internal/config"
	"github.com/staysignal/backend/internal/models"
	"github.com/staysignal/backend/internal/store"
	"github.com/staysignal/backend/pkg/logger"
)

type ReviewInput struct {
	Platform   string    `json:"platform"`
	ExternalID string    `json:"external_id"`
	Rating     int       `json:"rating"`
	Author     string    `json:"author"`
	Text       string    `json:"text"`
	ReviewDate time.Time `json:"review_date"`
	Sentiment  string    `json:"sentiment"`
	// Defaults to true when omitted.
	ResponseRequired *bool `json:"response_required"`
}

func (in *ReviewInput) Validate() error {
	if strings.TrimSpace(in.Platform) == "" {
		return fmt.Errorf("%w: platform is required", ErrValidation)
	}
	if strings.TrimSpace(in.ExternalID) == "" {
		return fmt.Errorf("%w: external_id is required", ErrValidation)
	}
	if in.Rating < 1 || in.Rating > 5 {
		return fmt.Errorf("%w: rating must be between 1 and 5, got %d", ErrValidation, in.Rating)
	}
	switch in.Sentiment {
	case "", models.SentimentPositive, models.SentimentNeutral, models.SentimentNegative:
	default:
		return fmt.Errorf("%w: unknown sentiment %q", ErrValidation, in.Sentiment)
	}
	return nil
}

type SnapshotInput struct {
	Platform     string      `json:"platform"`
	Average      float64     `json:"average"`
	TotalReviews int         `json:"total_reviews"`
	Distribution map[int]int `json:"distribution"`
	CapturedAt   time.Time   `json:"captured_at"`
}

func (in *SnapshotInput) Validate() error {
	if strings.TrimSpace(in.Platform) == "" {
		return fmt.Errorf("%w: platform is required", ErrValidation)
	}
	if in.Average < 0 || in.Average > 5 {
		return fmt.Errorf("%w: average must be between 0 and 5", ErrValidation)
	}
	if in.TotalReviews < 0 {
		return fmt.Errorf("%w: total_reviews must not be negative", ErrValidation)
	}
	sum := 0
	for star, count := range in.Distribution {
		if star < 1 || star > 5 {
			return fmt.Errorf("%w: distribution key %d outside 1-5", ErrValidation, star)
		}
		if count < 0 {
			return fmt.Errorf("%w: distribution count for %d★ is negative", ErrValidation, star)
		}
		sum += count
	}
	if len(in.Distribution) > 0 && sum != in.TotalReviews {
		return fmt.Errorf("%w: distribution sums to %d, total_reviews is %d", ErrValidation, sum, in.TotalReviews)
	}
	return nil
}

// IngestService is the write-path hook for external platform data.
type IngestService struct {
	store    store.Store
	settings *TenantSettingsService
	queue    TaskQueue
	alerts   config.AlertConfig
	now      func() time.Time
}

func NewIngestService(st store.Store, settings *TenantSettingsService, queue TaskQueue, cfg *config.Config) *IngestService {
	return &IngestService{
		store:    st,
		settings: settings,
		queue:    queue,
		alerts:   cfg.Alerts,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// IngestReview stores a review once per platform and external id. A review
// seen for the first time is queued for drafting when auto-drafting is on.
func (s *IngestService) IngestReview(ctx context.Context, tenantID uint, in *ReviewInput) (*models.ExternalReview, bool, error) {
	if err := in.Validate(); err != nil {
		return nil, false, err
	}

	reviewDate := in.ReviewDate
	if reviewDate.IsZero() {
		reviewDate = s.now()
	}
	sentiment := in.Sentiment
	if sentiment == "" {
		sentiment = models.SentimentForRating(in.Rating)
	}
	required := true
	if in.ResponseRequired != nil {
		required = *in.ResponseRequired
	}

	review := &models.ExternalReview{
		Platform:         strings.ToLower(strings.TrimSpace(in.Platform)),
		ExternalID:       strings.TrimSpace(in.ExternalID),
		Rating:           in.Rating,
		Author:           strings.TrimSpace(in.Author),
		Text:             in.Text,
		ReviewDate:       reviewDate.UTC(),
		Sentiment:        sentiment,
		ResponseRequired: required,
	}
	created, err := s.store.UpsertExternalReview(ctx, tenantID, review)
	if err != nil {
		return nil, false, err
	}
	if !created {
		return review, false, nil
	}

	logger.Info().Uint("tenant_id", tenantID).Uint("review_id", review.ID).Str("platform", review.Platform).Int("rating", review.Rating).Msg("[Ingest] Review stored")

	if review.ResponseRequired && s.settings.AutoDraftEnabled(ctx, tenantID) {
		dispatch(s.queue, NewDraftTask(tenantID, review.ID))
	}
	if review.Rating <= s.alerts.ComplaintMaxRating {
		dispatch(s.queue, NewAlertCheckTask(tenantID, s.now()))
	}
	return review, true, nil
}

func (s *IngestService) IngestSnapshot(ctx context.Context, tenantID uint, in *SnapshotInput) (*models.RatingSnapshot, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	capturedAt := in.CapturedAt
	if capturedAt.IsZero() {
		capturedAt = s.now()
	}
	snap := &models.RatingSnapshot{
		Platform:     strings.ToLower(strings.TrimSpace(in.Platform)),
		Average:      in.Average,
		TotalReviews: in.TotalReviews,
		Distribution: in.Distribution,
		CapturedAt:   capturedAt,
	}
	if err := s.store.CreateSnapshot(ctx, tenantID, snap); err != nil {
		return nil, err
	}

	logger.Info().Uint("tenant_id", tenantID).Str("platform", snap.Platform).Float64("average", snap.Average).Msg("[Ingest] Snapshot stored")
	dispatch(s.queue, NewAlertCheckTask(tenantID, s.now()))
	return snap, nil
}
