package services

import (
	"context"
	"fmt"
	"math"

	"github.com/staysignal/backend/internal/models"
	"github.com/staysignal/backend/internal/store"
)

const pointsEpsilon = 1e-9

// ConversionStep is the proposed number of reviews at one star level to win
// back to five stars.
type ConversionStep struct {
	Stars           int `json:"stars"`
	Available       int `json:"available"`
	Cap             int `json:"cap"`
	Count           int `json:"count"`
	PointsPerReview int `json:"points_per_review"`
	Points          int `json:"points"`
}

type RecoveryPlan struct {
	TotalReviews                    int              `json:"total_reviews"`
	CurrentAverage                  float64          `json:"current_average"`
	TargetAverage                   float64          `json:"target_average"`
	CurrentPoints                   int              `json:"current_points"`
	TargetPoints                    float64          `json:"target_points"`
	PointsNeeded                    float64          `json:"points_needed"`
	Conversions                     []ConversionStep `json:"conversions"`
	ConversionPoints                int              `json:"conversion_points"`
	RemainingPointsNeeded           float64          `json:"remaining_points_needed"`
	AdditionalFiveStarReviewsNeeded int              `json:"additional_five_star_reviews_needed"`
	ProjectedAverage                float64          `json:"projected_average"`
	TargetMet                       bool             `json:"target_met"`
}

// ComputeRecoveryPlan works out how a rating average reaches target: first by
// winning back existing reviews, easiest conversions first and never more than
// caps[star] per level, then by new five-star reviews for whatever is left.
func ComputeRecoveryPlan(distribution map[int]int, totalReviews int, target float64, caps map[int]int) (*RecoveryPlan, error) {
	if target <= 0 || target > 5 {
		return nil, fmt.Errorf("%w: target average must be in (0, 5], got %v", ErrValidation, target)
	}
	if totalReviews < 0 {
		return nil, fmt.Errorf("%w: total reviews cannot be negative", ErrValidation)
	}

	currentPoints := 0
	for stars, count := range distribution {
		if stars < 1 || stars > 5 {
			return nil, fmt.Errorf("%w: star value %d out of range", ErrValidation, stars)
		}
		if count < 0 {
			return nil, fmt.Errorf("%w: negative count for %d stars", ErrValidation, stars)
		}
		currentPoints += stars * count
	}

	plan := &RecoveryPlan{
		TotalReviews:  totalReviews,
		TargetAverage: target,
		CurrentPoints: currentPoints,
		Conversions:   []ConversionStep{},
	}

	if totalReviews == 0 {
		// The smallest history that reaches the target is a single review at it.
		plan.TargetPoints = roundPoints(target)
		plan.PointsNeeded = plan.TargetPoints
		plan.RemainingPointsNeeded = plan.TargetPoints
		plan.AdditionalFiveStarReviewsNeeded = ceilPoints(plan.TargetPoints / 5)
		plan.ProjectedAverage = 5
		return plan, nil
	}

	plan.CurrentAverage = roundPoints(float64(currentPoints) / float64(totalReviews))
	plan.TargetPoints = roundPoints(target * float64(totalReviews))
	plan.PointsNeeded = math.Max(0, roundPoints(plan.TargetPoints-float64(currentPoints)))

	if plan.PointsNeeded <= pointsEpsilon {
		plan.PointsNeeded = 0
		plan.TargetMet = true
		plan.ProjectedAverage = plan.CurrentAverage
		return plan, nil
	}

	remaining := plan.PointsNeeded
	for stars := 4; stars >= 1 && remaining > pointsEpsilon; stars-- {
		gain := 5 - stars
		available := distribution[stars]
		limit := caps[stars]
		if limit < 0 {
			limit = 0
		}
		count := min(limit, available, ceilPoints(remaining/float64(gain)))
		if count <= 0 {
			continue
		}
		step := ConversionStep{
			Stars:           stars,
			Available:       available,
			Cap:             limit,
			Count:           count,
			PointsPerReview: gain,
			Points:          count * gain,
		}
		plan.Conversions = append(plan.Conversions, step)
		plan.ConversionPoints += step.Points
		remaining = roundPoints(remaining - float64(step.Points))
	}

	plan.RemainingPointsNeeded = math.Max(0, roundPoints(plan.PointsNeeded-float64(plan.ConversionPoints)))
	plan.AdditionalFiveStarReviewsNeeded = ceilPoints(plan.RemainingPointsNeeded / 5)

	projectedPoints := float64(currentPoints + plan.ConversionPoints + 5*plan.AdditionalFiveStarReviewsNeeded)
	plan.ProjectedAverage = roundPoints(projectedPoints / float64(totalReviews+plan.AdditionalFiveStarReviewsNeeded))
	return plan, nil
}

func roundPoints(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

func ceilPoints(v float64) int {
	if v <= pointsEpsilon {
		return 0
	}
	return int(math.Ceil(v - pointsEpsilon))
}

// RecoveryService builds plans from stored snapshots and tenant settings.
type RecoveryService struct {
	store    store.Store
	settings *TenantSettingsService
}

func NewRecoveryService(st store.Store, settings *TenantSettingsService) *RecoveryService {
	return &RecoveryService{store: st, settings: settings}
}

type PlatformRecovery struct {
	Platform string                 `json:"platform"`
	Snapshot *models.RatingSnapshot `json:"snapshot"`
	Plan     *RecoveryPlan          `json:"plan"`
}

// PlanForPlatform computes a plan from the latest snapshot of platform.
// It returns ErrNotFound when the platform has no snapshot.
func (s *RecoveryService) PlanForPlatform(ctx context.Context, tenantID uint, platform string) (*PlatformRecovery, error) {
	snaps, err := s.store.LatestSnapshots(ctx, tenantID, platform, 1)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, fmt.Errorf("%w: no rating snapshot for %s", ErrNotFound, platform)
	}

	target := s.settings.RecoveryTarget(ctx, tenantID)
	plan, err := ComputeRecoveryPlan(snaps[0].Distribution, snaps[0].TotalReviews, target, s.settings.RecoveryCaps(ctx, tenantID))
	if err != nil {
		return nil, err
	}
	return &PlatformRecovery{Platform: platform, Snapshot: &snaps[0], Plan: plan}, nil
}

// PlanFromDistribution plans against a caller-supplied distribution using the
// tenant's caps. A zero target means the tenant's recovery target.
func (s *RecoveryService) PlanFromDistribution(ctx context.Context, tenantID uint, distribution map[int]int, totalReviews int, target float64) (*RecoveryPlan, error) {
	if target == 0 {
		target = s.settings.RecoveryTarget(ctx, tenantID)
	}
	return ComputeRecoveryPlan(distribution, totalReviews, target, s.settings.RecoveryCaps(ctx, tenantID))
}
