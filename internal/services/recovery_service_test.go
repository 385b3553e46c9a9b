package services

import (
	"context"
	"testing"
	"time"

	"github.com/staysignal/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecoveryService_PlanForPlatform(t *testing.T) {
	st, db := newTestDB(t)
	harbor := seedTenant(t, db, "harbor")
	settings := NewTenantSettingsService(st, testConfig())
	svc := NewRecoveryService(st, settings)
	ctx := context.Background()

	_, err := svc.PlanForPlatform(ctx, harbor.ID, "google")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, st.CreateSnapshot(ctx, harbor.ID, &models.RatingSnapshot{
		Platform: "google", Average: 4.3, TotalReviews: 100,
		Distribution: map[int]int{5: 50, 4: 40, 3: 10}, CapturedAt: t0.Add(-48 * time.Hour),
	}))
	require.NoError(t, st.CreateSnapshot(ctx, harbor.ID, &models.RatingSnapshot{
		Platform: "google", Average: 4.6, TotalReviews: 100,
		Distribution: map[int]int{5: 90, 4: 10}, CapturedAt: t0,
	}))

	got, err := svc.PlanForPlatform(ctx, harbor.ID, "google")
	require.NoError(t, err)
	assert.Equal(t, 4.6, got.Snapshot.Average, "uses the latest snapshot")
	assert.True(t, got.Plan.TargetMet)

	require.NoError(t, settings.Update(ctx, harbor.ID, models.SettingRecoveryTarget, "4.8"))
	got, err = svc.PlanForPlatform(ctx, harbor.ID, "google")
	require.NoError(t, err)
	assert.Equal(t, 4.8, got.Plan.TargetAverage)
	assert.False(t, got.Plan.TargetMet)
}

func TestRecoveryService_PlanFromDistributionUsesTenantCaps(t *testing.T) {
	st, db := newTestDB(t)
	harbor := seedTenant(t, db, "harbor")
	settings := NewTenantSettingsService(st, testConfig())
	svc := NewRecoveryService(st, settings)
	ctx := context.Background()

	require.NoError(t, settings.Update(ctx, harbor.ID, models.SettingRecoveryCaps, `{"4": 4}`))

	plan, err := svc.PlanFromDistribution(ctx, harbor.ID, map[int]int{5: 50, 4: 40, 3: 10}, 100, 0)
	require.NoError(t, err)
	assert.Equal(t, 4.5, plan.TargetAverage)
	require.NotEmpty(t, plan.Conversions)
	assert.Equal(t, 4, plan.Conversions[0].Stars)
	assert.Equal(t, 4, plan.Conversions[0].Count)

	_, err = svc.PlanFromDistribution(ctx, harbor.ID, map[int]int{6: 1}, 1, 4.5)
	assert.ErrorIs(t, err, ErrValidation)
}
