package services

import (
	"context"
	"errors"
	"testing"

	"github.com/staysignal/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRetryFixture(t *testing.T) (*DraftRetryService, *responseFixture) {
	t.Helper()
	f := newResponseFixture(t, 2, "Cold breakfast")
	cfg := testConfig()
	cfg.Drafting.MaxAttempts = 2
	retry := NewDraftRetryService(f.store, f.svc, NewTenantSettingsService(f.store, cfg), &cfg.Drafting)
	return retry, f
}

func TestDraftRetry_DraftsPendingReview(t *testing.T) {
	retry, f := newRetryFixture(t)
	f.drafter.push("Sorry about breakfast", nil)

	stats, err := retry.ProcessTenant(context.Background(), f.tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Drafted)

	// A second pass finds the draft and does nothing.
	stats, err = retry.ProcessTenant(context.Background(), f.tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, RetryStats{}, *stats)
	assert.Len(t, f.drafter.calls(), 1)
}

func TestDraftRetry_GivesUpAfterMaxAttempts(t *testing.T) {
	retry, f := newRetryFixture(t)
	ctx := context.Background()
	f.drafter.push("", errors.New("down")).push("", errors.New("still down"))

	stats, err := retry.ProcessTenant(ctx, f.tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 0, stats.GaveUp)

	stats, err = retry.ProcessTenant(ctx, f.tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.GaveUp)

	responses, err := f.svc.ListByReview(ctx, f.tenant.ID, f.review.ID)
	require.NoError(t, err)
	require.Len(t, responses, 1)
	assert.Equal(t, models.ResponseStatusFailed, responses[0].Status)

	// Once given up, the review is left alone.
	stats, err = retry.ProcessTenant(ctx, f.tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, RetryStats{}, *stats)
	assert.Len(t, f.drafter.calls(), 2)
}

func TestDraftRetry_SkipsRejectedReviewWithActiveDraft(t *testing.T) {
	retry, f := newRetryFixture(t)
	ctx := context.Background()
	f.drafter.push("v1", nil).push("v2", nil)

	v1, err := f.svc.GenerateDraft(ctx, f.tenant.ID, f.review.ID)
	require.NoError(t, err)
	_, err = f.svc.Reject(ctx, f.tenant.ID, v1.ID, "redo", nil)
	require.NoError(t, err)

	stats, err := retry.ProcessTenant(ctx, f.tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, RetryStats{}, *stats)
}

func TestDraftRetry_DisabledByTenantSetting(t *testing.T) {
	retry, f := newRetryFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.SetSetting(ctx, f.tenant.ID, models.SettingAutoDraftEnabled, "false", "bool"))

	stats, err := retry.ProcessTenant(ctx, f.tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, RetryStats{}, *stats)
	assert.Empty(t, f.drafter.calls())
}
