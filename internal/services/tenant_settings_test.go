package services

import (
	"context"
	"testing"

	"github.com/staysignal/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTenantSettings_EffectiveDefaults(t *testing.T) {
	st, db := newTestDB(t)
	harbor := seedTenant(t, db, "harbor")
	svc := NewTenantSettingsService(st, testConfig())

	got := svc.Effective(context.Background(), harbor.ID)
	assert.Equal(t, []string{"Housekeeping", "Maintenance", "Safety", "Cleanliness"}, got.HighImpactCategories)
	assert.Equal(t, 4.5, got.RecoveryTarget)
	assert.Equal(t, 15, got.RecoveryCaps[3])
	assert.True(t, got.AutoDraftEnabled)
	assert.True(t, got.MorningDigestEnabled)
	assert.True(t, got.WeeklyDigestEnabled)
}

func TestTenantSettings_Update(t *testing.T) {
	st, db := newTestDB(t)
	harbor := seedTenant(t, db, "harbor")
	dunes := seedTenant(t, db, "dunes")
	svc := NewTenantSettingsService(st, testConfig())
	ctx := context.Background()

	require.NoError(t, svc.Update(ctx, harbor.ID, models.SettingHighImpactCategories, ` ["Pool", "Spa"] `))
	require.NoError(t, svc.Update(ctx, harbor.ID, models.SettingRecoveryCaps, `{"4": 3}`))
	require.NoError(t, svc.Update(ctx, harbor.ID, models.SettingRecoveryTarget, "4.2"))
	require.NoError(t, svc.Update(ctx, harbor.ID, models.SettingMorningDigestEnabled, "FALSE"))

	got := svc.Effective(ctx, harbor.ID)
	assert.Equal(t, []string{"Pool", "Spa"}, got.HighImpactCategories)
	assert.Equal(t, 3, got.RecoveryCaps[4])
	assert.Equal(t, 15, got.RecoveryCaps[3], "unset stars keep the default cap")
	assert.Equal(t, 4.2, got.RecoveryTarget)
	assert.False(t, got.MorningDigestEnabled)

	stored, ok := svc.Get(ctx, harbor.ID, models.SettingMorningDigestEnabled)
	assert.True(t, ok)
	assert.Equal(t, "false", stored)

	assert.True(t, svc.Effective(ctx, dunes.ID).MorningDigestEnabled, "overrides stay with their tenant")
}

func TestTenantSettings_UpdateRejectsBadValues(t *testing.T) {
	st, db := newTestDB(t)
	harbor := seedTenant(t, db, "harbor")
	svc := NewTenantSettingsService(st, testConfig())
	ctx := context.Background()

	tests := []struct {
		key, value string
	}{
		{models.SettingHighImpactCategories, "Pool"},
		{models.SettingRecoveryCaps, `{"5": 2}`},
		{models.SettingRecoveryCaps, `{"2": -1}`},
		{models.SettingRecoveryTarget, "5.5"},
		{models.SettingRecoveryTarget, "0"},
		{models.SettingAutoDraftEnabled, "sometimes"},
		{"unknown_key", "1"},
	}
	for _, tt := range tests {
		assert.ErrorIs(t, svc.Update(ctx, harbor.ID, tt.key, tt.value), ErrValidation, "%s=%s", tt.key, tt.value)
	}
}
