package services

import (
	"context"
	"testing"

	"github.com/staysignal/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskAPIKey(t *testing.T) {
	assert.Equal(t, "", maskAPIKey(""))
	assert.Equal(t, "****", maskAPIKey("short"))
	assert.Equal(t, "sk-1****wxyz", maskAPIKey("sk-1234567890wxyz"))
}

func TestLLMConfigService_CreateValidatesProvider(t *testing.T) {
	_, db := newTestDB(t)
	harbor := seedTenant(t, db, "harbor")
	svc := NewLLMConfigService(db)
	ctx := context.Background()

	_, err := svc.Create(ctx, harbor.ID, &CreateLLMConfigRequest{Name: "gpt", Model: "gpt-4o-mini"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Create(ctx, harbor.ID, &CreateLLMConfigRequest{Name: "az", Provider: "azure", APIKey: "k", Model: "drafts"})
	assert.ErrorIs(t, err, ErrValidation)

	local, err := svc.Create(ctx, harbor.ID, &CreateLLMConfigRequest{Name: "local", Provider: "ollama", Model: "llama3"})
	require.NoError(t, err)
	assert.Equal(t, 1024, local.MaxTokens)
	assert.Equal(t, 0.6, local.Temperature)
}

func TestLLMConfigService_SingleTenantDefault(t *testing.T) {
	_, db := newTestDB(t)
	harbor := seedTenant(t, db, "harbor")
	svc := NewLLMConfigService(db)
	ctx := context.Background()

	require.NoError(t, db.Create(&models.LLMConfig{Name: "global", Provider: "openai", APIKey: "sk-global-000000", Model: "gpt-4o", IsDefault: true, IsActive: true}).Error)

	first, err := svc.Create(ctx, harbor.ID, &CreateLLMConfigRequest{Name: "first", APIKey: "sk-first-0000000", Model: "gpt-4o-mini", IsDefault: true})
	require.NoError(t, err)
	second, err := svc.Create(ctx, harbor.ID, &CreateLLMConfigRequest{Name: "second", Provider: "anthropic", APIKey: "sk-ant-000000000", Model: "claude", IsDefault: true})
	require.NoError(t, err)

	views, err := svc.List(ctx, harbor.ID)
	require.NoError(t, err)
	require.Len(t, views, 3)
	assert.Equal(t, second.ID, views[0].ID)
	assert.True(t, views[0].IsDefault)
	assert.Equal(t, first.ID, views[1].ID)
	assert.False(t, views[1].IsDefault)
	assert.True(t, views[2].Global)
	assert.True(t, views[2].IsDefault, "tenant defaults never touch the global default")
	assert.Equal(t, "sk-a****0000", views[0].APIKeyMask)

	yes := true
	_, err = svc.Update(ctx, harbor.ID, first.ID, &UpdateLLMConfigRequest{IsDefault: &yes})
	require.NoError(t, err)

	drafter := NewLLMDrafter(db, nil)
	ordered := drafter.orderedLLMConfigs(ctx, harbor.ID)
	require.NotEmpty(t, ordered)
	assert.Equal(t, first.ID, ordered[0].ID)
}

func TestLLMConfigService_GlobalConfigsAreReadOnly(t *testing.T) {
	_, db := newTestDB(t)
	harbor := seedTenant(t, db, "harbor")
	svc := NewLLMConfigService(db)
	ctx := context.Background()

	global := &models.LLMConfig{Name: "global", Provider: "openai", APIKey: "sk", Model: "gpt-4o", IsActive: true}
	require.NoError(t, db.Create(global).Error)

	_, err := svc.Update(ctx, harbor.ID, global.ID, &UpdateLLMConfigRequest{Name: "mine"})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, harbor.ID, global.ID), ErrNotFound)
}
