package services

import (
	"context"
	"fmt"

	"github.com/staysignal/backend/internal/models"
	"gorm.io/gorm"
)

const (
	defaultDraftTokens      = 1024
	defaultDraftTemperature = 0.6
	modelLabel              = "llm config"
)

// providerNeeds lists what each drafting backend cannot run without.
var providerNeeds = map[string]struct{ key, baseURL bool }{
	"openai":    {key: true},
	"azure":     {key: true, baseURL: true},
	"anthropic": {key: true},
	"gemini":    {key: true},
	"ollama":    {},
}

// LLMConfigService manages a tenant's drafting models. Shared configs are
// listed alongside but cannot be edited from a tenant.
type LLMConfigService struct {
	db *gorm.DB
}

func NewLLMConfigService(db *gorm.DB) *LLMConfigService {
	return &LLMConfigService{db: db}
}

type CreateLLMConfigRequest struct {
	Name        string  `json:"name" binding:"required"`
	Provider    string  `json:"provider" binding:"omitempty,oneof=openai azure anthropic ollama gemini"`
	BaseURL     string  `json:"base_url"`
	APIKey      string  `json:"api_key"`
	Model       string  `json:"model" binding:"required"`
	MaxTokens   int     `json:"max_tokens" binding:"omitempty,min=64"`
	Temperature float64 `json:"temperature" binding:"omitempty,min=0,max=2"`
	IsDefault   bool    `json:"is_default"`
}

type UpdateLLMConfigRequest struct {
	Name        string   `json:"name"`
	BaseURL     string   `json:"base_url"`
	APIKey      string   `json:"api_key"`
	Model       string   `json:"model"`
	MaxTokens   *int     `json:"max_tokens" binding:"omitempty,min=64"`
	Temperature *float64 `json:"temperature" binding:"omitempty,min=0,max=2"`
	IsDefault   *bool    `json:"is_default"`
	IsActive    *bool    `json:"is_active"`
}

// LLMConfigView is what the settings page sees: the key only as a mask.
type LLMConfigView struct {
	models.LLMConfig
	APIKeyMask string `json:"api_key_mask"`
	Global     bool   `json:"global"`
}

func maskAPIKey(key string) string {
	switch {
	case key == "":
		return ""
	case len(key) <= 8:
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}

func newLLMConfigView(cfg *models.LLMConfig) *LLMConfigView {
	return &LLMConfigView{LLMConfig: *cfg, APIKeyMask: maskAPIKey(cfg.APIKey), Global: cfg.TenantID == nil}
}

func checkProvider(req *CreateLLMConfigRequest) error {
	if req.Provider == "" {
		req.Provider = "openai"
	}
	needs := providerNeeds[req.Provider]
	if needs.key && req.APIKey == "" {
		return fmt.Errorf("%w: %s needs an api_key", ErrValidation, req.Provider)
	}
	if needs.baseURL && req.BaseURL == "" {
		return fmt.Errorf("%w: %s needs a base_url", ErrValidation, req.Provider)
	}
	return nil
}

// List returns the configs in the order the drafter tries them: the
// tenant's own (default first), then the shared ones.
func (s *LLMConfigService) List(ctx context.Context, tenantID uint) ([]LLMConfigView, error) {
	var rows []models.LLMConfig
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? OR tenant_id IS NULL", tenantID).
		Order("tenant_id IS NULL, is_default DESC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	views := make([]LLMConfigView, len(rows))
	for i := range rows {
		views[i] = *newLLMConfigView(&rows[i])
	}
	return views, nil
}

func (s *LLMConfigService) Create(ctx context.Context, tenantID uint, req *CreateLLMConfigRequest) (*LLMConfigView, error) {
	if err := checkProvider(req); err != nil {
		return nil, err
	}

	cfg := &models.LLMConfig{
		TenantID:    &tenantID,
		Name:        req.Name,
		Provider:    req.Provider,
		BaseURL:     req.BaseURL,
		APIKey:      req.APIKey,
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		IsDefault:   req.IsDefault,
		IsActive:    true,
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = defaultDraftTokens
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = defaultDraftTemperature
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if cfg.IsDefault {
			if err := clearDefault(tx, &models.LLMConfig{}, tenantID, 0); err != nil {
				return err
			}
		}
		return tx.Create(cfg).Error
	})
	if err != nil {
		return nil, err
	}
	return newLLMConfigView(cfg), nil
}

func (s *LLMConfigService) Update(ctx context.Context, tenantID, id uint, req *UpdateLLMConfigRequest) (*LLMConfigView, error) {
	cfg, err := findOwned[models.LLMConfig](ctx, s.db, tenantID, id, modelLabel)
	if err != nil {
		return nil, err
	}

	changes := patch{}.
		text("name", req.Name).
		text("base_url", req.BaseURL).
		text("api_key", req.APIKey).
		text("model", req.Model)
	setIf(changes, "max_tokens", req.MaxTokens)
	setIf(changes, "temperature", req.Temperature)
	setIf(changes, "is_default", req.IsDefault)
	setIf(changes, "is_active", req.IsActive)
	if len(changes) == 0 {
		return newLLMConfigView(cfg), nil
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if boolOr(req.IsDefault, false) {
			if err := clearDefault(tx, &models.LLMConfig{}, tenantID, id); err != nil {
				return err
			}
		}
		return tx.Model(cfg).Updates(map[string]interface{}(changes)).Error
	})
	if err != nil {
		return nil, err
	}

	if cfg, err = findOwned[models.LLMConfig](ctx, s.db, tenantID, id, modelLabel); err != nil {
		return nil, err
	}
	return newLLMConfigView(cfg), nil
}

func (s *LLMConfigService) Delete(ctx context.Context, tenantID, id uint) error {
	return deleteOwned[models.LLMConfig](ctx, s.db, tenantID, id, modelLabel)
}
