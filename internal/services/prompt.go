package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/staysignal/backend/internal/models"
	"gorm.io/gorm"
)

// PromptVariables are the placeholders RenderDraftPrompt substitutes.
var PromptVariables = []string{
	"{{platform}}", "{{guest_name}}", "{{rating}}", "{{review_text}}",
	"{{sentiment}}", "{{brand_voice}}", "{{contact_email}}", "{{issues}}",
}

// PromptService manages tenant drafting prompts. The seeded system prompt
// is shared and cannot be changed from a tenant.
type PromptService struct {
	db *gorm.DB
}

func NewPromptService(db *gorm.DB) *PromptService {
	return &PromptService{db: db}
}

type PromptRequest struct {
	Name      string `json:"name" binding:"required"`
	Content   string `json:"content" binding:"required"`
	IsDefault bool   `json:"is_default"`
}

// List returns the tenant's prompts and the system prompts.
func (s *PromptService) List(ctx context.Context, tenantID uint) ([]models.PromptTemplate, error) {
	var prompts []models.PromptTemplate
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? OR tenant_id IS NULL", tenantID).
		Order("is_system DESC, is_default DESC, id DESC").
		Find(&prompts).Error
	return prompts, err
}

func validatePrompt(content string) error {
	if !strings.Contains(content, "{{review_text}}") {
		return fmt.Errorf("%w: prompt must include {{review_text}}", ErrValidation)
	}
	return nil
}

func usedVariables(content string) string {
	var used []string
	for _, v := range PromptVariables {
		if strings.Contains(content, v) {
			used = append(used, `"`+strings.Trim(v, "{}")+`"`)
		}
	}
	return "[" + strings.Join(used, ",") + "]"
}

func (s *PromptService) Create(ctx context.Context, tenantID uint, req *PromptRequest) (*models.PromptTemplate, error) {
	if err := validatePrompt(req.Content); err != nil {
		return nil, err
	}

	prompt := models.PromptTemplate{
		TenantID:  &tenantID,
		Name:      req.Name,
		Content:   req.Content,
		Variables: usedVariables(req.Content),
		IsDefault: req.IsDefault,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if req.IsDefault {
			if err := clearDefault(tx, &models.PromptTemplate{}, tenantID, 0); err != nil {
				return err
			}
		}
		return tx.Create(&prompt).Error
	})
	if err != nil {
		return nil, err
	}
	return &prompt, nil
}

func (s *PromptService) Update(ctx context.Context, tenantID, id uint, req *PromptRequest) (*models.PromptTemplate, error) {
	if err := validatePrompt(req.Content); err != nil {
		return nil, err
	}
	prompt, err := findOwned[models.PromptTemplate](ctx, s.db, tenantID, id, "prompt")
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if req.IsDefault {
			if err := clearDefault(tx, &models.PromptTemplate{}, tenantID, id); err != nil {
				return err
			}
		}
		return tx.Model(prompt).Updates(map[string]interface{}{
			"name":       req.Name,
			"content":    req.Content,
			"variables":  usedVariables(req.Content),
			"is_default": req.IsDefault,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return findOwned[models.PromptTemplate](ctx, s.db, tenantID, id, "prompt")
}

func (s *PromptService) Delete(ctx context.Context, tenantID, id uint) error {
	return deleteOwned[models.PromptTemplate](ctx, s.db, tenantID, id, "prompt")
}
