package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/staysignal/backend/internal/config"
	"github.com/staysignal/backend/internal/models"
	"github.com/staysignal/backend/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DraftContext is everything the drafting service is told about a review.
type DraftContext struct {
	TenantID        uint     `json:"tenant_id"`
	Platform        string   `json:"platform"`
	GuestName       string   `json:"guest_name"`
	Rating          int      `json:"rating"`
	ReviewText      string   `json:"review_text"`
	Sentiment       string   `json:"sentiment"`
	BrandVoice      string   `json:"brand_voice"`
	ContactEmail    string   `json:"contact_email"`
	Issues          []string `json:"issues,omitempty"`
	RejectionReason string   `json:"rejection_reason,omitempty"`
	PreviousDraft   string   `json:"previous_draft,omitempty"`
}

type DraftResult struct {
	Text  string
	Model string
}

// Drafter produces reply text for a review.
type Drafter interface {
	Draft(ctx context.Context, dc *DraftContext) (*DraftResult, error)
}

var errEmptyDraft = errors.New("drafting service returned empty text")

// LLMDrafter renders the prompt template and tries each configured model in
// turn: the tenant default, the global default, other active configs, then
// the static OpenAI settings.
type LLMDrafter struct {
	db     *gorm.DB
	config *config.OpenAIConfig
}

func NewLLMDrafter(db *gorm.DB, cfg *config.OpenAIConfig) *LLMDrafter {
	return &LLMDrafter{db: db, config: cfg}
}

var errNoDraftModel = errors.New("no drafting model configured")

func (d *LLMDrafter) Draft(ctx context.Context, dc *DraftContext) (*DraftResult, error) {
	candidates := d.orderedLLMConfigs(ctx, dc.TenantID)
	if len(candidates) == 0 {
		return nil, errNoDraftModel
	}
	prompt := RenderDraftPrompt(d.promptTemplate(ctx, dc.TenantID), dc)

	var failures []error
	for i := range candidates {
		cfg := &candidates[i]
		text, err := runBackend(ctx, cfg, prompt)
		if text = strings.TrimSpace(text); err == nil && text == "" {
			err = errEmptyDraft
		}
		d.recordOutcome(ctx, cfg.ID, err)
		if err == nil {
			if i > 0 {
				logger.Infof("[Drafting] Tenant %d drafted with fallback model %q after %d failure(s)", dc.TenantID, cfg.Name, i)
			}
			return &DraftResult{Text: text, Model: cfg.Model}, nil
		}

		logger.Warnf("[Drafting] Model %q (%d/%d) failed for tenant %d: %v", cfg.Name, i+1, len(candidates), dc.TenantID, err)
		failures = append(failures, fmt.Errorf("%s: %w", cfg.Name, err))
		if ctx.Err() != nil {
			break
		}
	}
	return nil, errors.Join(failures...)
}

// recordOutcome stamps the config row with the result of its latest call,
// even when the call itself was cancelled. The static fallback has no row.
func (d *LLMDrafter) recordOutcome(ctx context.Context, configID uint, callErr error) {
	if configID == 0 {
		return
	}
	updates := map[string]interface{}{"last_used_at": time.Now().UTC()}
	if callErr != nil {
		updates["last_error"] = truncate(callErr.Error(), 500)
		updates["failed_calls"] = gorm.Expr("failed_calls + 1")
	} else {
		updates["last_error"] = ""
	}
	if err := d.db.WithContext(context.WithoutCancel(ctx)).Model(&models.LLMConfig{}).Where("id = ?", configID).UpdateColumns(updates).Error; err != nil {
		logger.Warn().Err(err).Uint("llm_config_id", configID).Msg("[Drafting] Failed to record model outcome")
	}
}

// RenderDraftPrompt substitutes {{variables}} in a prompt template.
func RenderDraftPrompt(template string, dc *DraftContext) string {
	issues := GenericIssuePhrase
	if len(dc.Issues) > 0 {
		issues = strings.Join(dc.Issues, ", ")
	}

	r := strings.NewReplacer(
		"{{platform}}", dc.Platform,
		"{{guest_name}}", guestNameOrDefault(dc.GuestName),
		"{{rating}}", strconv.Itoa(dc.Rating),
		"{{review_text}}", dc.ReviewText,
		"{{sentiment}}", dc.Sentiment,
		"{{brand_voice}}", dc.BrandVoice,
		"{{contact_email}}", dc.ContactEmail,
		"{{issues}}", issues,
	)
	prompt := r.Replace(template)

	if dc.RejectionReason != "" || dc.PreviousDraft != "" {
		prompt += "\n\nA manager rejected the previous draft."
		if dc.RejectionReason != "" {
			prompt += "\nTheir feedback: " + dc.RejectionReason
		}
		if dc.PreviousDraft != "" {
			prompt += "\nDo not reuse the wording of the rejected draft:\n" + dc.PreviousDraft
		}
	}
	return prompt
}

func guestNameOrDefault(name string) string {
	if strings.TrimSpace(name) == "" {
		return "Guest"
	}
	return name
}

func (d *LLMDrafter) promptTemplate(ctx context.Context, tenantID uint) string {
	db := d.db.WithContext(ctx)
	var tpl models.PromptTemplate
	if err := db.Where("tenant_id = ? AND is_default = ?", tenantID, true).First(&tpl).Error; err == nil {
		return tpl.Content
	}
	if err := db.Where("tenant_id IS NULL AND is_default = ?", true).First(&tpl).Error; err == nil {
		return tpl.Content
	}
	logger.Infof("[Drafting] Using built-in prompt")
	return models.DefaultResponsePrompt
}

// orderedLLMConfigs lists the active models in fallback order: the tenant
// default, the shared default, the rest by age. With nothing stored, the
// static OpenAI settings from the config file are used.
func (d *LLMDrafter) orderedLLMConfigs(ctx context.Context, tenantID uint) []models.LLMConfig {
	var configs []models.LLMConfig
	err := d.db.WithContext(ctx).Where("(tenant_id = ? OR tenant_id IS NULL) AND is_active = ?", tenantID, true).
		Order(clause.OrderBy{Expression: clause.Expr{
			SQL: "CASE WHEN tenant_id = ? AND is_default = ? THEN 0 " +
				"WHEN tenant_id IS NULL AND is_default = ? THEN 1 ELSE 2 END, id ASC",
			Vars: []interface{}{tenantID, true, true},
		}}).
		Find(&configs).Error
	if err != nil {
		logger.Warn().Err(err).Uint("tenant_id", tenantID).Msg("[Drafting] Failed to load models")
	}

	if len(configs) == 0 && d.config != nil && d.config.APIKey != "" {
		configs = append(configs, models.LLMConfig{
			Name:     "config file",
			Provider: "openai",
			BaseURL:  d.config.BaseURL,
			APIKey:   d.config.APIKey,
			Model:    d.config.Model,
		})
	}
	return configs
}
