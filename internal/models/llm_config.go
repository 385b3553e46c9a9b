package models

import (
	"time"

	"gorm.io/gorm"
)

// LLMConfig is one drafting model. Rows with a nil TenantID are shared by
// every property; a tenant's own default is tried before the shared one.
type LLMConfig struct {
	ID          uint    `gorm:"primaryKey" json:"id"`
	TenantID    *uint   `gorm:"index" json:"tenant_id"`
	Name        string  `gorm:"size:100;not null" json:"name"`
	Provider    string  `gorm:"size:50;default:openai" json:"provider"` // openai, azure, anthropic, ollama, gemini
	BaseURL     string  `gorm:"size:500" json:"base_url"`
	APIKey      string  `gorm:"size:500" json:"-"`
	Model       string  `gorm:"size:100" json:"model"`
	MaxTokens   int     `gorm:"default:1024" json:"max_tokens"`
	Temperature float64 `gorm:"default:0.6" json:"temperature"`
	IsDefault   bool    `gorm:"default:false" json:"is_default"`
	IsActive    bool    `gorm:"default:true" json:"is_active"`

	// Outcome of the most recent drafting call, shown on the settings page.
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
	LastError   string     `gorm:"size:500" json:"last_error,omitempty"`
	FailedCalls int        `gorm:"default:0" json:"failed_calls"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (LLMConfig) TableName() string { return "llm_configs" }
