package models

import (
	"time"

	"gorm.io/gorm"
)

// PromptTemplate is the text sent to the drafting model, with {{variable}} placeholders.
type PromptTemplate struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	TenantID  *uint          `gorm:"index" json:"tenant_id"` // nil for the system template
	Name      string         `gorm:"size:100;not null" json:"name"`
	Content   string         `gorm:"type:text;not null" json:"content"`
	Variables string         `gorm:"size:500" json:"variables"` // JSON array
	IsDefault bool           `gorm:"default:false" json:"is_default"`
	IsSystem  bool           `gorm:"default:false" json:"is_system"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (PromptTemplate) TableName() string { return "prompt_templates" }
