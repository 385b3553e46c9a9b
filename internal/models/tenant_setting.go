package models

import "time"

// TenantSetting overrides a config default for one tenant.
type TenantSetting struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TenantID  uint      `gorm:"uniqueIndex:idx_setting_tenant_key,priority:1;not null" json:"tenant_id"`
	Key       string    `gorm:"column:setting_key;uniqueIndex:idx_setting_tenant_key,priority:2;size:100;not null" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	Type      string    `gorm:"size:20;default:string" json:"type"` // string, int, bool, float, json
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (TenantSetting) TableName() string { return "tenant_settings" }

const (
	SettingHighImpactCategories = "high_impact_categories"
	SettingRecoveryCaps         = "recovery_caps"
	SettingRecoveryTarget       = "recovery_target"
	SettingAutoDraftEnabled     = "auto_draft_enabled"
	SettingMorningDigestEnabled = "morning_digest_enabled"
	SettingWeeklyDigestEnabled  = "weekly_digest_enabled"
)
