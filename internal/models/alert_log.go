package models

import "time"

// AlertLog records every alert that was pushed, keyed so the same signal
// is not pushed twice.
type AlertLog struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	TenantID   uint       `gorm:"uniqueIndex:idx_alert_dedupe,priority:1;not null" json:"tenant_id"`
	DedupeKey  string     `gorm:"uniqueIndex:idx_alert_dedupe,priority:2;size:200;not null" json:"dedupe_key"`
	AlertID    string     `gorm:"size:36" json:"alert_id"`
	Signal     string     `gorm:"size:50;index" json:"signal"`
	Severity   string     `gorm:"size:20" json:"severity"`
	Summary    string     `gorm:"type:text" json:"summary"`
	Payload    string     `gorm:"type:text" json:"payload"` // JSON
	NotifiedAt *time.Time `json:"notified_at"`
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}

func (AlertLog) TableName() string { return "alert_logs" }
