package models

import "time"

const (
	ReportTypeMorning  = "morning"
	ReportTypeWeekly   = "weekly"
	ReportTypeCritical = "critical"
)

// Report is a persisted digest. One row per tenant, type and date.
type Report struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	TenantID    uint       `gorm:"uniqueIndex:idx_report_tenant_type_date,priority:1;not null" json:"tenant_id"`
	ReportType  string     `gorm:"uniqueIndex:idx_report_tenant_type_date,priority:2;size:20;not null" json:"report_type"`
	ReportDate  string     `gorm:"uniqueIndex:idx_report_tenant_type_date,priority:3;size:10;not null" json:"report_date"` // YYYY-MM-DD
	Payload     string     `gorm:"type:text" json:"payload"`
	NotifiedAt  *time.Time `json:"notified_at"`
	NotifyError string     `gorm:"type:text" json:"notify_error"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (Report) TableName() string { return "reports" }
