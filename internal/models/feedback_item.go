package models

import "time"

type FeedbackStatus string

const (
	FeedbackStatusNew          FeedbackStatus = "new"
	FeedbackStatusAcknowledged FeedbackStatus = "acknowledged"
	FeedbackStatusResolved     FeedbackStatus = "resolved"
)

// FeedbackItem is an internal guest submission from an in-room or area QR code.
// Rows are never deleted; only the status advances.
type FeedbackItem struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	TenantID       uint           `gorm:"index:idx_feedback_tenant_created,priority:1;not null" json:"tenant_id"`
	Rating         int            `gorm:"not null" json:"rating"`
	Category       string         `gorm:"size:100;index" json:"category"`
	Comment        string         `gorm:"type:text" json:"comment"`
	Location       string         `gorm:"size:100" json:"location"` // room number or area from the QR code
	GuestName      string         `gorm:"size:200" json:"guest_name"`
	GuestEmail     string         `gorm:"size:255" json:"guest_email"`
	GuestPhone     string         `gorm:"size:50" json:"guest_phone"`
	Status         FeedbackStatus `gorm:"size:20;index;default:new" json:"status"`
	AcknowledgedAt *time.Time     `json:"acknowledged_at"`
	ResolvedAt     *time.Time     `json:"resolved_at"`
	CreatedAt      time.Time      `gorm:"index:idx_feedback_tenant_created,priority:2" json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

func (FeedbackItem) TableName() string { return "feedback_items" }

// HasContact reports whether the guest left any way to reach them.
func (f *FeedbackItem) HasContact() bool {
	return f.GuestEmail != "" || f.GuestPhone != ""
}
