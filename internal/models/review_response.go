package models

import "time"

type ResponseStatus string

const (
	ResponseStatusDraft    ResponseStatus = "draft"
	ResponseStatusApproved ResponseStatus = "approved"
	ResponseStatusRejected ResponseStatus = "rejected"
	ResponseStatusPosted   ResponseStatus = "posted"
	ResponseStatusFailed   ResponseStatus = "failed"
)

// IsActive reports whether the status still blocks a new response for the review.
func (s ResponseStatus) IsActive() bool {
	return s == ResponseStatusDraft || s == ResponseStatusApproved
}

const (
	ResponsePriorityLow    = "low"
	ResponsePriorityNormal = "normal"
	ResponsePriorityHigh   = "high"
)

// ReviewResponse is one generated candidate reply to an external review.
type ReviewResponse struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	TenantID         uint            `gorm:"index;not null" json:"tenant_id"`
	ExternalReviewID uint            `gorm:"uniqueIndex:idx_response_review_version,priority:1;not null" json:"external_review_id"`
	ExternalReview   *ExternalReview `gorm:"foreignKey:ExternalReviewID" json:"external_review,omitempty"`
	Version          int             `gorm:"uniqueIndex:idx_response_review_version,priority:2;not null;default:1" json:"version"`
	Text             string          `gorm:"type:text" json:"text"`
	Status           ResponseStatus  `gorm:"size:20;index;not null" json:"status"`
	Priority         string          `gorm:"size:20;default:normal" json:"priority"`
	ManagerNotes     string          `gorm:"type:text" json:"manager_notes"`
	RejectionReason  string          `gorm:"type:text" json:"rejection_reason"`
	ApprovedBy       *uint           `json:"approved_by"`
	DraftContext     string          `gorm:"type:text" json:"draft_context"` // JSON sent to the drafting service
	ModelUsed        string          `gorm:"size:100" json:"model_used"`
	CreatedAt        time.Time       `json:"created_at"`
	ApprovedAt       *time.Time      `json:"approved_at"`
	RejectedAt       *time.Time      `json:"rejected_at"`
	PostedAt         *time.Time      `json:"posted_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func (ReviewResponse) TableName() string { return "review_responses" }

// DraftFailure records a drafting call that produced no text.
type DraftFailure struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	TenantID         uint      `gorm:"index;not null" json:"tenant_id"`
	ExternalReviewID uint      `gorm:"index;not null" json:"external_review_id"`
	Error            string    `gorm:"type:text" json:"error"`
	CreatedAt        time.Time `gorm:"index" json:"created_at"`
}

func (DraftFailure) TableName() string { return "draft_failures" }
