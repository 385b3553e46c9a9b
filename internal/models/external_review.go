package models

import "time"

const (
	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"
)

// ExternalReview is a review surfaced from a third-party platform.
// Only ResponseRequired changes after ingestion.
type ExternalReview struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	TenantID         uint      `gorm:"uniqueIndex:idx_review_external,priority:1;index;not null" json:"tenant_id"`
	Platform         string    `gorm:"uniqueIndex:idx_review_external,priority:2;size:50;not null" json:"platform"`
	ExternalID       string    `gorm:"uniqueIndex:idx_review_external,priority:3;size:200;not null" json:"external_id"`
	Rating           int       `gorm:"not null" json:"rating"`
	Author           string    `gorm:"size:200" json:"author"`
	Text             string    `gorm:"type:text" json:"text"`
	ReviewDate       time.Time `gorm:"index" json:"review_date"`
	Sentiment        string    `gorm:"size:20" json:"sentiment"`
	ResponseRequired bool      `gorm:"index" json:"response_required"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (ExternalReview) TableName() string { return "external_reviews" }

// SentimentForRating derives a label when the platform does not provide one.
func SentimentForRating(rating int) string {
	switch {
	case rating >= 4:
		return SentimentPositive
	case rating == 3:
		return SentimentNeutral
	default:
		return SentimentNegative
	}
}
