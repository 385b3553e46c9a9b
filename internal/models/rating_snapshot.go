package models

import "time"

// RatingSnapshot is a periodic capture of a platform's aggregate rating.
// Append-only; ordered by CapturedAt.
type RatingSnapshot struct {
	ID           uint        `gorm:"primaryKey" json:"id"`
	TenantID     uint        `gorm:"index:idx_snapshot_lookup,priority:1;not null" json:"tenant_id"`
	Platform     string      `gorm:"index:idx_snapshot_lookup,priority:2;size:50;not null" json:"platform"`
	Average      float64     `json:"average"`
	TotalReviews int         `json:"total_reviews"`
	Distribution map[int]int `gorm:"type:text;serializer:json" json:"distribution"` // star value -> count
	CapturedAt   time.Time   `gorm:"index:idx_snapshot_lookup,priority:3" json:"captured_at"`
	CreatedAt    time.Time   `json:"created_at"`
}

func (RatingSnapshot) TableName() string { return "rating_snapshots" }
