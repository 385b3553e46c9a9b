package models

import "time"

// JobClaim records which instance runs a scheduled job for one period,
// e.g. job "morning_digest" and period "12:2026-10-18". At most one row
// exists per (job, period); an expired claim may be taken over.
type JobClaim struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Job       string    `gorm:"uniqueIndex:idx_job_period;size:100;not null" json:"job"`
	Period    string    `gorm:"uniqueIndex:idx_job_period;size:100;not null" json:"period"`
	Holder    string    `gorm:"size:100" json:"holder"`
	ClaimedAt time.Time `json:"claimed_at"`
	ExpiresAt time.Time `gorm:"index" json:"expires_at"`
}

func (JobClaim) TableName() string { return "job_claims" }
