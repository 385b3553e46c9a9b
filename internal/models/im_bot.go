package models

import (
	"time"

	"gorm.io/gorm"
)

// IMBot is a tenant's chat webhook for escalations and digests.
type IMBot struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	TenantID      uint           `gorm:"index;not null" json:"tenant_id"`
	Name          string         `gorm:"size:100;not null" json:"name"`
	Type          string         `gorm:"size:50;not null" json:"type"` // slack, teams, discord, telegram, dingtalk, feishu, wechat_work, generic
	Webhook       string         `gorm:"size:500;not null" json:"webhook"`
	Secret        string         `gorm:"size:255" json:"-"`     // DingTalk / Feishu signing secret
	Extra         string         `gorm:"size:500" json:"extra"` // Telegram chat_id
	IsActive      bool           `gorm:"default:true" json:"is_active"`
	AlertEnabled  bool           `gorm:"default:true" json:"alert_enabled"`
	DigestEnabled bool           `gorm:"default:true" json:"digest_enabled"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

func (IMBot) TableName() string { return "im_bots" }
