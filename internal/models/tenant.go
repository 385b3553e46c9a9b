package models

import "time"

// Tenant is one isolated property (hotel). Every domain row references it.
type Tenant struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Name            string    `gorm:"size:200;not null" json:"name"`
	BrandVoice      string    `gorm:"type:text" json:"brand_voice"`
	ContactEmail    string    `gorm:"size:255" json:"contact_email"`
	CountryCode     string    `gorm:"size:10;default:NONE" json:"country_code"` // holiday calendar, e.g. US, GB, CN
	Timezone        string    `gorm:"size:64;default:UTC" json:"timezone"`
	PrimaryPlatform string    `gorm:"size:50" json:"primary_platform"` // google, tripadvisor, booking...
	TargetRating    float64   `json:"target_rating"`                   // 0 means use config default
	IsActive        bool      `gorm:"default:true" json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (Tenant) TableName() string { return "tenants" }

// Manager is a tenant contact that can receive escalations and sign in.
type Manager struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	TenantID       uint       `gorm:"index;not null" json:"tenant_id"`
	Name           string     `gorm:"size:100;not null" json:"name"`
	Email          string     `gorm:"size:255;index" json:"email"`
	Phone          string     `gorm:"size:50" json:"phone"`
	Role           string     `gorm:"size:50" json:"role"` // owner, general_manager, duty_manager, ...
	ReceivesAlerts bool       `gorm:"default:true" json:"receives_alerts"`
	Password       string     `gorm:"size:255" json:"-"`
	AuthType       string     `gorm:"size:20;default:local" json:"auth_type"` // local, ldap
	IsActive       bool       `gorm:"default:true" json:"is_active"`
	LastLogin      *time.Time `json:"last_login,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (Manager) TableName() string { return "managers" }
