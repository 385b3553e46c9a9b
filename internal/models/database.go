package models

import (
	"fmt"
	"time"

	"github.com/staysignal/backend/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	maxOpenConns    = 25
	maxIdleConns    = 10
	connMaxLifetime = 5 * time.Minute
)

func dialector(cfg *config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "sqlite":
		return sqlite.Open(cfg.DSN), nil
	case "mysql":
		return mysql.Open(cfg.DSN), nil
	case "postgres":
		return postgres.Open(cfg.DSN), nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
}

// Open connects, sizes the pool and pings. Timestamps are stored in UTC.
// SQLite gets a single connection so writers queue instead of failing with
// "database is locked".
func Open(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	d, err := dialector(cfg)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(d, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}

	pool, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.Driver == "sqlite" {
		pool.SetMaxOpenConns(1)
	} else {
		pool.SetMaxOpenConns(maxOpenConns)
		pool.SetMaxIdleConns(maxIdleConns)
		pool.SetConnMaxLifetime(connMaxLifetime)
	}
	if err := pool.Ping(); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Driver, err)
	}
	return db, nil
}

// Migrate creates all tables plus the indexes gorm tags cannot express.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&Tenant{},
		&Manager{},
		&FeedbackItem{},
		&ExternalReview{},
		&ReviewResponse{},
		&DraftFailure{},
		&RatingSnapshot{},
		&AlertLog{},
		&Report{},
		&TenantSetting{},
		&IMBot{},
		&LLMConfig{},
		&PromptTemplate{},
		&JobClaim{},
		&SystemLog{},
		&RefreshToken{},
	); err != nil {
		return err
	}

	// At most one draft or approved response per review. MySQL has no partial
	// indexes; there the transactional check in the store is the only guard.
	switch db.Dialector.Name() {
	case "sqlite", "postgres":
		return db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_response_one_active
			ON review_responses (external_review_id)
			WHERE status IN ('draft', 'approved')`).Error
	}
	return nil
}

const DefaultResponsePrompt = `You are the guest relations manager of a hotel, replying publicly to a guest review on {{platform}}.

Brand voice: {{brand_voice}}

Guest: {{guest_name}}
Rating: {{rating}}/5 ({{sentiment}})
Review:
{{review_text}}

Write a reply of 80-150 words that:
- thanks the guest by name
- addresses these points specifically: {{issues}}
- for criticism, apologises without making excuses and states what is being done
- for praise, mentions one concrete detail from the review
- invites the guest to get in touch at {{contact_email}} when the rating is 3 or below
- never offers compensation and never discloses other guests' information

Reply with the response text only.`

// Seed installs the shared drafting prompt on a fresh database.
func Seed(db *gorm.DB) error {
	system := PromptTemplate{
		Name:      "Default Review Response",
		Content:   DefaultResponsePrompt,
		Variables: `["platform","guest_name","rating","review_text","sentiment","brand_voice","contact_email","issues"]`,
		IsDefault: true,
		IsSystem:  true,
	}
	return db.Where(PromptTemplate{IsSystem: true}).FirstOrCreate(&system).Error
}
