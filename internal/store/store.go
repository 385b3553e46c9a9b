// Package store is the tenant-scoped persistence layer. Every read and write
// takes the tenant id explicitly; there is no way to query across tenants
// except ListActiveTenants, which the schedulers use to fan out.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/staysignal/backend/internal/models"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict means a conditional write lost a race or a uniqueness rule was hit.
	ErrConflict = errors.New("conflict")
)

type Store interface {
	// Feedback
	CreateFeedback(ctx context.Context, tenantID uint, item *models.FeedbackItem) error
	GetFeedback(ctx context.Context, tenantID, id uint) (*models.FeedbackItem, error)
	// UpdateFeedbackStatus persists item's status and timestamps only if the
	// stored status is still from.
	UpdateFeedbackStatus(ctx context.Context, tenantID uint, item *models.FeedbackItem, from models.FeedbackStatus) error
	ListOpenFeedback(ctx context.Context, tenantID uint) ([]models.FeedbackItem, error)
	ListFeedbackSince(ctx context.Context, tenantID uint, since time.Time) ([]models.FeedbackItem, error)
	ListFeedbackBetween(ctx context.Context, tenantID uint, from, to time.Time) ([]models.FeedbackItem, error)

	// External reviews
	UpsertExternalReview(ctx context.Context, tenantID uint, review *models.ExternalReview) (created bool, err error)
	GetExternalReview(ctx context.Context, tenantID, id uint) (*models.ExternalReview, error)
	ListReviewsSince(ctx context.Context, tenantID uint, since time.Time) ([]models.ExternalReview, error)
	ListReviewsNeedingResponse(ctx context.Context, tenantID uint) ([]models.ExternalReview, error)
	SetResponseRequired(ctx context.Context, tenantID, reviewID uint, required bool) error

	// Responses
	CreateResponse(ctx context.Context, tenantID uint, resp *models.ReviewResponse) error
	GetResponse(ctx context.Context, tenantID, id uint) (*models.ReviewResponse, error)
	ListResponsesByReview(ctx context.Context, tenantID, reviewID uint) ([]models.ReviewResponse, error)
	ActiveResponse(ctx context.Context, tenantID, reviewID uint) (*models.ReviewResponse, error)
	TransitionResponse(ctx context.Context, tenantID, id uint, from models.ResponseStatus, updates map[string]interface{}) error
	UpdateDraftText(ctx context.Context, tenantID, id uint, expectedVersion int, text string) error
	MarkPosted(ctx context.Context, tenantID, id uint, postedAt time.Time) error
	MaxResponseVersion(ctx context.Context, tenantID, reviewID uint) (int, error)
	LatestResponseAt(ctx context.Context, tenantID, reviewID uint) (*time.Time, error)

	// Rating snapshots
	CreateSnapshot(ctx context.Context, tenantID uint, snap *models.RatingSnapshot) error
	LatestSnapshots(ctx context.Context, tenantID uint, platform string, n int) ([]models.RatingSnapshot, error)
	Platforms(ctx context.Context, tenantID uint) ([]string, error)

	// Tenants and contacts
	GetTenant(ctx context.Context, tenantID uint) (*models.Tenant, error)
	ListActiveTenants(ctx context.Context) ([]models.Tenant, error)
	ListAlertContacts(ctx context.Context, tenantID uint) ([]models.Manager, error)

	// Draft failures
	RecordDraftFailure(ctx context.Context, tenantID, reviewID uint, msg string, at time.Time) error
	CountDraftFailuresSince(ctx context.Context, tenantID, reviewID uint, since time.Time) (int64, error)

	// Alerts
	AlertLogged(ctx context.Context, tenantID uint, dedupeKey string) (bool, error)
	// LogAlert claims the entry's dedupe key; ErrConflict means it was already logged.
	LogAlert(ctx context.Context, tenantID uint, entry *models.AlertLog) error
	MarkAlertNotified(ctx context.Context, tenantID, id uint, at time.Time) error
	// ListUnnotifiedAlerts returns logged alerts of the given signals whose push
	// never succeeded, oldest first.
	ListUnnotifiedAlerts(ctx context.Context, tenantID uint, signals []string, limit int) ([]models.AlertLog, error)
	ListAlertLogs(ctx context.Context, tenantID uint, limit int) ([]models.AlertLog, error)

	// Reports
	SaveReport(ctx context.Context, tenantID uint, report *models.Report) error
	GetReport(ctx context.Context, tenantID uint, reportType, date string) (*models.Report, error)
	ListReports(ctx context.Context, tenantID uint, reportType string, limit int) ([]models.Report, error)

	// Settings, channels, audit
	GetSetting(ctx context.Context, tenantID uint, key string) (string, bool, error)
	SetSetting(ctx context.Context, tenantID uint, key, value, valueType string) error
	ListIMBots(ctx context.Context, tenantID uint) ([]models.IMBot, error)
	CreateSystemLog(ctx context.Context, tenantID uint, entry *models.SystemLog) error
	ListSystemLogs(ctx context.Context, tenantID uint, module string, limit int) ([]models.SystemLog, error)
}
