package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/staysignal/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) scoped(ctx context.Context, tenantID uint) *gorm.DB {
	return s.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate")
}

// casResult turns a zero-row conditional update into ErrNotFound or ErrConflict.
func casResult(q *gorm.DB, res *gorm.DB, model interface{}, tenantID, id uint) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	var count int64
	if err := q.Model(model).Where("tenant_id = ? AND id = ?", tenantID, id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}
	return ErrConflict
}

// --- Feedback ---

func (s *GormStore) CreateFeedback(ctx context.Context, tenantID uint, item *models.FeedbackItem) error {
	item.TenantID = tenantID
	item.CreatedAt = item.CreatedAt.UTC()
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *GormStore) GetFeedback(ctx context.Context, tenantID, id uint) (*models.FeedbackItem, error) {
	var item models.FeedbackItem
	if err := s.scoped(ctx, tenantID).First(&item, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &item, nil
}

func (s *GormStore) UpdateFeedbackStatus(ctx context.Context, tenantID uint, item *models.FeedbackItem, from models.FeedbackStatus) error {
	q := s.db.WithContext(ctx)
	res := q.Model(&models.FeedbackItem{}).
		Where("tenant_id = ? AND id = ? AND status = ?", tenantID, item.ID, from).
		Updates(map[string]interface{}{
			"status":          item.Status,
			"acknowledged_at": utcPtr(item.AcknowledgedAt),
			"resolved_at":     utcPtr(item.ResolvedAt),
		})
	return casResult(q, res, &models.FeedbackItem{}, tenantID, item.ID)
}

func (s *GormStore) ListOpenFeedback(ctx context.Context, tenantID uint) ([]models.FeedbackItem, error) {
	var items []models.FeedbackItem
	err := s.scoped(ctx, tenantID).
		Where("status <> ?", models.FeedbackStatusResolved).
		Order("created_at ASC, id ASC").
		Find(&items).Error
	return items, err
}

func (s *GormStore) ListFeedbackSince(ctx context.Context, tenantID uint, since time.Time) ([]models.FeedbackItem, error) {
	var items []models.FeedbackItem
	err := s.scoped(ctx, tenantID).
		Where("created_at >= ?", since.UTC()).
		Order("created_at ASC, id ASC").
		Find(&items).Error
	return items, err
}

func (s *GormStore) ListFeedbackBetween(ctx context.Context, tenantID uint, from, to time.Time) ([]models.FeedbackItem, error) {
	var items []models.FeedbackItem
	err := s.scoped(ctx, tenantID).
		Where("created_at >= ? AND created_at < ?", from.UTC(), to.UTC()).
		Order("created_at ASC, id ASC").
		Find(&items).Error
	return items, err
}

// --- External reviews ---

func (s *GormStore) UpsertExternalReview(ctx context.Context, tenantID uint, review *models.ExternalReview) (bool, error) {
	review.TenantID = tenantID
	review.ReviewDate = review.ReviewDate.UTC()

	var existing models.ExternalReview
	err := s.scoped(ctx, tenantID).
		Where("platform = ? AND external_id = ?", review.Platform, review.ExternalID).
		First(&existing).Error
	if err == nil {
		*review = existing
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}

	if err := s.db.WithContext(ctx).Create(review).Error; err != nil {
		if isDuplicate(err) {
			return false, ErrConflict
		}
		return false, err
	}
	return true, nil
}

func (s *GormStore) GetExternalReview(ctx context.Context, tenantID, id uint) (*models.ExternalReview, error) {
	var review models.ExternalReview
	if err := s.scoped(ctx, tenantID).First(&review, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &review, nil
}

func (s *GormStore) ListReviewsSince(ctx context.Context, tenantID uint, since time.Time) ([]models.ExternalReview, error) {
	var reviews []models.ExternalReview
	err := s.scoped(ctx, tenantID).
		Where("review_date >= ?", since.UTC()).
		Order("review_date ASC, id ASC").
		Find(&reviews).Error
	return reviews, err
}

func (s *GormStore) ListReviewsNeedingResponse(ctx context.Context, tenantID uint) ([]models.ExternalReview, error) {
	var reviews []models.ExternalReview
	err := s.scoped(ctx, tenantID).
		Where("response_required = ?", true).
		Order("review_date ASC, id ASC").
		Find(&reviews).Error
	return reviews, err
}

func (s *GormStore) SetResponseRequired(ctx context.Context, tenantID, reviewID uint, required bool) error {
	res := s.db.WithContext(ctx).Model(&models.ExternalReview{}).
		Where("tenant_id = ? AND id = ?", tenantID, reviewID).
		Update("response_required", required)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Responses ---

// CreateResponse inserts a new response version. A draft or approved row is
// refused while another draft or approved row exists for the same review.
func (s *GormStore) CreateResponse(ctx context.Context, tenantID uint, resp *models.ReviewResponse) error {
	resp.TenantID = tenantID
	resp.CreatedAt = resp.CreatedAt.UTC()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if resp.Status.IsActive() {
			var active int64
			if err := tx.Model(&models.ReviewResponse{}).
				Where("tenant_id = ? AND external_review_id = ? AND status IN ?", tenantID, resp.ExternalReviewID,
					[]models.ResponseStatus{models.ResponseStatusDraft, models.ResponseStatusApproved}).
				Count(&active).Error; err != nil {
				return err
			}
			if active > 0 {
				return ErrConflict
			}
		}
		return tx.Create(resp).Error
	})
	if isDuplicate(err) {
		return ErrConflict
	}
	return err
}

func (s *GormStore) GetResponse(ctx context.Context, tenantID, id uint) (*models.ReviewResponse, error) {
	var resp models.ReviewResponse
	if err := s.scoped(ctx, tenantID).First(&resp, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &resp, nil
}

func (s *GormStore) ListResponsesByReview(ctx context.Context, tenantID, reviewID uint) ([]models.ReviewResponse, error) {
	var responses []models.ReviewResponse
	err := s.scoped(ctx, tenantID).
		Where("external_review_id = ?", reviewID).
		Order("version ASC").
		Find(&responses).Error
	return responses, err
}

func (s *GormStore) ActiveResponse(ctx context.Context, tenantID, reviewID uint) (*models.ReviewResponse, error) {
	var resp models.ReviewResponse
	err := s.scoped(ctx, tenantID).
		Where("external_review_id = ? AND status IN ?", reviewID,
			[]models.ResponseStatus{models.ResponseStatusDraft, models.ResponseStatusApproved}).
		Order("version DESC").
		First(&resp).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &resp, nil
}

func (s *GormStore) TransitionResponse(ctx context.Context, tenantID, id uint, from models.ResponseStatus, updates map[string]interface{}) error {
	q := s.db.WithContext(ctx)
	res := q.Model(&models.ReviewResponse{}).
		Where("tenant_id = ? AND id = ? AND status = ?", tenantID, id, from).
		Updates(updates)
	return casResult(q, res, &models.ReviewResponse{}, tenantID, id)
}

// UpdateDraftText replaces a draft's text and bumps its version in place.
func (s *GormStore) UpdateDraftText(ctx context.Context, tenantID, id uint, expectedVersion int, text string) error {
	q := s.db.WithContext(ctx)
	res := q.Model(&models.ReviewResponse{}).
		Where("tenant_id = ? AND id = ? AND status = ? AND version = ?", tenantID, id, models.ResponseStatusDraft, expectedVersion).
		Updates(map[string]interface{}{
			"text":    text,
			"version": expectedVersion + 1,
		})
	return casResult(q, res, &models.ReviewResponse{}, tenantID, id)
}

// MarkPosted moves an approved response to posted and clears the review's
// response-required flag in one transaction.
func (s *GormStore) MarkPosted(ctx context.Context, tenantID, id uint, postedAt time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var resp models.ReviewResponse
		if err := tx.Where("tenant_id = ?", tenantID).First(&resp, id).Error; err != nil {
			return notFound(err)
		}

		res := tx.Model(&models.ReviewResponse{}).
			Where("tenant_id = ? AND id = ? AND status = ?", tenantID, id, models.ResponseStatusApproved).
			Updates(map[string]interface{}{
				"status":    models.ResponseStatusPosted,
				"posted_at": postedAt.UTC(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrConflict
		}

		return tx.Model(&models.ExternalReview{}).
			Where("tenant_id = ? AND id = ?", tenantID, resp.ExternalReviewID).
			Update("response_required", false).Error
	})
}

func (s *GormStore) MaxResponseVersion(ctx context.Context, tenantID, reviewID uint) (int, error) {
	var version sql.NullInt64
	err := s.scoped(ctx, tenantID).Model(&models.ReviewResponse{}).
		Where("external_review_id = ?", reviewID).
		Select("MAX(version)").
		Row().Scan(&version)
	if err != nil {
		return 0, err
	}
	return int(version.Int64), nil
}

func (s *GormStore) LatestResponseAt(ctx context.Context, tenantID, reviewID uint) (*time.Time, error) {
	var resp models.ReviewResponse
	err := s.scoped(ctx, tenantID).
		Where("external_review_id = ?", reviewID).
		Order("version DESC").
		First(&resp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	// A rejection is the latest decision on the review, not its creation.
	at := resp.CreatedAt
	if resp.RejectedAt != nil && resp.RejectedAt.After(at) {
		at = *resp.RejectedAt
	}
	return &at, nil
}

// --- Rating snapshots ---

func (s *GormStore) CreateSnapshot(ctx context.Context, tenantID uint, snap *models.RatingSnapshot) error {
	snap.TenantID = tenantID
	snap.CapturedAt = snap.CapturedAt.UTC()
	return s.db.WithContext(ctx).Create(snap).Error
}

// LatestSnapshots returns up to n snapshots for the platform, newest first.
func (s *GormStore) LatestSnapshots(ctx context.Context, tenantID uint, platform string, n int) ([]models.RatingSnapshot, error) {
	var snaps []models.RatingSnapshot
	err := s.scoped(ctx, tenantID).
		Where("platform = ?", platform).
		Order("captured_at DESC, id DESC").
		Limit(n).
		Find(&snaps).Error
	return snaps, err
}

func (s *GormStore) Platforms(ctx context.Context, tenantID uint) ([]string, error) {
	var platforms []string
	err := s.scoped(ctx, tenantID).Model(&models.RatingSnapshot{}).
		Distinct("platform").
		Order("platform ASC").
		Pluck("platform", &platforms).Error
	return platforms, err
}

// --- Tenants and contacts ---

func (s *GormStore) GetTenant(ctx context.Context, tenantID uint) (*models.Tenant, error) {
	var tenant models.Tenant
	if err := s.db.WithContext(ctx).First(&tenant, tenantID).Error; err != nil {
		return nil, notFound(err)
	}
	return &tenant, nil
}

func (s *GormStore) ListActiveTenants(ctx context.Context) ([]models.Tenant, error) {
	var tenants []models.Tenant
	err := s.db.WithContext(ctx).Where("is_active = ?", true).Order("id ASC").Find(&tenants).Error
	return tenants, err
}

func (s *GormStore) ListAlertContacts(ctx context.Context, tenantID uint) ([]models.Manager, error) {
	var managers []models.Manager
	err := s.scoped(ctx, tenantID).
		Where("receives_alerts = ? AND is_active = ?", true, true).
		Order("id ASC").
		Find(&managers).Error
	return managers, err
}

// --- Draft failures ---

func (s *GormStore) RecordDraftFailure(ctx context.Context, tenantID, reviewID uint, msg string, at time.Time) error {
	return s.db.WithContext(ctx).Create(&models.DraftFailure{
		TenantID:         tenantID,
		ExternalReviewID: reviewID,
		Error:            msg,
		CreatedAt:        at.UTC(),
	}).Error
}

func (s *GormStore) CountDraftFailuresSince(ctx context.Context, tenantID, reviewID uint, since time.Time) (int64, error) {
	var count int64
	err := s.scoped(ctx, tenantID).Model(&models.DraftFailure{}).
		Where("external_review_id = ? AND created_at >= ?", reviewID, since.UTC()).
		Count(&count).Error
	return count, err
}

// --- Alerts ---

func (s *GormStore) AlertLogged(ctx context.Context, tenantID uint, dedupeKey string) (bool, error) {
	var count int64
	err := s.scoped(ctx, tenantID).Model(&models.AlertLog{}).
		Where("dedupe_key = ?", dedupeKey).
		Count(&count).Error
	return count > 0, err
}

func (s *GormStore) LogAlert(ctx context.Context, tenantID uint, entry *models.AlertLog) error {
	entry.TenantID = tenantID
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		if isDuplicate(err) {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (s *GormStore) MarkAlertNotified(ctx context.Context, tenantID, id uint, at time.Time) error {
	return s.scoped(ctx, tenantID).Model(&models.AlertLog{}).
		Where("id = ?", id).
		Update("notified_at", at.UTC()).Error
}

func (s *GormStore) ListUnnotifiedAlerts(ctx context.Context, tenantID uint, signals []string, limit int) ([]models.AlertLog, error) {
	var logs []models.AlertLog
	err := s.scoped(ctx, tenantID).
		Where("notified_at IS NULL AND signal IN ?", signals).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

func (s *GormStore) ListAlertLogs(ctx context.Context, tenantID uint, limit int) ([]models.AlertLog, error) {
	var logs []models.AlertLog
	err := s.scoped(ctx, tenantID).Order("created_at DESC, id DESC").Limit(limit).Find(&logs).Error
	return logs, err
}

// --- Reports ---

// SaveReport upserts by (tenant, type, date) and fills report.ID.
func (s *GormStore) SaveReport(ctx context.Context, tenantID uint, report *models.Report) error {
	report.TenantID = tenantID
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Report
		err := tx.Where("tenant_id = ? AND report_type = ? AND report_date = ?", tenantID, report.ReportType, report.ReportDate).
			First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			report.ID = 0
			return tx.Create(report).Error
		}
		if err != nil {
			return err
		}
		report.ID = existing.ID
		report.CreatedAt = existing.CreatedAt
		return tx.Model(&existing).Updates(map[string]interface{}{
			"payload":      report.Payload,
			"notified_at":  utcPtr(report.NotifiedAt),
			"notify_error": report.NotifyError,
		}).Error
	})
}

func (s *GormStore) GetReport(ctx context.Context, tenantID uint, reportType, date string) (*models.Report, error) {
	var report models.Report
	err := s.scoped(ctx, tenantID).
		Where("report_type = ? AND report_date = ?", reportType, date).
		First(&report).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &report, nil
}

func (s *GormStore) ListReports(ctx context.Context, tenantID uint, reportType string, limit int) ([]models.Report, error) {
	var reports []models.Report
	q := s.scoped(ctx, tenantID)
	if reportType != "" {
		q = q.Where("report_type = ?", reportType)
	}
	err := q.Order("report_date DESC, id DESC").Limit(limit).Find(&reports).Error
	return reports, err
}

// --- Settings, channels, audit ---

func (s *GormStore) GetSetting(ctx context.Context, tenantID uint, key string) (string, bool, error) {
	var setting models.TenantSetting
	err := s.scoped(ctx, tenantID).Where("setting_key = ?", key).First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return setting.Value, true, nil
}

func (s *GormStore) SetSetting(ctx context.Context, tenantID uint, key, value, valueType string) error {
	setting := models.TenantSetting{TenantID: tenantID, Key: key, Value: value, Type: valueType}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "setting_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "type", "updated_at"}),
	}).Create(&setting).Error
}

func (s *GormStore) ListIMBots(ctx context.Context, tenantID uint) ([]models.IMBot, error) {
	var bots []models.IMBot
	err := s.scoped(ctx, tenantID).Where("is_active = ?", true).Order("id ASC").Find(&bots).Error
	return bots, err
}

func (s *GormStore) CreateSystemLog(ctx context.Context, tenantID uint, entry *models.SystemLog) error {
	entry.TenantID = tenantID
	return s.db.WithContext(ctx).Create(entry).Error
}

func (s *GormStore) ListSystemLogs(ctx context.Context, tenantID uint, module string, limit int) ([]models.SystemLog, error) {
	var logs []models.SystemLog
	query := s.scoped(ctx, tenantID)
	if module != "" {
		query = query.Where("module = ?", module)
	}
	err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&logs).Error
	return logs, err
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
