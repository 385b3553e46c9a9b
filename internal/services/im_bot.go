package services

import (
	"context"
	"fmt"

	"github.com/staysignal/backend/internal/models"
	"gorm.io/gorm"
)

const (
	defaultChannelPage = 20
	channelLabel       = "channel"
)

// IMBotService manages the chat channels a property pushes escalations and
// digests to.
type IMBotService struct {
	db *gorm.DB
}

func NewIMBotService(db *gorm.DB) *IMBotService {
	return &IMBotService{db: db}
}

type IMBotListRequest struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	Type     string `form:"type"`
	IsActive *bool  `form:"is_active"`
}

type IMBotListResponse struct {
	Items    []models.IMBot `json:"items"`
	Total    int64          `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
}

type CreateIMBotRequest struct {
	Name          string `json:"name" binding:"required"`
	Type          string `json:"type" binding:"required,oneof=slack teams discord telegram dingtalk feishu wechat_work generic"`
	Webhook       string `json:"webhook" binding:"required,url"`
	Secret        string `json:"secret"`
	Extra         string `json:"extra"`
	AlertEnabled  *bool  `json:"alert_enabled"`
	DigestEnabled *bool  `json:"digest_enabled"`
}

type UpdateIMBotRequest struct {
	Name          string `json:"name"`
	Webhook       string `json:"webhook" binding:"omitempty,url"`
	Secret        string `json:"secret"`
	Extra         string `json:"extra"`
	IsActive      *bool  `json:"is_active"`
	AlertEnabled  *bool  `json:"alert_enabled"`
	DigestEnabled *bool  `json:"digest_enabled"`
}

// List pages through the tenant's channels, newest first.
func (s *IMBotService) List(ctx context.Context, tenantID uint, req *IMBotListRequest) (*IMBotListResponse, error) {
	out := &IMBotListResponse{Page: max(req.Page, 1), PageSize: req.PageSize, Items: []models.IMBot{}}
	if out.PageSize == 0 {
		out.PageSize = defaultChannelPage
	}

	q := s.db.WithContext(ctx).Model(&models.IMBot{}).Where("tenant_id = ?", tenantID)
	if req.Type != "" {
		q = q.Where("type = ?", req.Type)
	}
	if req.IsActive != nil {
		q = q.Where("is_active = ?", *req.IsActive)
	}
	if err := q.Count(&out.Total).Error; err != nil {
		return nil, err
	}
	if out.Total == 0 {
		return out, nil
	}

	err := q.Order("created_at DESC, id DESC").
		Offset((out.Page - 1) * out.PageSize).
		Limit(out.PageSize).
		Find(&out.Items).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *IMBotService) Get(ctx context.Context, tenantID, id uint) (*models.IMBot, error) {
	return findOwned[models.IMBot](ctx, s.db, tenantID, id, channelLabel)
}

func (s *IMBotService) Create(ctx context.Context, tenantID uint, req *CreateIMBotRequest) (*models.IMBot, error) {
	if req.Type == "telegram" && req.Extra == "" {
		return nil, fmt.Errorf("%w: telegram channels need a chat id in extra", ErrValidation)
	}

	bot := &models.IMBot{
		TenantID:      tenantID,
		Name:          req.Name,
		Type:          req.Type,
		Webhook:       req.Webhook,
		Secret:        req.Secret,
		Extra:         req.Extra,
		IsActive:      true,
		AlertEnabled:  boolOr(req.AlertEnabled, true),
		DigestEnabled: boolOr(req.DigestEnabled, true),
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(bot).Error; err != nil {
			return err
		}
		// false is a zero value, so Create leaves the column default of true.
		return tx.Model(bot).Updates(map[string]interface{}{
			"alert_enabled":  bot.AlertEnabled,
			"digest_enabled": bot.DigestEnabled,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return bot, nil
}

func (s *IMBotService) Update(ctx context.Context, tenantID, id uint, req *UpdateIMBotRequest) (*models.IMBot, error) {
	bot, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	changes := patch{}.
		text("name", req.Name).
		text("webhook", req.Webhook).
		text("secret", req.Secret).
		text("extra", req.Extra)
	setIf(changes, "is_active", req.IsActive)
	setIf(changes, "alert_enabled", req.AlertEnabled)
	setIf(changes, "digest_enabled", req.DigestEnabled)
	if len(changes) == 0 {
		return bot, nil
	}

	if err := s.db.WithContext(ctx).Model(bot).Updates(map[string]interface{}(changes)).Error; err != nil {
		return nil, err
	}
	return s.Get(ctx, tenantID, id)
}

func (s *IMBotService) Delete(ctx context.Context, tenantID, id uint) error {
	return deleteOwned[models.IMBot](ctx, s.db, tenantID, id, channelLabel)
}
