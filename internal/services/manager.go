package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/staysignal/backend/internal/models"
	"github.com/staysignal/backend/internal/utils"
	"gorm.io/gorm"
)

// ManagerService manages a tenant's staff accounts and alert contacts.
type ManagerService struct {
	db *gorm.DB
}

func NewManagerService(db *gorm.DB) *ManagerService {
	return &ManagerService{db: db}
}

type CreateManagerRequest struct {
	Name           string `json:"name" binding:"required"`
	Email          string `json:"email" binding:"required,email"`
	Phone          string `json:"phone"`
	Role           string `json:"role" binding:"required,oneof=owner general_manager duty_manager front_desk"`
	AuthType       string `json:"auth_type" binding:"omitempty,oneof=local ldap"`
	Password       string `json:"password"`
	ReceivesAlerts *bool  `json:"receives_alerts"`
}

type UpdateManagerRequest struct {
	Name           string `json:"name"`
	Phone          string `json:"phone"`
	Role           string `json:"role" binding:"omitempty,oneof=owner general_manager duty_manager front_desk"`
	Password       string `json:"password" binding:"omitempty,min=6"`
	ReceivesAlerts *bool  `json:"receives_alerts"`
	IsActive       *bool  `json:"is_active"`
}

func (s *ManagerService) scoped(ctx context.Context, tenantID uint) *gorm.DB {
	return s.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
}

func (s *ManagerService) List(ctx context.Context, tenantID uint) ([]models.Manager, error) {
	var managers []models.Manager
	err := s.scoped(ctx, tenantID).Order("id ASC").Find(&managers).Error
	return managers, err
}

func (s *ManagerService) Get(ctx context.Context, tenantID, id uint) (*models.Manager, error) {
	return findOwned[models.Manager](ctx, s.db, tenantID, id, "manager")
}

func (s *ManagerService) Create(ctx context.Context, tenantID uint, req *CreateManagerRequest) (*models.Manager, error) {
	authType := req.AuthType
	if authType == "" {
		authType = "local"
	}
	email := normalizeEmail(req.Email)

	var existing int64
	if err := s.scoped(ctx, tenantID).Model(&models.Manager{}).Where("email = ?", email).Count(&existing).Error; err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, fmt.Errorf("%w: %s already has an account", ErrConflict, email)
	}

	manager := models.Manager{
		TenantID:       tenantID,
		Name:           req.Name,
		Email:          email,
		Phone:          req.Phone,
		Role:           req.Role,
		AuthType:       authType,
		IsActive:       true,
		ReceivesAlerts: boolOr(req.ReceivesAlerts, true),
	}
	if authType == "local" {
		hashed, err := hashLocalPassword(req.Password)
		if err != nil {
			return nil, err
		}
		manager.Password = hashed
	}

	if err := s.db.WithContext(ctx).Create(&manager).Error; err != nil {
		return nil, err
	}
	if !manager.ReceivesAlerts {
		if err := s.db.WithContext(ctx).Model(&manager).Update("receives_alerts", false).Error; err != nil {
			return nil, err
		}
	}
	return &manager, nil
}

func (s *ManagerService) Update(ctx context.Context, tenantID, id uint, req *UpdateManagerRequest) (*models.Manager, error) {
	manager, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if req.Name != "" {
		updates["name"] = req.Name
	}
	if req.Phone != "" {
		updates["phone"] = req.Phone
	}
	if req.Role != "" {
		updates["role"] = req.Role
	}
	if req.ReceivesAlerts != nil {
		updates["receives_alerts"] = *req.ReceivesAlerts
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if req.Password != "" {
		if manager.AuthType == "ldap" {
			return nil, fmt.Errorf("%w: directory accounts have no local password", ErrValidation)
		}
		hashed, err := hashLocalPassword(req.Password)
		if err != nil {
			return nil, err
		}
		updates["password"] = hashed
	}
	if len(updates) == 0 {
		return manager, nil
	}

	if err := s.db.WithContext(ctx).Model(manager).Updates(updates).Error; err != nil {
		return nil, err
	}
	if req.IsActive != nil && !*req.IsActive {
		s.revokeSessions(ctx, tenantID, id)
	}
	return s.Get(ctx, tenantID, id)
}

// Delete removes a manager; managers cannot delete themselves.
func (s *ManagerService) Delete(ctx context.Context, tenantID, actorID, id uint) error {
	if actorID == id {
		return fmt.Errorf("%w: cannot delete your own account", ErrValidation)
	}
	result := s.scoped(ctx, tenantID).Delete(&models.Manager{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: manager %d", ErrNotFound, id)
	}
	s.revokeSessions(ctx, tenantID, id)
	return nil
}

func (s *ManagerService) revokeSessions(ctx context.Context, tenantID, managerID uint) {
	s.db.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("tenant_id = ? AND manager_id = ? AND revoked_at IS NULL", tenantID, managerID).
		Update("revoked_at", time.Now().UTC())
}

// hashLocalPassword reports a policy violation as ErrValidation.
func hashLocalPassword(password string) (string, error) {
	hashed, err := utils.HashPassword(password)
	if errors.Is(err, utils.ErrWeakPassword) {
		return "", fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return hashed, err
}
