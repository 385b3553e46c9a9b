package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/staysignal/backend/internal/config"
	"github.com/staysignal/backend/internal/models"
	"github.com/staysignal/backend/internal/utils"
	"github.com/staysignal/backend/pkg/logger"
	"gorm.io/gorm"
)

// AuthService signs managers in and issues access and refresh tokens. The
// access token carries the manager's tenant, so every later request is
// scoped by it.
type AuthService struct {
	db   *gorm.DB
	dir  Directory
	jwt  *config.JWTConfig
	now  func() time.Time
}

func NewAuthService(db *gorm.DB, jwtCfg *config.JWTConfig, dir Directory) *AuthService {
	return &AuthService{
		db:   db,
		dir:  dir,
		jwt:  jwtCfg,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	// Only needed when the email is registered at more than one property.
	TenantID uint `json:"tenant_id"`
}

type LoginResult struct {
	AccessToken     string          `json:"token"`
	AccessExpireAt  time.Time       `json:"expire_at"`
	RefreshToken    string          `json:"refresh_token"`
	RefreshExpireAt time.Time       `json:"refresh_expire_at"`
	Manager         *models.Manager `json:"manager,omitempty"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=6"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *AuthService) Login(ctx context.Context, req *LoginRequest, clientIP, userAgent string) (*LoginResult, error) {
	query := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(req.Email))
	if req.TenantID != 0 {
		query = query.Where("tenant_id = ?", req.TenantID)
	}
	var candidates []models.Manager
	if err := query.Limit(2).Find(&candidates).Error; err != nil {
		return nil, err
	}
	switch len(candidates) {
	case 0:
		return nil, ErrInvalidCredentials
	case 1:
	default:
		return nil, fmt.Errorf("%w: email is registered at several properties, tenant_id is required", ErrValidation)
	}

	manager := &candidates[0]
	if !manager.IsActive {
		return nil, ErrAccountDisabled
	}

	switch manager.AuthType {
	case "ldap":
		if _, err := s.dir.Authenticate(manager.Email, req.Password); err != nil {
			if !errors.Is(err, ErrInvalidCredentials) {
				logger.Warnf("[Auth] Directory sign-in for manager %d failed: %v", manager.ID, err)
			}
			return nil, ErrInvalidCredentials
		}
	default:
		if !utils.CheckPassword(req.Password, manager.Password) {
			return nil, ErrInvalidCredentials
		}
	}

	result, err := s.issue(ctx, s.db.WithContext(ctx), manager, clientIP, userAgent)
	if err != nil {
		return nil, err
	}

	now := s.now()
	manager.LastLogin = &now
	s.db.WithContext(ctx).Model(manager).UpdateColumn("last_login", now)
	result.Manager = manager
	return result, nil
}

// Refresh rotates a refresh token. The presented token is revoked and linked
// to its replacement; presenting it again fails.
func (s *AuthService) Refresh(ctx context.Context, refreshToken, clientIP, userAgent string) (*LoginResult, error) {
	if refreshToken == "" {
		return nil, ErrInvalidCredentials
	}

	var stored models.RefreshToken
	if err := s.db.WithContext(ctx).Where("token_hash = ?", hashRefreshToken(refreshToken)).First(&stored).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	now := s.now()
	if stored.RevokedAt != nil || now.After(stored.ExpiresAt) {
		return nil, ErrInvalidCredentials
	}

	var manager models.Manager
	if err := s.db.WithContext(ctx).Where("tenant_id = ?", stored.TenantID).First(&manager, stored.ManagerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !manager.IsActive {
		return nil, ErrAccountDisabled
	}

	var result *LoginResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = s.issue(ctx, tx, &manager, clientIP, userAgent)
		if err != nil {
			return err
		}
		var replacement models.RefreshToken
		if err := tx.Where("token_hash = ?", hashRefreshToken(result.RefreshToken)).First(&replacement).Error; err != nil {
			return err
		}
		revoke := tx.Model(&models.RefreshToken{}).
			Where("id = ? AND revoked_at IS NULL", stored.ID).
			Updates(map[string]interface{}{"revoked_at": now, "replaced_by_token_id": replacement.ID})
		if revoke.Error != nil {
			return revoke.Error
		}
		if revoke.RowsAffected == 0 {
			return ErrInvalidCredentials
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.db.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("token_hash = ? AND revoked_at IS NULL", hashRefreshToken(refreshToken)).
		Update("revoked_at", s.now()).Error
}

func (s *AuthService) Me(ctx context.Context, tenantID, managerID uint) (*models.Manager, error) {
	var manager models.Manager
	if err := s.db.WithContext(ctx).Where("tenant_id = ?", tenantID).First(&manager, managerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: manager %d", ErrNotFound, managerID)
		}
		return nil, err
	}
	return &manager, nil
}

func (s *AuthService) ChangePassword(ctx context.Context, tenantID, managerID uint, req *ChangePasswordRequest) error {
	manager, err := s.Me(ctx, tenantID, managerID)
	if err != nil {
		return err
	}
	if manager.AuthType == "ldap" {
		return fmt.Errorf("%w: directory accounts change their password in the directory", ErrValidation)
	}
	if !utils.CheckPassword(req.OldPassword, manager.Password) {
		return ErrInvalidCredentials
	}

	hashed, err := hashLocalPassword(req.NewPassword)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(manager).Update("password", hashed).Error
}

// EnsureOwner creates the first property and its owner when no manager
// exists yet.
func (s *AuthService) EnsureOwner(ctx context.Context, cfg *config.OwnerConfig) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Manager{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hashed, err := utils.HashPassword(cfg.Password)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tenant := models.Tenant{Name: cfg.TenantName, IsActive: true}
		if err := tx.Create(&tenant).Error; err != nil {
			return err
		}
		owner := models.Manager{
			TenantID:       tenant.ID,
			Name:           "Owner",
			Email:          normalizeEmail(cfg.Email),
			Role:           "owner",
			ReceivesAlerts: true,
			Password:       hashed,
			AuthType:       "local",
			IsActive:       true,
		}
		if err := tx.Create(&owner).Error; err != nil {
			return err
		}
		logger.Warn().Uint("tenant_id", tenant.ID).Str("email", owner.Email).
			Msg("[Auth] Created initial owner account; change its password")
		return nil
	})
}

func (s *AuthService) issue(ctx context.Context, tx *gorm.DB, manager *models.Manager, clientIP, userAgent string) (*LoginResult, error) {
	accessHours := s.jwt.ExpireHour
	if accessHours <= 0 {
		accessHours = 24
	}
	refreshHours := s.jwt.RefreshExpireHour
	if refreshHours <= 0 {
		refreshHours = 720
	}

	token, err := utils.GenerateToken(manager.ID, manager.TenantID, manager.Role, time.Duration(accessHours)*time.Hour)
	if err != nil {
		return nil, err
	}
	refreshToken, refreshHash, err := generateRefreshToken()
	if err != nil {
		return nil, err
	}

	now := s.now()
	record := models.RefreshToken{
		ManagerID:   manager.ID,
		TenantID:    manager.TenantID,
		TokenHash:   refreshHash,
		ExpiresAt:   now.Add(time.Duration(refreshHours) * time.Hour),
		CreatedByIP: clientIP,
		UserAgent:   truncate(userAgent, 255),
	}
	if err := tx.WithContext(ctx).Create(&record).Error; err != nil {
		return nil, err
	}

	return &LoginResult{
		AccessToken:     token,
		AccessExpireAt:  now.Add(time.Duration(accessHours) * time.Hour),
		RefreshToken:    refreshToken,
		RefreshExpireAt: record.ExpiresAt,
	}, nil
}

func generateRefreshToken() (token string, tokenHash string, err error) {
	randomBytes := make([]byte, 32)
	if _, err = rand.Read(randomBytes); err != nil {
		return "", "", err
	}
	token = hex.EncodeToString(randomBytes)
	return token, hashRefreshToken(token), nil
}

func hashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
