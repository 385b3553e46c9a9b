package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/staysignal/backend/internal/config"
	"github.com/staysignal/backend/internal/models"
	"github.com/staysignal/backend/internal/store"
	"github.com/staysignal/backend/pkg/logger"
)

// TenantSettingsService resolves per-tenant overrides on top of config defaults.
type TenantSettingsService struct {
	store store.Store
	cfg   *config.Config
}

func NewTenantSettingsService(st store.Store, cfg *config.Config) *TenantSettingsService {
	return &TenantSettingsService{store: st, cfg: cfg}
}

func (s *TenantSettingsService) Get(ctx context.Context, tenantID uint, key string) (string, bool) {
	value, ok, err := s.store.GetSetting(ctx, tenantID, key)
	if err != nil {
		logger.Warnf("[Settings] Failed to read %s for tenant %d: %v", key, tenantID, err)
		return "", false
	}
	return value, ok
}

func (s *TenantSettingsService) Set(ctx context.Context, tenantID uint, key, value, valueType string) error {
	return s.store.SetSetting(ctx, tenantID, key, value, valueType)
}

func (s *TenantSettingsService) getBool(ctx context.Context, tenantID uint, key string, def bool) bool {
	value, ok := s.Get(ctx, tenantID, key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return def
	}
	return b
}

// SLAPolicy returns the triage policy with the tenant's high-impact categories.
func (s *TenantSettingsService) SLAPolicy(ctx context.Context, tenantID uint) SLAPolicy {
	policy := NewSLAPolicy(&s.cfg.Triage)
	if value, ok := s.Get(ctx, tenantID, models.SettingHighImpactCategories); ok {
		var categories []string
		if err := json.Unmarshal([]byte(value), &categories); err == nil {
			policy.HighImpact = categories
		} else {
			logger.Warnf("[Settings] Ignoring malformed %s for tenant %d", models.SettingHighImpactCategories, tenantID)
		}
	}
	return policy
}

func (s *TenantSettingsService) RecoveryTarget(ctx context.Context, tenantID uint) float64 {
	if value, ok := s.Get(ctx, tenantID, models.SettingRecoveryTarget); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil && f > 0 && f <= 5 {
			return f
		}
	}
	if tenant, err := s.store.GetTenant(ctx, tenantID); err == nil && tenant.TargetRating > 0 {
		return tenant.TargetRating
	}
	return s.cfg.Recovery.TargetAverage
}

// RecoveryCaps reads a JSON object keyed by star value, e.g. {"4":10,"3":15}.
func (s *TenantSettingsService) RecoveryCaps(ctx context.Context, tenantID uint) map[int]int {
	caps := make(map[int]int, len(s.cfg.Recovery.ConversionCaps))
	for k, v := range s.cfg.Recovery.ConversionCaps {
		caps[k] = v
	}
	if value, ok := s.Get(ctx, tenantID, models.SettingRecoveryCaps); ok {
		var override map[int]int
		if err := json.Unmarshal([]byte(value), &override); err == nil {
			for k, v := range override {
				caps[k] = v
			}
		}
	}
	return caps
}

func (s *TenantSettingsService) AutoDraftEnabled(ctx context.Context, tenantID uint) bool {
	return s.getBool(ctx, tenantID, models.SettingAutoDraftEnabled, s.cfg.Drafting.AutoDraft)
}

func (s *TenantSettingsService) DigestEnabled(ctx context.Context, tenantID uint, reportType string) bool {
	switch reportType {
	case models.ReportTypeMorning:
		return s.getBool(ctx, tenantID, models.SettingMorningDigestEnabled, true)
	case models.ReportTypeWeekly:
		return s.getBool(ctx, tenantID, models.SettingWeeklyDigestEnabled, true)
	default:
		return true
	}
}

// Settings is the effective per-tenant configuration shown to managers.
type Settings struct {
	HighImpactCategories []string    `json:"high_impact_categories"`
	RecoveryTarget       float64     `json:"recovery_target"`
	RecoveryCaps         map[int]int `json:"recovery_caps"`
	AutoDraftEnabled     bool        `json:"auto_draft_enabled"`
	MorningDigestEnabled bool        `json:"morning_digest_enabled"`
	WeeklyDigestEnabled  bool        `json:"weekly_digest_enabled"`
}

func (s *TenantSettingsService) Effective(ctx context.Context, tenantID uint) *Settings {
	return &Settings{
		HighImpactCategories: s.SLAPolicy(ctx, tenantID).HighImpact,
		RecoveryTarget:       s.RecoveryTarget(ctx, tenantID),
		RecoveryCaps:         s.RecoveryCaps(ctx, tenantID),
		AutoDraftEnabled:     s.AutoDraftEnabled(ctx, tenantID),
		MorningDigestEnabled: s.DigestEnabled(ctx, tenantID, models.ReportTypeMorning),
		WeeklyDigestEnabled:  s.DigestEnabled(ctx, tenantID, models.ReportTypeWeekly),
	}
}

// Update validates and stores one override. Values arrive as strings; JSON
// settings are normalised before they are written.
func (s *TenantSettingsService) Update(ctx context.Context, tenantID uint, key, value string) error {
	value, valueType, err := normalizeSetting(key, value)
	if err != nil {
		return err
	}
	return s.Set(ctx, tenantID, key, value, valueType)
}

// Validate reports whether Update would accept the value.
func (s *TenantSettingsService) Validate(key, value string) error {
	_, _, err := normalizeSetting(key, value)
	return err
}

func normalizeSetting(key, value string) (string, string, error) {
	value = strings.TrimSpace(value)
	var valueType string

	switch key {
	case models.SettingHighImpactCategories:
		var categories []string
		if err := json.Unmarshal([]byte(value), &categories); err != nil {
			return "", "", fmt.Errorf("%w: %s must be a JSON array of strings", ErrValidation, key)
		}
		b, _ := json.Marshal(categories)
		value, valueType = string(b), "json"
	case models.SettingRecoveryCaps:
		var caps map[int]int
		if err := json.Unmarshal([]byte(value), &caps); err != nil {
			return "", "", fmt.Errorf("%w: %s must be a JSON object of star to cap", ErrValidation, key)
		}
		for star, limit := range caps {
			if star < 1 || star > 4 || limit < 0 {
				return "", "", fmt.Errorf("%w: %s has an invalid entry %d:%d", ErrValidation, key, star, limit)
			}
		}
		b, _ := json.Marshal(caps)
		value, valueType = string(b), "json"
	case models.SettingRecoveryTarget:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f <= 0 || f > 5 {
			return "", "", fmt.Errorf("%w: %s must be in (0, 5]", ErrValidation, key)
		}
		valueType = "float"
	case models.SettingAutoDraftEnabled, models.SettingMorningDigestEnabled, models.SettingWeeklyDigestEnabled:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return "", "", fmt.Errorf("%w: %s must be a boolean", ErrValidation, key)
		}
		value, valueType = strconv.FormatBool(b), "bool"
	default:
		return "", "", fmt.Errorf("%w: unknown setting %q", ErrValidation, key)
	}

	return value, valueType, nil
}
