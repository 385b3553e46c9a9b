package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Helpers for the settings resources (channels, models, prompts) that a
// tenant owns outright. Shared rows with a NULL tenant_id never match.

func findOwned[T any](ctx context.Context, db *gorm.DB, tenantID, id uint, what string) (*T, error) {
	var row T
	err := db.WithContext(ctx).Where("tenant_id = ?", tenantID).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s %d", ErrNotFound, what, id)
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func deleteOwned[T any](ctx context.Context, db *gorm.DB, tenantID, id uint, what string) error {
	res := db.WithContext(ctx).Where("tenant_id = ?", tenantID).Delete(new(T), id)
	switch {
	case res.Error != nil:
		return res.Error
	case res.RowsAffected == 0:
		return fmt.Errorf("%w: %s %d", ErrNotFound, what, id)
	}
	return nil
}

// patch collects the columns a partial update actually sets. Empty strings
// and nil pointers mean "leave as is".
type patch map[string]interface{}

func (p patch) text(col, v string) patch {
	if v != "" {
		p[col] = v
	}
	return p
}

func setIf[V any](p patch, col string, v *V) patch {
	if v != nil {
		p[col] = *v
	}
	return p
}

// clearDefault unsets is_default on the tenant's other rows of a model.
func clearDefault(tx *gorm.DB, model interface{}, tenantID, keepID uint) error {
	return tx.Model(model).
		Where("tenant_id = ? AND is_default = ? AND id <> ?", tenantID, true, keepID).
		Update("is_default", false).Error
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
