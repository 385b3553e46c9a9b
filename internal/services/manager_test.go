package services

import (
	"context"
	"testing"

	"github.com/staysignal/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerService_CreateAndScope(t *testing.T) {
	st, db := newTestDB(t)
	harbor := seedTenant(t, db, "harbor")
	dunes := seedTenant(t, db, "dunes")
	svc := NewManagerService(db)
	ctx := context.Background()

	off := false
	m, err := svc.Create(ctx, harbor.ID, &CreateManagerRequest{
		Name: "Night Manager", Email: "Night@Harbor.example", Role: "duty_manager",
		Password: "pw1234", ReceivesAlerts: &off,
	})
	require.NoError(t, err)
	assert.Equal(t, "night@harbor.example", m.Email)
	assert.NotEqual(t, "pw1234", m.Password)

	_, err = svc.Create(ctx, harbor.ID, &CreateManagerRequest{Name: "Dup", Email: "night@harbor.example", Role: "duty_manager", Password: "pw1234"})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = svc.Create(ctx, harbor.ID, &CreateManagerRequest{Name: "NoPw", Email: "nopw@harbor.example", Role: "duty_manager"})
	assert.ErrorIs(t, err, ErrValidation)

	dir, err := svc.Create(ctx, harbor.ID, &CreateManagerRequest{Name: "GM", Email: "gm@harbor.example", Role: "general_manager", AuthType: "ldap"})
	require.NoError(t, err)
	assert.Empty(t, dir.Password)

	contacts, err := st.ListAlertContacts(ctx, harbor.ID)
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, "gm@harbor.example", contacts[0].Email)

	_, err = svc.Get(ctx, dunes.ID, m.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManagerService_DeactivateRevokesSessions(t *testing.T) {
	auth, db := newTestAuth(t)
	harbor := seedTenant(t, db, "harbor")
	svc := NewManagerService(db)
	ctx := context.Background()

	m, err := svc.Create(ctx, harbor.ID, &CreateManagerRequest{Name: "Relief", Email: "relief@harbor.example", Role: "front_desk", Password: "pw1234"})
	require.NoError(t, err)
	login, err := auth.Login(ctx, &LoginRequest{Email: "relief@harbor.example", Password: "pw1234"}, "", "")
	require.NoError(t, err)

	off := false
	updated, err := svc.Update(ctx, harbor.ID, m.ID, &UpdateManagerRequest{IsActive: &off})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)

	var token models.RefreshToken
	require.NoError(t, db.Where("manager_id = ?", m.ID).First(&token).Error)
	assert.NotNil(t, token.RevokedAt)

	_, err = auth.Refresh(ctx, login.RefreshToken, "", "")
	assert.Error(t, err)
}

func TestManagerService_DeleteRules(t *testing.T) {
	_, db := newTestDB(t)
	harbor := seedTenant(t, db, "harbor")
	svc := NewManagerService(db)
	ctx := context.Background()

	gm, err := svc.Create(ctx, harbor.ID, &CreateManagerRequest{Name: "GM", Email: "gm@harbor.example", Role: "general_manager", Password: "pw1234"})
	require.NoError(t, err)
	duty, err := svc.Create(ctx, harbor.ID, &CreateManagerRequest{Name: "Duty", Email: "duty@harbor.example", Role: "duty_manager", Password: "pw1234"})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ctx, harbor.ID, gm.ID, gm.ID), ErrValidation)
	require.NoError(t, svc.Delete(ctx, harbor.ID, gm.ID, duty.ID))
	assert.ErrorIs(t, svc.Delete(ctx, harbor.ID, gm.ID, duty.ID), ErrNotFound)
}
