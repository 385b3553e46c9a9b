package models

import (
	"path/filepath"
	"testing"

	"github.com/staysignal/backend/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(&config.DatabaseConfig{Driver: "oracle", DSN: "x"})
	assert.ErrorContains(t, err, `unsupported database driver "oracle"`)
}

func TestOpenMigrateSeed(t *testing.T) {
	db, err := Open(&config.DatabaseConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "staysignal.db")})
	require.NoError(t, err)
	pool, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })
	assert.Equal(t, 1, pool.Stats().MaxOpenConnections)

	require.NoError(t, Migrate(db))
	require.NoError(t, Migrate(db), "migrations are re-runnable")

	require.NoError(t, Seed(db))
	require.NoError(t, Seed(db))
	var prompts []PromptTemplate
	require.NoError(t, db.Where("is_system = ?", true).Find(&prompts).Error)
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0].Content, "{{review_text}}")
	assert.Nil(t, prompts[0].TenantID)
}
