package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/staysignal/backend/internal/models"
	"github.com/staysignal/backend/internal/services"
	"github.com/staysignal/backend/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestMaskSensitiveFields(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"api key", `{"name":"gpt","api_key":"sk-123"}`, `{"api_key":"***","name":"gpt"}`},
		{"camel case", `{"apiKey": "sk-123"}`, `{"apiKey":"***"}`},
		{"webhook url", `{"webhook_url":"https://hooks.example/abc","secret":"s3"}`, `{"secret":"***","webhook_url":"***"}`},
		{"nested", `{"channel":{"Secret":"s3","name":"ops"},"bots":[{"token":"t"}]}`, `{"bots":[{"token":"***"}],"channel":{"Secret":"***","name":"ops"}}`},
		{"word inside a value", `{"note":"guest lost a token"}`, `{"note":"guest lost a token"}`},
		{"non string value", `{"token_ttl":24}`, `{"token_ttl":24}`},
		{"nothing sensitive", `{"rating":2}`, `{"rating":2}`},
		{"not json", `password=hunter2`, `[unparsed body omitted]`},
		{"empty", ``, ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, maskSensitiveFields(tt.in))
		})
	}
}

func TestParseRouteInfo(t *testing.T) {
	tests := []struct {
		path, method   string
		module, action string
	}{
		{"/api/llm-configs/:id", http.MethodPut, "Llm Configs", "Update"},
		{"/api/settings", http.MethodPatch, "Settings", "Update"},
		{"/api/im-bots", http.MethodPost, "Im Bots", "Create"},
		{"/api/im-bots/:id", http.MethodDelete, "Im Bots", "Delete"},
		{"", http.MethodPost, "unknown", "Create"},
	}

	for _, tt := range tests {
		module, action := parseRouteInfo(tt.path, tt.method)
		assert.Equal(t, tt.module, module, tt.path)
		assert.Equal(t, tt.action, action, tt.path)
	}
}

func TestFormatAuditMessage(t *testing.T) {
	assert.Equal(t, "[Audit] manager 4 PUT /api/settings: OK", formatAuditMessage(4, "PUT", "/api/settings", 200))
	assert.Equal(t, "[Audit] manager 4 PUT /api/settings: Failed", formatAuditMessage(4, "PUT", "/api/settings", 400))
}

func newAuditStore(t *testing.T) *store.GormStore {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, models.Migrate(db))
	return store.NewGormStore(db)
}

func TestAuditLog_RecordsTenantWrites(t *testing.T) {
	st := newAuditStore(t)
	audit := services.NewAuditLogger(st)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(ContextTenantID, uint(7))
		c.Set(ContextManagerID, uint(2))
		c.Next()
	})
	router.Use(AuditLog(audit))
	router.PUT("/api/llm-configs/:id", func(c *gin.Context) {
		var req map[string]string
		if err := c.ShouldBindJSON(&req); err != nil || req["api_key"] != "sk-live" {
			c.Status(http.StatusBadRequest)
			return
		}
		c.JSON(200, gin.H{"status": "ok"})
	})
	router.GET("/api/llm-configs", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("PUT", "/api/llm-configs/1", strings.NewReader(`{"api_key":"sk-live"}`))
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/api/llm-configs", nil)
	router.ServeHTTP(w, req)

	logs, err := audit.List(context.Background(), 7, "", 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "Llm Configs", logs[0].Module)
	assert.Equal(t, "Update", logs[0].Action)
	assert.Equal(t, services.LogLevelInfo, logs[0].Level)
	require.NotNil(t, logs[0].ManagerID)
	assert.Equal(t, uint(2), *logs[0].ManagerID)
	assert.Contains(t, logs[0].Extra, `\"api_key\":\"***\"`)
	assert.NotContains(t, logs[0].Extra, "sk-live")
}

func TestAuditLog_SkipsAnonymousRequests(t *testing.T) {
	st := newAuditStore(t)
	audit := services.NewAuditLogger(st)

	router := gin.New()
	router.Use(AuditLog(audit))
	router.POST("/api/public/feedback", func(c *gin.Context) {
		c.JSON(201, gin.H{"status": "ok"})
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/public/feedback", strings.NewReader(`{}`))
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	logs, err := audit.List(context.Background(), 0, "", 10)
	require.NoError(t, err)
	assert.Empty(t, logs)
}
