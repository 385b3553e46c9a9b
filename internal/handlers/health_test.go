package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func probe(t *testing.T, h *HealthHandler) (int, map[string]interface{}) {
	t.Helper()
	r := gin.New()
	r.GET("/health", h.CheckHealth)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func TestCheckHealth(t *testing.T) {
	ts := newTestServer(t)

	code, body := probe(t, NewHealthHandler(ts.db, discardQueue{}))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "async", body["queue_mode"])
	assert.Equal(t, "ok", body["database"].(map[string]interface{})["status"])

	sqlDB, err := ts.db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	code, body = probe(t, NewHealthHandler(ts.db, nil))
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", body["status"])
	assert.Equal(t, "sync", body["queue_mode"])
	assert.NotEmpty(t, body["database"].(map[string]interface{})["error"])
}
