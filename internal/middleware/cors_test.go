package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func corsRouter(origins ...string) *gin.Engine {
	router := gin.New()
	router.Use(CORS(origins...))
	router.POST("/api/public/tenants/:tenant_id/feedback", func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})
	return router
}

func TestCORS_Origins(t *testing.T) {
	tests := []struct {
		name    string
		origins []string
		origin  string
		allowed bool
	}{
		{"any origin when unset", nil, "https://www.seaside-inn.example", true},
		{"listed origin", []string{"https://ops.staysignal.example"}, "https://ops.staysignal.example", true},
		{"unlisted origin", []string{"https://ops.staysignal.example"}, "https://evil.example", false},
		{"wildcard subdomain", []string{"https://*.harbor-hotels.example"}, "https://lisbon.harbor-hotels.example", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req, _ := http.NewRequest(http.MethodPost, "/api/public/tenants/1/feedback", nil)
			req.Header.Set("Origin", tt.origin)
			corsRouter(tt.origins...).ServeHTTP(w, req)

			if tt.allowed {
				assert.Equal(t, http.StatusCreated, w.Code)
				assert.Equal(t, tt.origin, w.Header().Get("Access-Control-Allow-Origin"))
				assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
			} else {
				assert.Equal(t, http.StatusForbidden, w.Code)
				assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
			}
		})
	}
}

func TestCORS_Preflight(t *testing.T) {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodOptions, "/api/public/tenants/1/feedback", nil)
	req.Header.Set("Origin", "https://www.seaside-inn.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type, X-Request-ID")
	corsRouter().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "X-Request-Id")
}

func TestCORS_ExposesRequestIDAndRetryAfter(t *testing.T) {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/api/public/tenants/1/feedback", nil)
	req.Header.Set("Origin", "https://www.seaside-inn.example")
	corsRouter().ServeHTTP(w, req)

	exposed := w.Header().Get("Access-Control-Expose-Headers")
	assert.Contains(t, exposed, "X-Request-Id")
	assert.Contains(t, exposed, "Retry-After")
}
