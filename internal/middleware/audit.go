package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/staysignal/backend/internal/services"
)

const (
	auditBodyLimit = 2000
	redacted       = "***"
)

// Body fields whose names contain one of these are never written to the log.
var sensitiveKeys = []string{"password", "apikey", "api_key", "secret", "token", "webhook"}

var auditedMethods = map[string]string{
	http.MethodPost:   "Create",
	http.MethodPut:    "Update",
	http.MethodPatch:  "Update",
	http.MethodDelete: "Delete",
}

// AuditLog writes each mutating request on the group to the tenant's system
// log, with a redacted copy of the body. Use it where the service layer does
// not record its own decisions (settings, channels, models, staff).
func AuditLog(audit *services.AuditLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := auditedMethods[c.Request.Method]; !ok {
			c.Next()
			return
		}
		body := captureBody(c)

		c.Next()

		tenantID := GetTenantID(c)
		if tenantID == 0 {
			return
		}
		status := c.Writer.Status()
		module, action := parseRouteInfo(c.FullPath(), c.Request.Method)
		entry := services.AuditEntry{
			Module:    module,
			Action:    action,
			Message:   formatAuditMessage(GetManagerID(c), c.Request.Method, c.Request.URL.Path, status),
			ManagerID: ManagerIDPtr(c),
			IP:        c.ClientIP(),
			Extra: map[string]interface{}{
				"method": c.Request.Method,
				"path":   c.Request.URL.Path,
				"status": status,
				"body":   body,
			},
		}

		record := audit.Info
		if status >= http.StatusBadRequest {
			record = audit.Warning
		}
		record(c.Request.Context(), tenantID, entry)
	}
}

// captureBody reads the request body, puts it back for the handler and
// returns the redacted, size-capped copy that goes into the log.
func captureBody(c *gin.Context) string {
	if c.Request.Body == nil {
		return ""
	}
	raw, _ := io.ReadAll(c.Request.Body)
	c.Request.Body = io.NopCloser(bytes.NewReader(raw))

	body := maskSensitiveFields(string(raw))
	if len(body) > auditBodyLimit {
		body = body[:auditBodyLimit] + "...[truncated]"
	}
	return body
}

// parseRouteInfo names the module after the first path segment under /api:
// "/api/llm-configs/:id" with PUT is ("Llm Configs", "Update").
func parseRouteInfo(fullPath, method string) (module, action string) {
	segment, _, _ := strings.Cut(strings.TrimPrefix(fullPath, "/api/"), "/")
	words := strings.FieldsFunc(segment, func(r rune) bool { return r == '-' || r == '_' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	module = strings.Join(words, " ")
	if module == "" {
		module = "unknown"
	}

	action, ok := auditedMethods[method]
	if !ok {
		action = method
	}
	return module, action
}

func formatAuditMessage(managerID uint, method, path string, status int) string {
	outcome := "OK"
	if status < 200 || status >= 300 {
		outcome = "Failed"
	}
	return fmt.Sprintf("[Audit] manager %d %s %s: %s", managerID, method, path, outcome)
}

func isSensitive(key string) bool {
	key = strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(key, s) {
			return true
		}
	}
	return false
}

// maskSensitiveFields replaces the string values of credential-like keys at
// any depth. Bodies that are not JSON are dropped rather than logged raw.
func maskSensitiveFields(body string) string {
	if strings.TrimSpace(body) == "" {
		return body
	}
	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return "[unparsed body omitted]"
	}
	out, err := json.Marshal(redact(doc))
	if err != nil {
		return "[unparsed body omitted]"
	}
	return string(out)
}

func redact(v interface{}) interface{} {
	switch node := v.(type) {
	case map[string]interface{}:
		for k, child := range node {
			if _, isString := child.(string); isString && isSensitive(k) {
				node[k] = redacted
				continue
			}
			node[k] = redact(child)
		}
	case []interface{}:
		for i := range node {
			node[i] = redact(node[i])
		}
	}
	return v
}
