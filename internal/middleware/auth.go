package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/staysignal/backend/internal/utils"
	"github.com/staysignal/backend/pkg/response"
)

// Keys the authenticated identity is stored under on the gin context.
const (
	ContextManagerID = "manager_id"
	ContextTenantID  = "tenant_id"
	ContextRole      = "role"
)

func bearerToken(header string) (string, bool) {
	token, ok := strings.CutPrefix(header, "Bearer ")
	token = strings.TrimSpace(token)
	return token, ok && token != ""
}

// AuthRequired rejects requests without a valid access token. Everything
// after it runs as one manager of one tenant.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Abort(c, response.NewUnauthorized("authorization header required"))
			return
		}
		token, ok := bearerToken(header)
		if !ok {
			response.Abort(c, response.NewUnauthorized("invalid authorization header format"))
			return
		}
		claims, err := utils.ParseToken(token)
		if err != nil {
			response.Abort(c, response.NewUnauthorized("invalid or expired token"))
			return
		}

		c.Set(ContextManagerID, claims.ManagerID)
		c.Set(ContextTenantID, claims.TenantID)
		c.Set(ContextRole, claims.Role)
		c.Next()
	}
}

// RoleRequired lets through only managers holding one of roles.
func RoleRequired(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *gin.Context) {
		if !allowed[GetRole(c)] {
			response.Abort(c, response.NewForbidden("insufficient role"))
			return
		}
		c.Next()
	}
}

func fromContext[T any](c *gin.Context, key string) T {
	v, _ := c.Get(key)
	t, _ := v.(T)
	return t
}

func GetTenantID(c *gin.Context) uint  { return fromContext[uint](c, ContextTenantID) }
func GetManagerID(c *gin.Context) uint { return fromContext[uint](c, ContextManagerID) }
func GetRole(c *gin.Context) string    { return fromContext[string](c, ContextRole) }

// ManagerIDPtr is the acting manager for audit rows, nil when anonymous.
func ManagerIDPtr(c *gin.Context) *uint {
	if id := GetManagerID(c); id > 0 {
		return &id
	}
	return nil
}
