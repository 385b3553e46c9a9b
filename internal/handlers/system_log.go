package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/staysignal/backend/internal/middleware"
	"github.com/staysignal/backend/internal/services"
	"github.com/staysignal/backend/pkg/response"
)

type SystemLogHandler struct {
	audit *services.AuditLogger
}

func NewSystemLogHandler(audit *services.AuditLogger) *SystemLogHandler {
	return &SystemLogHandler{audit: audit}
}

// List returns the tenant's audit trail, optionally for one module.
func (h *SystemLogHandler) List(c *gin.Context) {
	logs, err := h.audit.List(c.Request.Context(), middleware.GetTenantID(c), c.Query("module"), queryLimit(c, 50))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"items": logs, "total": len(logs)})
}
