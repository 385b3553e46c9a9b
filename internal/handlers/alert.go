package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/staysignal/backend/internal/middleware"
	"github.com/staysignal/backend/internal/services"
	"github.com/staysignal/backend/pkg/response"
)

type AlertHandler struct {
	alerts *services.AlertService
}

func NewAlertHandler(alerts *services.AlertService) *AlertHandler {
	return &AlertHandler{alerts: alerts}
}

// Active runs the detector now without notifying anyone.
func (h *AlertHandler) Active(c *gin.Context) {
	alerts, err := h.alerts.Detect(c.Request.Context(), middleware.GetTenantID(c), nowFunc())
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"items": alerts, "total": len(alerts)})
}

// History lists alerts that were logged and pushed.
func (h *AlertHandler) History(c *gin.Context) {
	logs, err := h.alerts.History(c.Request.Context(), middleware.GetTenantID(c), queryLimit(c, 50))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"items": logs, "total": len(logs)})
}
