package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/staysignal/backend/internal/middleware"
	"github.com/staysignal/backend/internal/services"
	"github.com/staysignal/backend/pkg/response"
)

type SettingsHandler struct {
	settings *services.TenantSettingsService
}

func NewSettingsHandler(settings *services.TenantSettingsService) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

func (h *SettingsHandler) Get(c *gin.Context) {
	response.Success(c, h.settings.Effective(c.Request.Context(), middleware.GetTenantID(c)))
}

type updateSettingsRequest struct {
	Settings map[string]string `json:"settings" binding:"required"`
}

// Update applies every override or none: all values are validated first.
func (h *SettingsHandler) Update(c *gin.Context) {
	var req updateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()
	tenantID := middleware.GetTenantID(c)

	for key, value := range req.Settings {
		if err := h.settings.Validate(key, value); err != nil {
			writeError(c, err)
			return
		}
	}
	for key, value := range req.Settings {
		if err := h.settings.Update(ctx, tenantID, key, value); err != nil {
			writeError(c, err)
			return
		}
	}
	response.Success(c, h.settings.Effective(ctx, tenantID))
}
