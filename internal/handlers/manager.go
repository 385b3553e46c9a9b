package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/staysignal/backend/internal/middleware"
	"github.com/staysignal/backend/internal/services"
	"github.com/staysignal/backend/pkg/response"
)

// ManagerHandler manages a property's staff accounts.
type ManagerHandler struct {
	managers *services.ManagerService
}

func NewManagerHandler(svc *services.ManagerService) *ManagerHandler {
	return &ManagerHandler{managers: svc}
}

func (h *ManagerHandler) List(c *gin.Context)   { listResource(h.managers.List, nil)(c) }
func (h *ManagerHandler) Create(c *gin.Context) { createResource(h.managers.Create)(c) }
func (h *ManagerHandler) Update(c *gin.Context) { updateResource(h.managers.Update)(c) }

// Delete passes the caller along so nobody can remove their own account.
func (h *ManagerHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	err := h.managers.Delete(c.Request.Context(), middleware.GetTenantID(c), middleware.GetManagerID(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, nil)
}
