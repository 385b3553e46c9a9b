package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/staysignal/backend/internal/middleware"
	"github.com/staysignal/backend/internal/services"
	"github.com/staysignal/backend/pkg/response"
)

// AuthHandler serves sign-in, token rotation and the caller's own account.
type AuthHandler struct {
	auth        *services.AuthService
	ldapEnabled bool
}

func NewAuthHandler(auth *services.AuthService, ldapEnabled bool) *AuthHandler {
	return &AuthHandler{auth: auth, ldapEnabled: ldapEnabled}
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

func bindBody[T any](c *gin.Context) (*T, bool) {
	var req T
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return nil, false
	}
	return &req, true
}

func reply(c *gin.Context, data interface{}, err error) {
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, data)
}

// GetAuthConfig tells the sign-in page whether to offer directory accounts.
func (h *AuthHandler) GetAuthConfig(c *gin.Context) {
	response.Success(c, gin.H{"ldap_enabled": h.ldapEnabled})
}

func (h *AuthHandler) Login(c *gin.Context) {
	req, ok := bindBody[services.LoginRequest](c)
	if !ok {
		return
	}
	result, err := h.auth.Login(c.Request.Context(), req, c.ClientIP(), c.Request.UserAgent())
	reply(c, result, err)
}

// Refresh trades a refresh token for a new pair; the old one stops working.
func (h *AuthHandler) Refresh(c *gin.Context) {
	req, ok := bindBody[refreshRequest](c)
	if !ok {
		return
	}
	result, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken, c.ClientIP(), c.Request.UserAgent())
	reply(c, result, err)
}

// Logout always succeeds from the client's point of view, with or without
// a token in the body.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req refreshRequest
	_ = c.ShouldBindJSON(&req)
	reply(c, nil, h.auth.Logout(c.Request.Context(), req.RefreshToken))
}

func (h *AuthHandler) Me(c *gin.Context) {
	manager, err := h.auth.Me(c.Request.Context(), middleware.GetTenantID(c), middleware.GetManagerID(c))
	reply(c, manager, err)
}

func (h *AuthHandler) ChangePassword(c *gin.Context) {
	req, ok := bindBody[services.ChangePasswordRequest](c)
	if !ok {
		return
	}
	err := h.auth.ChangePassword(c.Request.Context(), middleware.GetTenantID(c), middleware.GetManagerID(c), req)
	reply(c, nil, err)
}
