package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/staysignal/backend/internal/middleware"
	"github.com/staysignal/backend/internal/services"
	"github.com/staysignal/backend/pkg/response"
)

// IMBotHandler manages the chat webhooks alerts and digests are pushed to.
type IMBotHandler struct {
	bots *services.IMBotService
}

func NewIMBotHandler(svc *services.IMBotService) *IMBotHandler {
	return &IMBotHandler{bots: svc}
}

// List pages and filters, so it does not use listResource.
func (h *IMBotHandler) List(c *gin.Context) {
	var req services.IMBotListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	page, err := h.bots.List(c.Request.Context(), middleware.GetTenantID(c), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, page)
}

func (h *IMBotHandler) Create(c *gin.Context) { createResource(h.bots.Create)(c) }
func (h *IMBotHandler) Update(c *gin.Context) { updateResource(h.bots.Update)(c) }
func (h *IMBotHandler) Delete(c *gin.Context) { deleteResource(h.bots.Delete)(c) }

// LLMConfigHandler manages the drafting models; keys are write-only.
type LLMConfigHandler struct {
	configs *services.LLMConfigService
}

func NewLLMConfigHandler(svc *services.LLMConfigService) *LLMConfigHandler {
	return &LLMConfigHandler{configs: svc}
}

func (h *LLMConfigHandler) List(c *gin.Context)   { listResource(h.configs.List, nil)(c) }
func (h *LLMConfigHandler) Create(c *gin.Context) { createResource(h.configs.Create)(c) }
func (h *LLMConfigHandler) Update(c *gin.Context) { updateResource(h.configs.Update)(c) }
func (h *LLMConfigHandler) Delete(c *gin.Context) { deleteResource(h.configs.Delete)(c) }

type PromptHandler struct {
	prompts *services.PromptService
}

func NewPromptHandler(svc *services.PromptService) *PromptHandler {
	return &PromptHandler{prompts: svc}
}

// List also returns the placeholders a template may use.
func (h *PromptHandler) List(c *gin.Context) {
	listResource(h.prompts.List, gin.H{"variables": services.PromptVariables})(c)
}

func (h *PromptHandler) Create(c *gin.Context) { createResource(h.prompts.Create)(c) }
func (h *PromptHandler) Update(c *gin.Context) { updateResource(h.prompts.Update)(c) }
func (h *PromptHandler) Delete(c *gin.Context) { deleteResource(h.prompts.Delete)(c) }
