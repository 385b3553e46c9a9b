package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/staysignal/backend/internal/middleware"
	"github.com/staysignal/backend/internal/models"
	"github.com/staysignal/backend/internal/services"
	"github.com/staysignal/backend/pkg/response"
)

type FeedbackHandler struct {
	feedback *services.FeedbackService
}

func NewFeedbackHandler(feedback *services.FeedbackService) *FeedbackHandler {
	return &FeedbackHandler{feedback: feedback}
}

// Submit takes a guest's QR form. The tenant comes from the path since the
// guest is not authenticated.
func (h *FeedbackHandler) Submit(c *gin.Context) {
	tenantID, ok := parseID(c, "tenant_id")
	if !ok {
		return
	}

	var sub services.FeedbackSubmission
	if err := c.ShouldBindJSON(&sub); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	item, err := h.feedback.Submit(c.Request.Context(), tenantID, &sub)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Created(c, gin.H{"id": item.ID, "status": item.Status})
}

// Queue lists open items, most urgent first.
func (h *FeedbackHandler) Queue(c *gin.Context) {
	entries, err := h.feedback.Queue(c.Request.Context(), middleware.GetTenantID(c), nowFunc())
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"items": entries, "total": len(entries)})
}

func (h *FeedbackHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	entry, err := h.feedback.Get(c.Request.Context(), middleware.GetTenantID(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, entry)
}

func (h *FeedbackHandler) Acknowledge(c *gin.Context) {
	h.transition(c, models.FeedbackStatusAcknowledged)
}

func (h *FeedbackHandler) Resolve(c *gin.Context) {
	h.transition(c, models.FeedbackStatusResolved)
}

func (h *FeedbackHandler) transition(c *gin.Context, target models.FeedbackStatus) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	item, err := h.feedback.Transition(c.Request.Context(), middleware.GetTenantID(c), id, target, middleware.ManagerIDPtr(c))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, item)
}
