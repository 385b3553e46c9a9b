package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/staysignal/backend/internal/middleware"
	"github.com/staysignal/backend/internal/services"
	"github.com/staysignal/backend/pkg/response"
)

// ReviewHandler covers platform data ingestion and the per-review
// response endpoints.
type ReviewHandler struct {
	ingest    *services.IngestService
	responses *services.ResponseService
}

func NewReviewHandler(ingest *services.IngestService, responses *services.ResponseService) *ReviewHandler {
	return &ReviewHandler{ingest: ingest, responses: responses}
}

func (h *ReviewHandler) Ingest(c *gin.Context) {
	var in services.ReviewInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	review, created, err := h.ingest.IngestReview(c.Request.Context(), middleware.GetTenantID(c), &in)
	if err != nil {
		writeError(c, err)
		return
	}
	if created {
		response.Created(c, review)
		return
	}
	response.Success(c, review)
}

func (h *ReviewHandler) IngestSnapshot(c *gin.Context) {
	var in services.SnapshotInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	snap, err := h.ingest.IngestSnapshot(c.Request.Context(), middleware.GetTenantID(c), &in)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Created(c, snap)
}

// GenerateResponse drafts the first reply for a review.
func (h *ReviewHandler) GenerateResponse(c *gin.Context) {
	reviewID, ok := parseID(c, "id")
	if !ok {
		return
	}

	resp, err := h.responses.GenerateDraft(c.Request.Context(), middleware.GetTenantID(c), reviewID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Created(c, resp)
}

func (h *ReviewHandler) ListResponses(c *gin.Context) {
	reviewID, ok := parseID(c, "id")
	if !ok {
		return
	}

	items, err := h.responses.ListByReview(c.Request.Context(), middleware.GetTenantID(c), reviewID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"items": items, "total": len(items)})
}

// ResponseHandler records manager decisions on drafted replies.
type ResponseHandler struct {
	responses *services.ResponseService
}

func NewResponseHandler(responses *services.ResponseService) *ResponseHandler {
	return &ResponseHandler{responses: responses}
}

type approveRequest struct {
	Notes string `json:"notes"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

type editTextRequest struct {
	Text string `json:"text" binding:"required"`
}

func (h *ResponseHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	resp, err := h.responses.Get(c.Request.Context(), middleware.GetTenantID(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, resp)
}

func (h *ResponseHandler) Approve(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req approveRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.responses.Approve(c.Request.Context(), middleware.GetTenantID(c), id, middleware.GetManagerID(c), req.Notes)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, resp)
}

// Reject answers 202 when the rejection is stored but no new draft could
// be produced, so clients can retry generation without re-rejecting.
func (h *ResponseHandler) Reject(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		response.BadRequest(c, err.Error())
		return
	}

	outcome, err := h.responses.Reject(c.Request.Context(), middleware.GetTenantID(c), id, req.Reason, middleware.ManagerIDPtr(c))
	if err != nil {
		if errors.Is(err, services.ErrRegenerationFailed) && outcome != nil {
			response.Partial(c, err.Error(), outcome)
			return
		}
		writeError(c, err)
		return
	}
	response.Success(c, outcome)
}

func (h *ResponseHandler) MarkPosted(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	resp, err := h.responses.MarkPosted(c.Request.Context(), middleware.GetTenantID(c), id, middleware.ManagerIDPtr(c))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, resp)
}

func (h *ResponseHandler) EditText(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req editTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.responses.EditText(c.Request.Context(), middleware.GetTenantID(c), id, req.Text, middleware.ManagerIDPtr(c))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, resp)
}
