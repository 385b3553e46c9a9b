package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/staysignal/backend/internal/middleware"
	"github.com/staysignal/backend/internal/models"
	"github.com/staysignal/backend/internal/services"
	"github.com/staysignal/backend/pkg/response"
)

type ReportHandler struct {
	synthesizer *services.Synthesizer
	digests     *services.DigestService
	recovery    *services.RecoveryService
}

func NewReportHandler(synthesizer *services.Synthesizer, digests *services.DigestService, recovery *services.RecoveryService) *ReportHandler {
	return &ReportHandler{synthesizer: synthesizer, digests: digests, recovery: recovery}
}

// Synthesize builds a morning, weekly or critical report on demand. Nothing
// is stored or sent.
func (h *ReportHandler) Synthesize(c *gin.Context) {
	payload, err := h.synthesizer.Synthesize(c.Request.Context(), middleware.GetTenantID(c), c.Param("type"), nowFunc())
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, payload)
}

// List returns stored digests, newest first.
func (h *ReportHandler) List(c *gin.Context) {
	reportType := c.Query("type")
	switch reportType {
	case "", models.ReportTypeMorning, models.ReportTypeWeekly, models.ReportTypeCritical:
	default:
		response.BadRequest(c, "unknown report type")
		return
	}

	reports, err := h.digests.List(c.Request.Context(), middleware.GetTenantID(c), reportType, queryLimit(c, 30))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"items": reports, "total": len(reports)})
}

func (h *ReportHandler) Resend(c *gin.Context) {
	report, err := h.digests.Resend(c.Request.Context(), middleware.GetTenantID(c), c.Param("type"), c.Param("date"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, report)
}

type recoveryPlanRequest struct {
	Platform     string      `json:"platform"`
	Distribution map[int]int `json:"distribution"`
	TotalReviews *int        `json:"total_reviews"`
	Target       float64     `json:"target"`
}

// RecoveryPlan plans from the posted distribution, or from the latest
// snapshot of the platform when none is given.
func (h *ReportHandler) RecoveryPlan(c *gin.Context) {
	var req recoveryPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()
	tenantID := middleware.GetTenantID(c)

	if req.Distribution == nil {
		if req.Platform == "" {
			response.BadRequest(c, "platform or distribution is required")
			return
		}
		plan, err := h.recovery.PlanForPlatform(ctx, tenantID, req.Platform)
		if err != nil {
			writeError(c, err)
			return
		}
		response.Success(c, plan)
		return
	}

	total := 0
	if req.TotalReviews != nil {
		total = *req.TotalReviews
	} else {
		for _, n := range req.Distribution {
			total += n
		}
	}
	plan, err := h.recovery.PlanFromDistribution(ctx, tenantID, req.Distribution, total, req.Target)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, services.PlatformRecovery{Platform: req.Platform, Plan: plan})
}
