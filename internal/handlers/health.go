package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/staysignal/backend/internal/services"
	"gorm.io/gorm"
)

const healthProbeTimeout = 2 * time.Second

type componentHealth struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

// HealthHandler answers load-balancer probes. The database is the only
// hard dependency; the queue is reported for operators.
type HealthHandler struct {
	db      *gorm.DB
	queue   services.TaskQueue
	started time.Time
}

func NewHealthHandler(db *gorm.DB, queue services.TaskQueue) *HealthHandler {
	return &HealthHandler{db: db, queue: queue, started: nowFunc()}
}

func (h *HealthHandler) pingDB(ctx context.Context) error {
	sqlDB, err := h.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (h *HealthHandler) queueMode() string {
	if h.queue != nil && h.queue.IsAsync() {
		return "async"
	}
	return "sync"
}

func (h *HealthHandler) CheckHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthProbeTimeout)
	defer cancel()

	began := time.Now()
	db := componentHealth{Status: "ok"}
	if err := h.pingDB(ctx); err != nil {
		db.Status, db.Error = "down", err.Error()
	}
	db.LatencyMS = time.Since(began).Milliseconds()

	status, overall := http.StatusOK, "healthy"
	if db.Error != "" {
		status, overall = http.StatusServiceUnavailable, "unhealthy"
	}
	c.JSON(status, gin.H{
		"status":     overall,
		"service":    "staysignal",
		"uptime_s":   int64(nowFunc().Sub(h.started).Seconds()),
		"queue_mode": h.queueMode(),
		"database":   db,
	})
}
