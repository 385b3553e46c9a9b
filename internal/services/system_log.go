package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/staysignal/backend/internal/models"
	"github.com/staysignal/backend/internal/store"
	"github.com/staysignal/backend/pkg/logger"
)

const (
	LogLevelInfo    = "info"
	LogLevelWarning = "warning"
	LogLevelError   = "error"
)

// AuditEntry describes one manager decision or background action.
type AuditEntry struct {
	Module    string
	Action    string
	Message   string
	ManagerID *uint
	EntityID  *uint
	IP        string
	Extra     interface{}
}

// AuditLogger writes the tenant audit trail. Writes are best-effort.
type AuditLogger struct {
	store store.Store
}

func NewAuditLogger(st store.Store) *AuditLogger {
	return &AuditLogger{store: st}
}

func (a *AuditLogger) Info(ctx context.Context, tenantID uint, entry AuditEntry) {
	a.write(ctx, tenantID, LogLevelInfo, entry)
}

func (a *AuditLogger) Warning(ctx context.Context, tenantID uint, entry AuditEntry) {
	a.write(ctx, tenantID, LogLevelWarning, entry)
}

func (a *AuditLogger) Error(ctx context.Context, tenantID uint, entry AuditEntry) {
	a.write(ctx, tenantID, LogLevelError, entry)
}

func (a *AuditLogger) write(ctx context.Context, tenantID uint, level string, entry AuditEntry) {
	if a == nil || a.store == nil {
		return
	}

	var extraStr string
	if entry.Extra != nil {
		if b, err := json.Marshal(entry.Extra); err == nil {
			extraStr = string(b)
		}
	}

	row := &models.SystemLog{
		Level:     level,
		Module:    entry.Module,
		Action:    entry.Action,
		Message:   entry.Message,
		ManagerID: entry.ManagerID,
		EntityID:  entry.EntityID,
		IP:        entry.IP,
		Extra:     extraStr,
		CreatedAt: time.Now().UTC(),
	}
	if err := a.store.CreateSystemLog(ctx, tenantID, row); err != nil {
		logger.Warnf("[Audit] Failed to write %s/%s for tenant %d: %v", entry.Module, entry.Action, tenantID, err)
	}
}

func (a *AuditLogger) List(ctx context.Context, tenantID uint, module string, limit int) ([]models.SystemLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return a.store.ListSystemLogs(ctx, tenantID, module, limit)
}

func uintPtr(v uint) *uint {
	return &v
}
