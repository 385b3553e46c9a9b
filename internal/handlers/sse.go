package handlers

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"github.com/staysignal/backend/internal/services"
	"github.com/staysignal/backend/internal/utils"
	"github.com/staysignal/backend/pkg/logger"
	"github.com/staysignal/backend/pkg/response"
)

const (
	sseKeepAlive  = 25 * time.Second
	sseRetryMilli = 5000
)

// SSEHandler streams a tenant's alerts, SLA breaches and status changes to
// the dashboard.
type SSEHandler struct {
	hub       *services.SSEHub
	keepAlive time.Duration
}

func NewSSEHandler(hub *services.SSEHub) *SSEHandler {
	return &SSEHandler{hub: hub, keepAlive: sseKeepAlive}
}

// bearerOrQuery reads the access token. Browsers' EventSource cannot set
// headers, so ?token= is accepted here and nowhere else.
func bearerOrQuery(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

func (h *SSEHandler) StreamEvents(c *gin.Context) {
	token := bearerOrQuery(c)
	if token == "" {
		response.Unauthorized(c, "missing access token")
		return
	}
	claims, err := utils.ParseToken(token)
	if err != nil {
		response.Unauthorized(c, "invalid or expired token")
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	sub := h.hub.Subscribe(claims.TenantID)
	defer h.hub.Unsubscribe(sub)

	log := logger.Tenant(claims.TenantID).With().Str("subscription", sub.ID).Uint("manager_id", claims.ManagerID).Logger()
	log.Info().Int("connected", h.hub.ClientCount()).Msg("[SSE] Dashboard connected")

	c.Render(-1, sse.Event{Event: "ready", Retry: sseRetryMilli, Data: gin.H{"subscription": sub.ID}})
	c.Writer.Flush()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-sub.Events:
			if !ok {
				return false
			}
			c.Render(-1, sse.Event{
				Id:    strconv.FormatUint(ev.Seq, 10),
				Event: string(ev.Kind),
				Data:  ev.NotificationEvent,
			})
			return true
		case <-ticker.C:
			_, err := io.WriteString(w, ": keep-alive\n\n")
			return err == nil
		case <-c.Request.Context().Done():
			return false
		}
	})

	log.Info().Int64("dropped", sub.Dropped()).Msg("[SSE] Dashboard disconnected")
}
