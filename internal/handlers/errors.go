package handlers

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/staysignal/backend/internal/services"
	"github.com/staysignal/backend/pkg/logger"
	"github.com/staysignal/backend/pkg/response"
)

var nowFunc = func() time.Time { return time.Now().UTC() }

// writeError maps service errors onto the API error envelope.
func writeError(c *gin.Context, err error) {
	msg := err.Error()
	switch {
	case errors.Is(err, services.ErrNotFound):
		response.Error(c, response.NewNotFound(msg))
	case errors.Is(err, services.ErrValidation):
		response.Error(c, response.NewBadRequest(msg))
	case errors.Is(err, services.ErrInvalidTransition):
		response.Error(c, response.NewInvalidTransition(msg))
	case errors.Is(err, services.ErrInvalidState), errors.Is(err, services.ErrConflict):
		response.Error(c, response.NewConflict(msg))
	case errors.Is(err, services.ErrInvalidCredentials):
		response.Error(c, response.NewUnauthorized(msg))
	case errors.Is(err, services.ErrAccountDisabled):
		response.Error(c, response.NewForbidden(msg))
	case errors.Is(err, services.ErrGenerationFailed):
		response.Error(c, response.NewDraftingUnavailable(msg))
	default:
		reqLog := logger.Request(c)
		reqLog.Error().Err(err).Str("route", c.FullPath()).Msg("[API] Unhandled error")
		response.Error(c, err)
	}
}

func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		response.BadRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

func queryLimit(c *gin.Context, def int) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(def)))
	if err != nil || limit <= 0 {
		return def
	}
	return limit
}
