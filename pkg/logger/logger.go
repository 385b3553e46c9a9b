// Package logger wraps a process-wide zerolog logger and the gin middleware
// that writes one structured line per request.
package logger

import (
	"errors"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/staysignal/backend/pkg/response"
)

const (
	RequestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
	serviceName     = "staysignal"
)

// Probe paths are only logged at debug level when they succeed.
var quietPaths = map[string]bool{"/health": true, "/ready": true}

var log zerolog.Logger

func init() {
	Init("info", "")
}

// Init replaces the process logger. format is "console" or "json"; left
// empty, debug level gets console output and anything quieter gets json.
func Init(level, format string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	log = New(os.Stdout, lvl, format)
}

func New(w io.Writer, lvl zerolog.Level, format string) zerolog.Logger {
	console := format == "console" || (format == "" && lvl <= zerolog.DebugLevel)
	if console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	}
	return zerolog.New(w).Level(lvl).
		With().Timestamp().Str("service", serviceName).Caller().
		Logger()
}

func SetLogger(l zerolog.Logger) { log = l }
func Get() zerolog.Logger        { return log }

func Debug() *zerolog.Event { return log.Debug() }
func Info() *zerolog.Event  { return log.Info() }
func Warn() *zerolog.Event  { return log.Warn() }
func Error() *zerolog.Event { return log.Error() }

func Infof(format string, v ...interface{})  { log.Info().Msgf(format, v...) }
func Warnf(format string, v ...interface{})  { log.Warn().Msgf(format, v...) }
func Errorf(format string, v ...interface{}) { log.Error().Msgf(format, v...) }

// Fatalf logs and exits the process.
func Fatalf(format string, v ...interface{}) { log.Fatal().Msgf(format, v...) }

// Tenant scopes a child logger to one property.
func Tenant(tenantID uint) zerolog.Logger {
	return log.With().Uint("tenant_id", tenantID).Logger()
}

// Request scopes a child logger to the current request, with the tenant
// once authentication has set it.
func Request(c *gin.Context) zerolog.Logger {
	ctx := log.With().Str(requestIDKey, c.GetString(requestIDKey))
	if tenantID := c.GetUint("tenant_id"); tenantID != 0 {
		ctx = ctx.Uint("tenant_id", tenantID)
	}
	return ctx.Logger()
}

func levelFor(status int, path string) zerolog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zerolog.ErrorLevel
	case status >= http.StatusBadRequest:
		return zerolog.WarnLevel
	case quietPaths[path]:
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}

// GinLogger tags the request with an id (the client's, when it sent one) and
// logs the outcome once the handlers have run.
func GinLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		began := time.Now()
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)

		c.Next()

		status := c.Writer.Status()
		reqLog := Request(c)
		ev := reqLog.WithLevel(levelFor(status, c.Request.URL.Path))
		if managerID := c.GetUint("manager_id"); managerID != 0 {
			ev.Uint("manager_id", managerID)
		}
		if len(c.Errors) > 0 {
			ev.Str("errors", c.Errors.String())
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("query", c.Request.URL.RawQuery).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Str("ip", c.ClientIP()).
			Dur("latency", time.Since(began)).
			Msg("request")
	}
}

var errPanic = errors.New("panic")

// GinRecovery logs a handler panic and answers 500 in the usual envelope.
func GinRecovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		reqLog := Request(c)
		reqLog.Error().
			Interface("panic", recovered).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Msg("handler panicked")
		response.Abort(c, errPanic)
	})
}
