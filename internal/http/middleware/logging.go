// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file provides the correlation ID injector, panic recovery, and the
// request-scoped logger plumbing shared with RedactingLogger:
//
//   - RequestID() gives every request a correlation ID (X-Request-ID).
//   - Recovery() turns panics into the API's JSON 500 envelope.
//   - LoggerFrom() returns the request-scoped logger in handlers; services
//     read the same logger with zerolog.Ctx(ctx).
//
// Order: RequestID, RedactingLogger, Recovery.
package middleware

import (
	"net/http"
	"regexp"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// requestIDKey is the Gin context key holding the request ID.
	requestIDKey = "requestID"
	// requestIDHeader propagates the correlation ID.
	requestIDHeader = "X-Request-ID"
	// loggerKey is the Gin context key holding the request-scoped logger.
	loggerKey = "logger"
)

// Incoming IDs are echoed into logs and headers, so only short token-like
// values are reused.
var validRequestID = regexp.MustCompile(`^[A-Za-z0-9._:\-]{1,128}$`)

// RequestID reuses a well-formed incoming X-Request-ID or generates a UUIDv4,
// stores it in the Gin context and writes it back on the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if !validRequestID.MatchString(rid) {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

// Recovery logs a panic with its stack and, if nothing was written yet,
// answers 500 with {request_id, code:"internal_error", message, error}.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			v, _ := c.Get(requestIDKey)
			rid := asString(v)
			LoggerFrom(c).Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Str("request_id", rid).
				Str("path", c.FullPath()).
				Msg("panic recovered")

			if c.Writer.Written() {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			const msg = "internal server error"
			c.Header(requestIDHeader, rid)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"request_id": rid,
				"code":       "internal_error",
				"message":    msg,
				"error":      msg,
			})
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped logger, or the global logger when
// none was attached. Never nil.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Logger()
	return &l
}

// attachLogger makes l the request-scoped logger for Gin handlers (via
// LoggerFrom) and for services (via zerolog.Ctx on the request context).
func attachLogger(c *gin.Context, l zerolog.Logger) {
	c.Set(loggerKey, &l)
	c.Request = c.Request.WithContext(l.WithContext(c.Request.Context()))
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
