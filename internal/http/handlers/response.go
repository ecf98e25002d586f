// Package handlers implements the feedback-hub REST endpoints.
//
// Every failure is written through fail() as an ErrorResponse carrying a
// stable code from errors.go:
//
//	HTTP/1.1 400 Bad Request
//	{"request_id":"…","code":"no_feedback","message":"no comments found for this project","error":"…"}
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/feedback-hub/internal/http/middleware"
)

// ErrorResponse is the error envelope shared by all endpoints.
type ErrorResponse struct {
	// Echo of X-Request-ID
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	Code      string `json:"code" example:"not_found"`
	Message   string `json:"message" example:"resource not found"`
	// Same text as Message, for clients that read "error"
	Error string `json:"error" example:"resource not found"`
}

// fail aborts with an ErrorResponse. Server errors are logged and recorded
// on the gin context for the access log; upstream quota answers (402, 429)
// are logged at warn.
func fail(c *gin.Context, status int, code, msg string) {
	lg := middleware.LoggerFrom(c)
	switch {
	case status >= http.StatusInternalServerError:
		_ = c.Error(errors.New(msg)).SetType(gin.ErrorTypePrivate)
		lg.Error().Int("status", status).Str("code", code).Str("route", c.FullPath()).Msg(msg)
	case status == http.StatusTooManyRequests, status == http.StatusPaymentRequired:
		lg.Warn().Int("status", status).Str("code", code).Str("route", c.FullPath()).Msg(msg)
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
		Error:     msg,
	})
}

// Fail exposes fail to the router's 404/405 fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}
