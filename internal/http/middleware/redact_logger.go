// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements RedactingLogger, the access log. Bodies are never
// logged: comments and summaries carry client feedback. Query strings,
// unmatched paths and header values are pattern-scrubbed for emails, phone
// numbers and UUIDs, and credential headers are masked entirely.
package middleware

import (
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// RedactOptions configures RedactingLogger.
//
// MaskHeaders names extra headers (case-insensitive) logged as "[REDACTED]",
// on top of Authorization, Cookie and Set-Cookie.
type RedactOptions struct {
	MaskHeaders []string
}

// UUIDs go first so the phone pattern never sees their digit groups.
var redactions = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`(?i)\b[0-9a-f]{8}\-[0-9a-f]{4}\-[1-5][0-9a-f]{3}\-[89ab][0-9a-f]{3}\-[0-9a-f]{12}\b`), "[REDACTED:id]"},
	{regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`), "[REDACTED:email]"},
	// digits only, e.g. "+1 212-555-1212", "(212) 555-1212"
	{regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`), "[REDACTED:phone]"},
}

func redact(s string) string {
	for _, r := range redactions {
		if s == "" {
			return s
		}
		s = r.re.ReplaceAllString(s, r.repl)
	}
	return s
}

// RedactingLogger returns a Gin middleware that writes one "http_request"
// event per request: info for 2xx/3xx, warn for 4xx, error for 5xx.
//
// When RequestID ran first, it also attaches a logger carrying request_id to
// the request (see LoggerFrom and zerolog.Ctx) so handler and service logs
// correlate with the access log. Route templates are logged as-is; the
// project id from :id is logged as project_id, and replays answered from an
// Idempotency-Key are flagged with replay=true.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	masked := map[string]struct{}{
		"authorization": {},
		"cookie":        {},
		"set-cookie":    {},
	}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			masked[h] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		start := time.Now()

		if rid, ok := c.Get(requestIDKey); ok {
			attachLogger(c, log.With().Str("request_id", asString(rid)).Logger())
		}

		path := c.FullPath()
		if path == "" {
			path = redact(c.Request.URL.Path)
		}
		query := redact(c.Request.URL.RawQuery)

		headers := make(map[string]string, len(c.Request.Header))
		for k, vv := range c.Request.Header {
			if _, ok := masked[strings.ToLower(k)]; ok {
				headers[k] = "[REDACTED]"
				continue
			}
			headers[k] = redact(strings.Join(vv, ", "))
		}

		c.Next()

		status := c.Writer.Status()
		reqID := c.Writer.Header().Get("X-Request-ID")
		if reqID == "" {
			reqID = c.GetHeader("X-Request-ID")
		}

		var ev *zerolog.Event
		switch {
		case status >= 500:
			ev = log.Error()
		case status >= 400:
			ev = log.Warn()
		default:
			ev = log.Info()
		}
		if pid := c.Param("id"); pid != "" {
			ev = ev.Str("project_id", pid)
		}
		if c.Writer.Header().Get(HeaderIdempotentReplay) != "" {
			ev = ev.Bool("replay", true)
		}
		if len(c.Errors) > 0 {
			ev = ev.Str("errors", c.Errors.String())
		}

		ev.
			Str("request_id", reqID).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", query).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Interface("headers", headers).
			Msg("http_request")
	}
}
