// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements Idempotency-Key support for summary generation. It
// validates the header, stashes the normalized key for handlers, and, when a
// lookup is supplied and the route carries a project id, marks requests that
// would replay a previously generated summary so that:
//   - handlers can detect the replay (IsReplay)
//   - the rate limiter lets the replay through without spending a token
//
// Replays themselves are served by the handler, which owns the summary lookup.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey is the request header carrying the idempotency key.
const HeaderIdempotencyKey = "Idempotency-Key"

// HeaderIdempotentReplay is set to "true" on responses served from a replay.
const HeaderIdempotentReplay = "Idempotent-Replay"

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay"
	ctxKeyRateBypass = "rate.bypass"
)

// GetIdempotencyKey returns the validated key stashed by IdempotencyValidator.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyIdemKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// IsReplay reports whether the validator found a stored result for this
// request's (project, key) pair.
func IsReplay(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyIdemReplay)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// IdempotencyOptions configures header validation. TTL enforcement belongs to
// the lookup.
type IdempotencyOptions struct {
	// MaxLen caps the accepted key length. Values <= 0 default to 200.
	MaxLen int
	// Pattern restricts allowed characters. Defaults to defaultIdemPattern.
	Pattern *regexp.Regexp
}

var defaultIdemPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// IdempotencyLookup reports whether a still-valid result exists for
// (projectID, key) at now.
type IdempotencyLookup func(ctx context.Context, projectID, key string, now time.Time) (exists bool, err error)

// IdempotencyValidator checks the Idempotency-Key header when one is sent.
// A bad key is rejected with 400 "bad_idempotency_key". A good key is
// stashed for handlers; on summary-generating POST routes with an :id
// parameter a lookup hit flags the request as a replay and exempts it from
// rate limiting. Other writes never replay. Lookup errors count as a miss.
//
// POST /summarize-feedback carries its project in the body, so its handler
// does the lookup itself after binding.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = defaultIdemPattern
	}

	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "bad_idempotency_key",
				"message":    "invalid Idempotency-Key",
				"error":      "invalid Idempotency-Key",
			})
			return
		}
		c.Set(ctxKeyIdemKey, key)

		projectID := c.Param("id")
		if lookup == nil || projectID == "" || !isGeneration(c) {
			c.Next()
			return
		}
		exists, err := lookup(c.Request.Context(), projectID, key, time.Now().UTC())
		if err != nil {
			LoggerFrom(c).Debug().Err(err).Str("project_id", projectID).Msg("idempotency lookup failed")
			exists = false
		}
		if exists {
			c.Set(ctxKeyIdemReplay, true)
			c.Set(ctxKeyRateBypass, true)
		}
		c.Next()
	}
}
