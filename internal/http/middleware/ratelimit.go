package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// keyFunc maps a request to the identity of its token bucket.
type keyFunc func(*gin.Context) string

// costFunc returns how many tokens a request consumes.
type costFunc func(*gin.Context) int

// HeaderAPIKey is the client credential header. Its value is hashed before
// it is used as a bucket key.
const HeaderAPIKey = "apikey"

const (
	visitorTTL     = 10 * time.Minute
	gcEveryLookups = 5000
)

// KeyByAPIKeyOrIP buckets callers by API key (apikey header or Bearer token)
// and falls back to the client IP. Keys look like "key:<hash>" or "ip:<addr>".
func KeyByAPIKeyOrIP() keyFunc {
	return func(c *gin.Context) string {
		cred := strings.TrimSpace(c.GetHeader(HeaderAPIKey))
		if cred == "" {
			if auth := c.GetHeader("Authorization"); len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
				cred = strings.TrimSpace(auth[7:])
			}
		}
		if cred == "" {
			return "ip:" + c.ClientIP()
		}
		sum := sha256.Sum256([]byte(cred))
		return "key:" + hex.EncodeToString(sum[:8])
	}
}

// CostForGeneration charges n tokens for POST requests that trigger a
// summary generation and one token for everything else.
func CostForGeneration(n int) costFunc {
	return func(c *gin.Context) int {
		if isGeneration(c) {
			return n
		}
		return 1
	}
}

// isGeneration reports whether c is a POST that produces a summary.
func isGeneration(c *gin.Context) bool {
	if c.Request.Method != http.MethodPost {
		return false
	}
	p := c.FullPath()
	return strings.HasSuffix(p, "/summaries") || strings.HasSuffix(p, "/summarize-feedback")
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a process-local, per-key token bucket limiter. Idle buckets
// are dropped opportunistically during lookups. Safe for concurrent use.
type RateLimiter struct {
	rps    rate.Limit
	burst  int
	keyFn  keyFunc
	costFn costFunc

	mu       sync.Mutex
	visitors map[string]*visitor
	ttl      time.Duration
	cleanupN uint64
}

// NewRateLimiter builds a limiter refilling rps tokens per second with the
// given burst (coerced to at least 1). Every request costs one token until
// WithCost is called.
func NewRateLimiter(rps float64, burst int, keyFn keyFunc) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		keyFn:    keyFn,
		visitors: make(map[string]*visitor),
		ttl:      visitorTTL,
	}
}

// WithCost installs a per-request cost function.
func (rl *RateLimiter) WithCost(fn costFunc) *RateLimiter {
	rl.costFn = fn
	return rl
}

// cost never exceeds burst, otherwise the request could never be admitted.
func (rl *RateLimiter) cost(c *gin.Context) int {
	if rl.costFn == nil {
		return 1
	}
	n := rl.costFn(c)
	if n < 1 {
		return 1
	}
	if n > rl.burst {
		return rl.burst
	}
	return n
}

// getVisitor returns the bucket for key, creating it on first use. Idle
// buckets are swept before the lookup so a stale entry for key is replaced.
func (rl *RateLimiter) getVisitor(key string) *rate.Limiter {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.cleanupN++
	if rl.cleanupN >= gcEveryLookups {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) >= rl.ttl {
				delete(rl.visitors, k)
			}
		}
		rl.cleanupN = 0
	}

	if v, ok := rl.visitors[key]; ok {
		v.lastSeen = now
		return v.limiter
	}
	lim := rate.NewLimiter(rl.rps, rl.burst)
	rl.visitors[key] = &visitor{limiter: lim, lastSeen: now}
	return lim
}

// IsRateBypass reports whether IdempotencyValidator flagged the request as a
// replay of a stored result.
func IsRateBypass(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyRateBypass)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// retryAfter estimates how long until n tokens are available, in whole
// seconds and never below one.
func retryAfter(lim *rate.Limiter, n int, now time.Time) int {
	r := lim.ReserveN(now, n)
	if !r.OK() {
		return 1
	}
	d := r.DelayFrom(now)
	r.CancelAt(now)
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

// Handler enforces the limit. Replays flagged by IsRateBypass pass through
// without spending tokens. Rejections get a 429 with Retry-After and the
// standard error envelope.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}

		now := time.Now()
		n := rl.cost(c)
		lim := rl.getVisitor(rl.keyFn(c))
		if lim.AllowN(now, n) {
			c.Next()
			return
		}

		wait := retryAfter(lim, n, now)
		LoggerFrom(c).Warn().
			Int("cost", n).
			Int("retry_after_s", wait).
			Str("path", c.FullPath()).
			Msg("rate limited")

		c.Header("Retry-After", strconv.Itoa(wait))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get(requestIDHeader),
			"code":       "rate_limited",
			"message":    "rate limit exceeded",
			"error":      "rate limit exceeded",
		})
	}
}
