// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file provides SecurityHeaders, which hardens JSON responses for a
// service running behind a reverse proxy. HTML pages (the Swagger UI) are
// listed in SecurityOptions.HTMLPrefixes and skip the restrictive CSP.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// DefaultAPIContentSecurityPolicy forbids every subresource and framing; a
// JSON body never needs either.
const DefaultAPIContentSecurityPolicy = "default-src 'none'; frame-ancestors 'none'"

// SecurityOptions configures SecurityHeaders.
//
// EnableHSTS emits Strict-Transport-Security for HTTPS requests only. Enable
// it only when traffic is HTTPS end-to-end, proxy hop included. HSTSMaxAge
// defaults to 180 days.
type SecurityOptions struct {
	EnableHSTS   bool
	HSTSMaxAge   time.Duration
	NoStore      bool // Cache-Control: no-store plus legacy Pragma/Expires
	EnablePolicy bool // Permissions-Policy and X-Permitted-Cross-Domain-Policies

	// ContentSecurityPolicy is sent on every response outside HTMLPrefixes.
	// Empty disables the header.
	ContentSecurityPolicy string
	HTMLPrefixes          []string
}

// SecurityHeaders returns a Gin middleware that sets:
//
//   - always: X-Content-Type-Options: nosniff, X-Frame-Options: DENY,
//     Referrer-Policy: no-referrer
//   - EnablePolicy: Permissions-Policy and X-Permitted-Cross-Domain-Policies
//   - NoStore: Cache-Control: no-store, Pragma: no-cache, Expires: 0
//   - EnableHSTS on HTTPS: Strict-Transport-Security with includeSubDomains
//   - ContentSecurityPolicy outside HTMLPrefixes
//
// X-Request-ID, when already set, is appended to Access-Control-Expose-Headers.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	maxAge := int64(opt.HSTSMaxAge.Seconds())
	if maxAge <= 0 {
		maxAge = int64((180 * 24 * time.Hour).Seconds())
	}
	hsts := "max-age=" + strconv.FormatInt(maxAge, 10) + "; includeSubDomains; preload"

	return func(c *gin.Context) {
		h := c.Writer.Header()

		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")

		if opt.EnablePolicy {
			h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
			h.Set("X-Permitted-Cross-Domain-Policies", "none")
		}

		if opt.NoStore {
			h.Set("Cache-Control", "no-store")
			h.Set("Pragma", "no-cache")
			h.Set("Expires", "0")
		}

		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hsts)
		}

		if opt.ContentSecurityPolicy != "" && !hasAnyPrefix(c.Request.URL.Path, opt.HTMLPrefixes) {
			h.Set("Content-Security-Policy", opt.ContentSecurityPolicy)
		}

		if h.Get("X-Request-ID") != "" {
			exposeHeader(h, "X-Request-ID")
		}

		c.Next()
	}
}

// exposeHeader appends name to Access-Control-Expose-Headers once.
func exposeHeader(h http.Header, name string) {
	const hdr = "Access-Control-Expose-Headers"
	cur := h.Get(hdr)
	switch {
	case cur == "":
		h.Set(hdr, name)
	case !strings.Contains(cur, name):
		h.Set(hdr, cur+", "+name)
	}
}

// isHTTPS reports whether the request arrived over TLS directly or through a
// proxy that set X-Forwarded-Proto: https.
func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
