package middleware

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureGlobalLog points log.Logger at a buffer for the duration of t.
func captureGlobalLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })
	return &buf
}

// entries decodes one JSON object per line.
func entries(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	sc := bufio.NewScanner(bytes.NewReader(buf.Bytes()))
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m), sc.Text())
		out = append(out, m)
	}
	return out
}

func accessLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	var out []map[string]any
	for _, e := range entries(t, buf) {
		if e["message"] == "http_request" {
			out = append(out, e)
		}
	}
	return out
}

func TestRedact(t *testing.T) {
	cases := map[string]string{
		"":                      "",
		"plain text":            "plain text",
		"to=ann.lee+qa@acme.io": "to=[REDACTED:email]",
		"call 212-555-1212 now": "call [REDACTED:phone] now",
		"id=123e4567-e89b-12d3-a456-426614174000": "id=[REDACTED:id]",
	}
	for in, want := range cases {
		assert.Equal(t, want, redact(in), in)
	}
}

func TestRedactingLogger_ScrubsQueryAndHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureGlobalLog(t)

	r := gin.New()
	r.Use(func(c *gin.Context) { c.Header(requestIDHeader, "rid-resp"); c.Next() })
	r.Use(RedactingLogger(RedactOptions{MaskHeaders: []string{" APIKEY "}}))
	r.GET("/projects/:id/comments", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	req := httptest.NewRequest(http.MethodGet,
		"/projects/p7/comments?author=bo@example.com&ref=123e4567-e89b-12d3-a456-426614174000", nil)
	req.Header.Set("Authorization", "Bearer secret")
	req.Header.Set("Cookie", "sid=1")
	req.Header.Set("apikey", "anon-key")
	req.Header.Set("X-Reporter", "ann@acme.io")
	req.Header.Set(requestIDHeader, "rid-req")
	r.ServeHTTP(httptest.NewRecorder(), req)

	lines := accessLines(t, buf)
	require.Len(t, lines, 1)
	e := lines[0]

	assert.Equal(t, "info", e["level"])
	assert.Equal(t, "rid-resp", e["request_id"], "response header wins")
	assert.Equal(t, "/projects/:id/comments", e["path"])
	assert.Equal(t, "p7", e["project_id"])
	assert.Equal(t, "author=[REDACTED:email]&ref=[REDACTED:id]", e["query"])

	headers, ok := e["headers"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "[REDACTED]", headers["Authorization"])
	assert.Equal(t, "[REDACTED]", headers["Cookie"])
	assert.Equal(t, "[REDACTED]", headers["Apikey"])
	assert.Equal(t, "[REDACTED:email]", headers["X-Reporter"])
	assert.NotContains(t, buf.String(), "anon-key")
}

func TestRedactingLogger_LevelsAndRequestIDFallback(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureGlobalLog(t)

	r := gin.New()
	r.Use(RedactingLogger(RedactOptions{}))
	r.GET("/s/:code", func(c *gin.Context) {
		switch c.Param("code") {
		case "404":
			c.Status(http.StatusNotFound)
		case "502":
			_ = c.Error(errors.New("gateway timeout"))
			c.Status(http.StatusBadGateway)
		default:
			c.Status(http.StatusNoContent)
		}
	})

	for _, code := range []string{"204", "404", "502"} {
		req := httptest.NewRequest(http.MethodGet, "/s/"+code, nil)
		req.Header.Set(requestIDHeader, "rid-"+code)
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	lines := accessLines(t, buf)
	require.Len(t, lines, 3)
	for i, want := range []struct{ level, rid string }{{"info", "rid-204"}, {"warn", "rid-404"}, {"error", "rid-502"}} {
		assert.Equal(t, want.level, lines[i]["level"])
		assert.Equal(t, want.rid, lines[i]["request_id"])
	}
	assert.Contains(t, lines[2]["errors"], "gateway timeout")
	assert.NotContains(t, lines[0], "errors")
}

func TestRedactingLogger_ReplayAndUnmatchedPath(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureGlobalLog(t)

	r := gin.New()
	r.Use(RedactingLogger(RedactOptions{}))
	r.POST("/projects/:id/summaries", func(c *gin.Context) {
		c.Header(HeaderIdempotentReplay, "true")
		c.Status(http.StatusOK)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/projects/p-42/summaries", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/lookup/someone@example.com", nil))

	lines := accessLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, true, lines[0]["replay"])
	assert.Equal(t, "p-42", lines[0]["project_id"])
	assert.Equal(t, "/lookup/[REDACTED:email]", lines[1]["path"])
	assert.NotContains(t, buf.String(), "someone@example.com")
}

func TestRedactingLogger_AttachesScopedLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureGlobalLog(t)

	r := gin.New()
	r.Use(RequestID(), RedactingLogger(RedactOptions{}))
	r.GET("/scoped", func(c *gin.Context) {
		zerolog.Ctx(c.Request.Context()).Info().Msg("from service")
		LoggerFrom(c).Info().Msg("from handler")
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/scoped", nil)
	req.Header.Set(requestIDHeader, "rid-scoped")
	r.ServeHTTP(httptest.NewRecorder(), req)

	seen := map[string]bool{}
	for _, e := range entries(t, buf) {
		msg, _ := e["message"].(string)
		seen[msg] = true
		assert.Equal(t, "rid-scoped", e["request_id"], msg)
	}
	assert.True(t, seen["from service"])
	assert.True(t, seen["from handler"])
	assert.True(t, seen["http_request"])
}
