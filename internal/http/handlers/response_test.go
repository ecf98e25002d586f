package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failRouter serves GET /projects/:id through h with a captured logger.
func failRouter(h gin.HandlerFunc, logs *bytes.Buffer) (*gin.Engine, *[]string) {
	gin.SetMode(gin.TestMode)
	var recorded []string
	lg := zerolog.New(logs)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Header("X-Request-ID", "rid-42")
		c.Set("logger", &lg)
		c.Next()
		for _, e := range c.Errors {
			recorded = append(recorded, e.Error())
		}
	})
	r.GET("/projects/:id", h)
	return r, &recorded
}

func TestFail_Envelope(t *testing.T) {
	var logs bytes.Buffer
	r, _ := failRouter(func(c *gin.Context) { Fail(c, http.StatusNotFound, ErrCodeNotFound, "project not found") }, &logs)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/projects/p1", nil))

	require.Equal(t, http.StatusNotFound, w.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, ErrorResponse{RequestID: "rid-42", Code: ErrCodeNotFound, Message: "project not found", Error: "project not found"}, body)
	assert.Zero(t, logs.Len(), "client errors are not logged here")
}

func TestFail_LogLevels(t *testing.T) {
	cases := []struct {
		status int
		level  string
		errs   int
	}{
		{http.StatusInternalServerError, "error", 1},
		{http.StatusBadGateway, "error", 1},
		{http.StatusTooManyRequests, "warn", 0},
		{http.StatusPaymentRequired, "warn", 0},
	}
	for _, tc := range cases {
		var logs bytes.Buffer
		r, recorded := failRouter(func(c *gin.Context) { fail(c, tc.status, ErrCodeUpstream, "gateway said no") }, &logs)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/projects/p1", nil))
		require.Equal(t, tc.status, w.Code)

		var entry map[string]any
		require.NoError(t, json.Unmarshal(logs.Bytes(), &entry), "status %d", tc.status)
		assert.Equal(t, tc.level, entry["level"])
		assert.Equal(t, "gateway said no", entry["message"])
		assert.Equal(t, "/projects/:id", entry["route"])
		assert.EqualValues(t, tc.status, entry["status"])
		assert.Len(t, *recorded, tc.errs)
	}
}

func TestOK(t *testing.T) {
	var logs bytes.Buffer
	r, _ := failRouter(func(c *gin.Context) { ok(c, http.StatusCreated, gin.H{"id": c.Param("id")}) }, &logs)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/projects/p9", nil))
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"id":"p9"}`, w.Body.String())
}
