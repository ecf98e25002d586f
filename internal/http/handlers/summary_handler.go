// Summary HTTP handlers.
//
// This file exposes the feedback summarization endpoints:
//   - POST /summarize-feedback        ({"projectId": "..."} body)
//   - POST /projects/{id}/summaries   (same operation, id in the path)
//   - GET  /projects/{id}/summaries   (history, newest first, ETag support)
//
// Idempotency:
// When the client sends an Idempotency-Key and a summary was already generated
// for (project, key) within the configured TTL, that summary is returned with
// 200 and `Idempotent-Replay: true` and the model is not called again.
// Requests without the header are never deduplicated.
package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/feedback-hub/internal/domain"
	"github.com/tbourn/feedback-hub/internal/http/middleware"
	"github.com/tbourn/feedback-hub/internal/repo"
	"github.com/tbourn/feedback-hub/internal/services"
)

//
// DTOs
//

// SummarizeFeedbackRequest is the JSON payload of POST /summarize-feedback.
type SummarizeFeedbackRequest struct {
	ProjectID string `json:"projectId" example:"141add05-4415-4938-b5a1-17e0d3171aff"`
}

// SummaryView is a stored summary plus its display bucket.
type SummaryView struct {
	domain.Summary
	// PriorityBucket is one of high, medium, low or other.
	PriorityBucket string `json:"priority_bucket" example:"high"`
}

// ListSummariesResponse wraps the summaries of a project.
type ListSummariesResponse struct {
	Summaries []SummaryView `json:"summaries"`
}

func viewOf(s domain.Summary) SummaryView {
	return SummaryView{Summary: s, PriorityBucket: s.Bucket()}
}

//
// Handlers
//

// SummarizeFeedback godoc
// @ID          summarizeFeedback
// @Summary     Generate an AI summary of a project's feedback
// @Description Summarizes every comment of the project with the language model and stores one summary.
// @Description Replies the model returns in a non-JSON form are stored as a fallback summary (priority "medium").
// @Tags        Summaries
// @Accept      json
// @Produce     json
//
// @Param       Idempotency-Key  header  string                               false  "Replay key for safe retries"
// @Param       body             body    handlers.SummarizeFeedbackRequest   true   "Project to summarize"
//
// @Success     201  {object} handlers.SummaryView
// @Success     200  {object} handlers.SummaryView "Idempotent replay"
// @Failure     400  {object} handlers.ErrorResponse "Missing projectId or no comments"
// @Failure     402  {object} handlers.ErrorResponse "Payment required"
// @Failure     429  {object} handlers.ErrorResponse "Rate limited by the AI gateway"
// @Failure     500  {object} handlers.ErrorResponse "AI gateway or storage error"
// @Router      /summarize-feedback [post]
func (h *Handlers) SummarizeFeedback(c *gin.Context) {
	var req SummarizeFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	h.generate(c, strings.TrimSpace(req.ProjectID))
}

// CreateSummary godoc
// @ID          createSummary
// @Summary     Generate an AI summary for a project
// @Description Same operation as POST /summarize-feedback with the project id in the path.
// @Tags        Summaries
// @Produce     json
//
// @Param       Idempotency-Key  header  string  false  "Replay key for safe retries"
// @Param       id               path    string  true   "Project ID"  format(uuid)
//
// @Success     201  {object} handlers.SummaryView
// @Success     200  {object} handlers.SummaryView "Idempotent replay"
// @Failure     400  {object} handlers.ErrorResponse "No comments"
// @Failure     402  {object} handlers.ErrorResponse "Payment required"
// @Failure     429  {object} handlers.ErrorResponse "Rate limited by the AI gateway"
// @Failure     500  {object} handlers.ErrorResponse "AI gateway or storage error"
// @Router      /projects/{id}/summaries [post]
func (h *Handlers) CreateSummary(c *gin.Context) {
	h.generate(c, c.Param("id"))
}

// ListSummaries godoc
// @ID          listSummaries
// @Summary     List the summaries of a project
// @Description Newest first, each with its priority bucket. Supports weak ETag via If-None-Match.
// @Tags        Summaries
// @Produce     json
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Param       id             path    string  true  "Project ID"  format(uuid)
//
// @Success     200  {object} handlers.ListSummariesResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /projects/{id}/summaries [get]
func (h *Handlers) ListSummaries(c *gin.Context) {
	ctx := c.Request.Context()
	projectID := c.Param("id")

	var db *gorm.DB
	if svc, ok := h.summarySvc.(*services.SummaryService); ok {
		db = svc.DB
	}
	if db != nil {
		if count, maxTS, err := repo.SummariesStats(ctx, db, projectID); err == nil {
			if notModified(c, weakETag("summaries:"+projectID, count, maxTS)) {
				return
			}
		}
	}

	items, err := h.summarySvc.List(ctx, projectID)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeStorage, err.Error())
		return
	}
	views := make([]SummaryView, 0, len(items))
	for _, s := range items {
		views = append(views, viewOf(s))
	}
	ok(c, http.StatusOK, ListSummariesResponse{Summaries: views})
}

// generate runs GenerateSummary for projectID with Idempotency-Key handling
// and writes the response.
func (h *Handlers) generate(c *gin.Context, projectID string) {
	ctx := c.Request.Context()
	if projectID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, services.ErrProjectIDRequired.Error())
		return
	}

	key, _ := middleware.GetIdempotencyKey(c)
	if key == "" {
		key = strings.TrimSpace(c.GetHeader(middleware.HeaderIdempotencyKey))
	}

	// Replay path.
	if key != "" && h.Idem != nil {
		if id, err := h.Idem.Lookup(ctx, projectID, key, time.Now().UTC()); err == nil && id != "" {
			if prev, err := h.summarySvc.Get(ctx, id); err == nil {
				c.Header(middleware.HeaderIdempotentReplay, "true")
				ok(c, http.StatusOK, viewOf(*prev))
				return
			}
		}
	}

	sum, err := h.summarySvc.GenerateSummary(ctx, projectID)
	if err != nil {
		failSummary(c, err)
		return
	}

	// Store path (best effort).
	if key != "" && h.Idem != nil {
		if err := h.Idem.Remember(ctx, projectID, key, sum.ID, http.StatusCreated, h.IdempotencyTTL); err != nil {
			middleware.LoggerFrom(c).Warn().Err(err).Str("project_id", projectID).Msg("idempotency record not stored")
		}
	}

	ok(c, http.StatusCreated, viewOf(*sum))
}

// failSummary maps summarization errors onto HTTP statuses.
func failSummary(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrProjectIDRequired):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrNoFeedback):
		fail(c, http.StatusBadRequest, ErrCodeNoFeedback, err.Error())
	case errors.Is(err, services.ErrRateLimited):
		fail(c, http.StatusTooManyRequests, ErrCodeRateLimited, err.Error())
	case errors.Is(err, services.ErrPaymentRequired):
		fail(c, http.StatusPaymentRequired, ErrCodePaymentRequired, err.Error())
	case errors.Is(err, services.ErrUpstream):
		msg := services.ErrUpstream.Error()
		var ue *services.UpstreamError
		if errors.As(err, &ue) && ue.StatusCode != 0 {
			msg = ue.Error()
		}
		// transport errors name the gateway URL; clients get the fixed text
		middleware.LoggerFrom(c).Error().Err(err).Msg("summary generation failed")
		fail(c, http.StatusInternalServerError, ErrCodeUpstream, msg)
	case errors.Is(err, services.ErrStorage):
		middleware.LoggerFrom(c).Error().Err(err).Msg("summary storage failed")
		fail(c, http.StatusInternalServerError, ErrCodeStorage, services.ErrStorage.Error())
	default:
		fail(c, http.StatusInternalServerError, ErrCodeSummaryFailed, err.Error())
	}
}
