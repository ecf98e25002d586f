// Package handlers exposes the REST endpoints of the feedback hub.
//
// Handlers are transport-thin: they validate input, call application
// services, and translate results (including conditional and idempotent
// responses) into HTTP.
package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/feedback-hub/internal/domain"
	"github.com/tbourn/feedback-hub/internal/services"
	"github.com/tbourn/feedback-hub/internal/utils"
)

//
// Service contracts (context-aware)
//

// ProjectService defines project operations consumed by HTTP handlers.
type ProjectService interface {
	Create(ctx context.Context, in services.ProjectInput) (*domain.Project, error)
	Get(ctx context.Context, id string) (*domain.Project, error)
	ListPage(ctx context.Context, q string, page, pageSize int) ([]domain.Project, int64, error)
}

// CommentService defines comment operations consumed by HTTP handlers.
type CommentService interface {
	Create(ctx context.Context, projectID, author, text string, timestamp *string) (*domain.Comment, error)
	List(ctx context.Context, projectID string) ([]domain.Comment, error)
}

// UploadService defines file upload operations consumed by HTTP handlers.
type UploadService interface {
	Upload(ctx context.Context, projectID, filename string, r io.Reader, size int64) (*domain.Upload, error)
	List(ctx context.Context, projectID string) ([]domain.Upload, error)
}

// SummaryService defines summary generation and retrieval.
//
// Implementations must be safe for concurrent use and must honor ctx.
type SummaryService interface {
	// GenerateSummary summarizes all comments of projectID and stores one row.
	GenerateSummary(ctx context.Context, projectID string) (*domain.Summary, error)
	// List returns the summaries of projectID, newest first.
	List(ctx context.Context, projectID string) ([]domain.Summary, error)
	// Get returns one summary by id.
	Get(ctx context.Context, id string) (*domain.Summary, error)
}

// IdempotencyStore records and resolves Idempotency-Key replays for summary
// generation. A nil store disables replay handling.
type IdempotencyStore interface {
	// Lookup returns the summary id stored for (projectID, key), or "" when
	// there is no live record.
	Lookup(ctx context.Context, projectID, key string, now time.Time) (string, error)
	// Remember stores summaryID for (projectID, key) for ttl.
	Remember(ctx context.Context, projectID, key, summaryID string, status int, ttl time.Duration) error
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints. It depends on service interfaces so
// transport concerns stay separate from business logic.
type Handlers struct {
	projectSvc ProjectService
	commentSvc CommentService
	uploadSvc  UploadService
	summarySvc SummaryService

	// Idem resolves Idempotency-Key replays; nil disables them.
	Idem IdempotencyStore
	// IdempotencyTTL is how long a generated summary can be replayed.
	IdempotencyTTL time.Duration
	// UploadMaxBytes caps multipart uploads (0 = no handler-side cap).
	UploadMaxBytes int64
}

// New constructs a Handlers bound to the given services.
func New(p ProjectService, c CommentService, u UploadService, s SummaryService) *Handlers {
	return &Handlers{
		projectSvc:     p,
		commentSvc:     c,
		uploadSvc:      u,
		summarySvc:     s,
		IdempotencyTTL: 24 * time.Hour,
	}
}

//
// DTOs
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

func newPagination(page, pageSize int, total int64) Pagination {
	totalPages := utils.PageRequest{Page: page, Size: pageSize}.TotalPages(total)
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params,
// returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	pr := utils.ParsePage(c.Query("page"), c.Query("page_size"))
	return pr.Page, pr.Size
}

// weakETag formats a weak validator from a collection scope, its row count
// and its newest timestamp.
func weakETag(scope string, count int64, newest *time.Time) string {
	var ts int64
	if newest != nil {
		ts = newest.UnixNano()
	}
	return fmt.Sprintf(`W/"%s:%d:%d"`, scope, count, ts)
}

// notModified sets ETag and reports whether the request's If-None-Match
// matches it, in which case a 304 has been written.
func notModified(c *gin.Context, etag string) bool {
	c.Header("ETag", etag)
	if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
		c.Status(http.StatusNotModified)
		return true
	}
	return false
}
