// Package httpapi builds the Gin engine for feedback-hub: the middleware
// chain, health, metrics and docs endpoints, and the versioned API routes
// backed by the services package.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/feedback-hub/internal/config"
	"github.com/tbourn/feedback-hub/internal/docs"
	"github.com/tbourn/feedback-hub/internal/domain"
	"github.com/tbourn/feedback-hub/internal/http/handlers"
	"github.com/tbourn/feedback-hub/internal/http/middleware"
	"github.com/tbourn/feedback-hub/internal/llm"
	"github.com/tbourn/feedback-hub/internal/repo"
	"github.com/tbourn/feedback-hub/internal/services"
)

// jsonBodyLimit caps every non-upload request body.
const jsonBodyLimit = 1 << 20

// repoShim satisfies every services.*Repo interface by forwarding to the
// repo package functions.
type repoShim struct{}

func (repoShim) CreateProject(ctx context.Context, db *gorm.DB, name, client, deadline string, description *string) (*domain.Project, error) {
	return repo.CreateProject(ctx, db, name, client, deadline, description)
}

func (repoShim) GetProject(ctx context.Context, db *gorm.DB, id string) (*domain.Project, error) {
	return repo.GetProject(ctx, db, id)
}

func (repoShim) CountProjects(ctx context.Context, db *gorm.DB, q string) (int64, error) {
	return repo.CountProjects(ctx, db, q)
}

func (repoShim) ListProjectsPage(ctx context.Context, db *gorm.DB, q string, offset, limit int) ([]domain.Project, error) {
	return repo.ListProjectsPage(ctx, db, q, offset, limit)
}

func (repoShim) CreateComment(ctx context.Context, db *gorm.DB, projectID, author, text string, timestamp *string) (*domain.Comment, error) {
	return repo.CreateComment(ctx, db, projectID, author, text, timestamp)
}

func (repoShim) ListComments(ctx context.Context, db *gorm.DB, projectID string) ([]domain.Comment, error) {
	return repo.ListComments(ctx, db, projectID)
}

func (repoShim) ListCommentsByProject(ctx context.Context, db *gorm.DB, projectID string) ([]domain.Comment, error) {
	return repo.ListCommentsByProject(ctx, db, projectID)
}

func (repoShim) CreateUpload(ctx context.Context, db *gorm.DB, projectID, fileURL, fileType string) (*domain.Upload, error) {
	return repo.CreateUpload(ctx, db, projectID, fileURL, fileType)
}

func (repoShim) ListUploads(ctx context.Context, db *gorm.DB, projectID string) ([]domain.Upload, error) {
	return repo.ListUploads(ctx, db, projectID)
}

func (repoShim) CreateSummary(ctx context.Context, db *gorm.DB, projectID, summary, priority string, combined []string) (*domain.Summary, error) {
	return repo.CreateSummary(ctx, db, projectID, summary, priority, combined)
}

func (repoShim) ListSummaries(ctx context.Context, db *gorm.DB, projectID string) ([]domain.Summary, error) {
	return repo.ListSummaries(ctx, db, projectID)
}

func (repoShim) GetSummary(ctx context.Context, db *gorm.DB, id string) (*domain.Summary, error) {
	return repo.GetSummary(ctx, db, id)
}

// idempotencyStore implements handlers.IdempotencyStore on the idempotency table.
type idempotencyStore struct{ db *gorm.DB }

func (s idempotencyStore) Lookup(ctx context.Context, projectID, key string, now time.Time) (string, error) {
	rec, err := repo.GetIdempotency(ctx, s.db, projectID, key, now)
	if err != nil {
		return "", err
	}
	return rec.SummaryID, nil
}

// Exists reports a live record for (projectID, key); a miss is not an error.
func (s idempotencyStore) Exists(ctx context.Context, projectID, key string, now time.Time) (bool, error) {
	_, err := repo.GetIdempotency(ctx, s.db, projectID, key, now)
	if errors.Is(err, repo.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s idempotencyStore) Remember(ctx context.Context, projectID, key, summaryID string, status int, ttl time.Duration) error {
	_, err := repo.CreateIdempotency(ctx, s.db, projectID, key, summaryID, status, ttl)
	return err
}

// RegisterRoutes installs middleware and routes on r. store may be nil, in
// which case uploads answer 503.
//
// The chain runs tracing, request id, access log and recovery first so a
// panic anywhere below is logged with its request id. The idempotency check
// precedes the rate limiter, which lets replays through without spending
// tokens.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, completer llm.Completer, store services.ObjectStore, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(
		otelgin.Middleware(cfg.OTEL.ServiceName),
		middleware.RequestID(),
		middleware.RedactingLogger(middleware.RedactOptions{
			MaskHeaders: []string{middleware.HeaderAPIKey},
		}),
		middleware.Recovery(),
		middleware.Metrics(),
	)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics", "/swagger"})))

	idem := idempotencyStore{db: db}
	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{MaxLen: 200}, idem.Exists))

	limiter := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByAPIKeyOrIP()).
		WithCost(middleware.CostForGeneration(cfg.RateGenerationCost))
	r.Use(limiter.Handler())

	r.Use(corsHandlers(cfg.CORS.AllowedOrigins)...)

	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,

		ContentSecurityPolicy: middleware.DefaultAPIContentSecurityPolicy,
		HTMLPrefixes:          []string{"/swagger/"},
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	projectSvc := services.NewProjectService(db, repoShim{})
	commentSvc := services.NewCommentService(db, repoShim{})
	uploadSvc := services.NewUploadService(db, repoShim{}, store, cfg.UploadMaxBytes)
	summarySvc := services.NewSummaryService(db, repoShim{}, completer, cfg.LLM.Timeout)

	h := handlers.New(projectSvc, commentSvc, uploadSvc, summarySvc)
	h.Idem = idem
	h.IdempotencyTTL = cfg.IdempotencyTTL
	h.UploadMaxBytes = cfg.UploadMaxBytes

	api := groupWithPrefix(r, cfg.APIBasePath)

	jsonAPI := api.Group("", limitBody(jsonBodyLimit))
	{
		jsonAPI.POST("/projects", h.CreateProject)
		jsonAPI.GET("/projects", h.ListProjects)
		jsonAPI.GET("/projects/:id", h.GetProject)

		jsonAPI.POST("/projects/:id/comments", h.CreateComment)
		jsonAPI.GET("/projects/:id/comments", h.ListComments)

		jsonAPI.GET("/projects/:id/uploads", h.ListUploads)

		jsonAPI.POST("/summarize-feedback", h.SummarizeFeedback)
		jsonAPI.POST("/projects/:id/summaries", h.CreateSummary)
		jsonAPI.GET("/projects/:id/summaries", h.ListSummaries)
	}

	// room for multipart framing around the file
	fileAPI := api.Group("", limitBody(cfg.UploadMaxBytes+jsonBodyLimit))
	fileAPI.POST("/projects/:id/uploads", h.UploadFile)
}

// corsHandlers answers preflights for the API methods and headers. With no
// allowlist every origin gets "*", even on requests without Origin; otherwise
// only listed origins are echoed back.
func corsHandlers(origins []string) []gin.HandlerFunc {
	base := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match",
			middleware.HeaderAPIKey, middleware.HeaderIdempotencyKey,
		},
		ExposeHeaders: []string{"X-Request-ID", "Content-Length", "ETag", middleware.HeaderIdempotentReplay},
		MaxAge:        12 * time.Hour,
	}

	if len(origins) == 0 {
		base.AllowAllOrigins = true
		return []gin.HandlerFunc{
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(base),
		}
	}

	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	base.AllowOrigins = origins
	return []gin.HandlerFunc{
		func(c *gin.Context) {
			if o := c.GetHeader("Origin"); allowed[o] {
				c.Writer.Header().Set("Access-Control-Allow-Origin", o)
				c.Writer.Header().Add("Vary", "Origin")
			}
			c.Next()
		},
		cors.New(base),
	}
}

// limitBody wraps the request body in http.MaxBytesReader; reads past
// maxBytes fail and handlers answer 413.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix treats "" and "/" as the engine root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
