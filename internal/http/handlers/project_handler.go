// Project HTTP handlers.
//
// This file exposes REST endpoints for project resources:
//   - POST /projects        (create)
//   - GET  /projects        (search + list, paginated, ETag support)
//   - GET  /projects/{id}   (fetch one)
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/feedback-hub/internal/domain"
	"github.com/tbourn/feedback-hub/internal/repo"
	"github.com/tbourn/feedback-hub/internal/services"
)

// CreateProjectRequest is the JSON payload for creating a project.
type CreateProjectRequest struct {
	Name         string  `json:"name" example:"Website redesign"`
	Client       string  `json:"client" example:"Acme Corp"`
	Description  *string `json:"description" example:"Marketing site refresh"`
	DeadlineDate string  `json:"deadline_date" example:"2026-01-31"`
}

// ListProjectsResponse wraps a page of projects and pagination information.
type ListProjectsResponse struct {
	Projects   []domain.Project `json:"projects"`
	Pagination Pagination       `json:"pagination"`
}

// CreateProject godoc
// @ID          createProject
// @Summary     Create a project
// @Description Creates a client project. name, client and deadline_date (YYYY-MM-DD) are required.
// @Tags        Projects
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.CreateProjectRequest  true  "Project payload"
//
// @Success     201  {object}  domain.Project
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /projects [post]
func (h *Handlers) CreateProject(c *gin.Context) {
	var req CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	p, err := h.projectSvc.Create(c.Request.Context(), services.ProjectInput{
		Name:         req.Name,
		Client:       req.Client,
		Description:  req.Description,
		DeadlineDate: req.DeadlineDate,
	})
	if err != nil {
		if errors.Is(err, services.ErrInvalidProject) {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		return
	}
	ok(c, http.StatusCreated, p)
}

// ListProjects godoc
// @ID          listProjects
// @Summary     List projects (paginated)
// @Description Returns projects newest first. q filters case-insensitively on name or client.
// @Description Supports weak ETag via If-None-Match and may return 304.
// @Tags        Projects
// @Produce     json
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Param       q              query   string  false "Search on name or client"   example(acme)
// @Param       page           query   int     false "Page number"                 minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"              minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListProjectsResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /projects [get]
func (h *Handlers) ListProjects(c *gin.Context) {
	ctx := c.Request.Context()
	q := strings.Join(strings.Fields(c.Query("q")), " ")
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	var db *gorm.DB
	if svc, ok := h.projectSvc.(*services.ProjectService); ok {
		db = svc.DB
	}
	if db != nil {
		if count, maxTS, err := repo.ProjectsStats(ctx, db, q); err == nil {
			if notModified(c, weakETag("projects:"+q, count, maxTS)) {
				return
			}
		}
	}

	items, total, err := h.projectSvc.ListPage(ctx, q, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ListProjectsResponse{
		Projects:   items,
		Pagination: newPagination(page, pageSize, total),
	})
}

// GetProject godoc
// @ID          getProject
// @Summary     Get a project
// @Tags        Projects
// @Produce     json
//
// @Param       id  path  string  true  "Project ID"  format(uuid)
//
// @Success     200  {object} domain.Project
// @Failure     404  {object} handlers.ErrorResponse "Project not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /projects/{id} [get]
func (h *Handlers) GetProject(c *gin.Context) {
	p, err := h.projectSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		failProject(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// failProject maps lookup errors shared by every /projects/{id}/... route.
func failProject(c *gin.Context, err error) {
	if errors.Is(err, services.ErrProjectNotFound) {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "project not found")
		return
	}
	fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
}
