package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/feedback-hub/internal/domain"
	"github.com/tbourn/feedback-hub/internal/services"
)

// CreateCommentRequest is the JSON payload for adding feedback to a project.
type CreateCommentRequest struct {
	Author  string `json:"author" example:"Ann"`
	Comment string `json:"comment" example:"Love the color scheme"`
	// Timestamp is free-form and optional, e.g. "2:30 PM" or "00:01:12".
	Timestamp *string `json:"timestamp" example:"2:30 PM"`
}

// ListCommentsResponse wraps the comments of a project.
type ListCommentsResponse struct {
	Comments []domain.Comment `json:"comments"`
}

// CreateComment godoc
// @ID          createComment
// @Summary     Add a comment to a project
// @Tags        Comments
// @Accept      json
// @Produce     json
//
// @Param       id    path  string                           true  "Project ID"  format(uuid)
// @Param       body  body  handlers.CreateCommentRequest    true  "Comment payload"
//
// @Success     201  {object} domain.Comment
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Project not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /projects/{id}/comments [post]
func (h *Handlers) CreateComment(c *gin.Context) {
	var req CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	cm, err := h.commentSvc.Create(c.Request.Context(), c.Param("id"), req.Author, req.Comment, req.Timestamp)
	if err != nil {
		if errors.Is(err, services.ErrInvalidComment) {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
			return
		}
		failProject(c, err)
		return
	}
	ok(c, http.StatusCreated, cm)
}

// ListComments godoc
// @ID          listComments
// @Summary     List the comments of a project
// @Description Newest first.
// @Tags        Comments
// @Produce     json
//
// @Param       id  path  string  true  "Project ID"  format(uuid)
//
// @Success     200  {object} handlers.ListCommentsResponse
// @Failure     404  {object} handlers.ErrorResponse "Project not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /projects/{id}/comments [get]
func (h *Handlers) ListComments(c *gin.Context) {
	items, err := h.commentSvc.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		failProject(c, err)
		return
	}
	ok(c, http.StatusOK, ListCommentsResponse{Comments: items})
}
