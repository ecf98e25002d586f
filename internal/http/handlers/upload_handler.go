package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/feedback-hub/internal/domain"
	"github.com/tbourn/feedback-hub/internal/services"
)

// ListUploadsResponse wraps the uploads of a project.
type ListUploadsResponse struct {
	Uploads []domain.Upload `json:"uploads"`
}

// UploadFile godoc
// @ID          uploadFile
// @Summary     Upload a file to a project
// @Description Stores the multipart "file" field in object storage and records its public URL.
// @Description Allowed extensions: .txt .pdf .jpg .jpeg .png.
// @Tags        Uploads
// @Accept      multipart/form-data
// @Produce     json
//
// @Param       id    path      string  true  "Project ID"  format(uuid)
// @Param       file  formData  file    true  "File to upload"
//
// @Success     201  {object} domain.Upload
// @Failure     400  {object} handlers.ErrorResponse "Missing file or unsupported type"
// @Failure     404  {object} handlers.ErrorResponse "Project not found"
// @Failure     413  {object} handlers.ErrorResponse "File too large"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Failure     503  {object} handlers.ErrorResponse "Uploads not configured"
// @Router      /projects/{id}/uploads [post]
func (h *Handlers) UploadFile(c *gin.Context) {
	if en, isToggle := h.uploadSvc.(interface{ Enabled() bool }); isToggle && !en.Enabled() {
		fail(c, http.StatusServiceUnavailable, ErrCodeUploadsDisabled, services.ErrUploadsDisabled.Error())
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			fail(c, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "file too large")
			return
		}
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "multipart field \"file\" is required")
		return
	}
	if h.UploadMaxBytes > 0 && fh.Size > h.UploadMaxBytes {
		fail(c, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "file too large")
		return
	}

	f, err := fh.Open()
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "cannot read uploaded file")
		return
	}
	defer f.Close()

	up, err := h.uploadSvc.Upload(c.Request.Context(), c.Param("id"), fh.Filename, f, fh.Size)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUploadsDisabled):
			fail(c, http.StatusServiceUnavailable, ErrCodeUploadsDisabled, err.Error())
		case errors.Is(err, services.ErrInvalidFileType):
			fail(c, http.StatusBadRequest, ErrCodeInvalidFileType, err.Error())
		case errors.Is(err, services.ErrFileTooLarge):
			fail(c, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, err.Error())
		case errors.Is(err, services.ErrProjectNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "project not found")
		case errors.Is(err, services.ErrStorage):
			fail(c, http.StatusInternalServerError, ErrCodeStorage, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeUploadFailed, err.Error())
		}
		return
	}
	ok(c, http.StatusCreated, up)
}

// ListUploads godoc
// @ID          listUploads
// @Summary     List the uploads of a project
// @Description Newest first.
// @Tags        Uploads
// @Produce     json
//
// @Param       id  path  string  true  "Project ID"  format(uuid)
//
// @Success     200  {object} handlers.ListUploadsResponse
// @Failure     404  {object} handlers.ErrorResponse "Project not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /projects/{id}/uploads [get]
func (h *Handlers) ListUploads(c *gin.Context) {
	items, err := h.uploadSvc.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		failProject(c, err)
		return
	}
	ok(c, http.StatusOK, ListUploadsResponse{Uploads: items})
}
