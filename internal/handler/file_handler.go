package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gradlink/gradlink-api/internal/service"
	appErrors "github.com/gradlink/gradlink-api/pkg/errors"
	"github.com/gradlink/gradlink-api/pkg/response"
)

// FileHandler exposes project file upload and listing endpoints.
type FileHandler struct {
	files *service.FileService
}

// NewFileHandler constructs FileHandler.
func NewFileHandler(files *service.FileService) *FileHandler {
	return &FileHandler{files: files}
}

// Upload godoc
// @Summary Upload a file to an approved project
// @Tags Files
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Project ID"
// @Param file formData file true "File"
// @Success 201 {object} response.Envelope
// @Router /projects/{id}/files [post]
func (h *FileHandler) Upload(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "missing file field"))
		return
	}
	src, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload"))
		return
	}
	defer src.Close() //nolint:errcheck

	file, err := h.files.Upload(c.Request.Context(), claims.UserID, service.UploadFileRequest{
		ProjectID: c.Param("id"),
		FileName:  header.Filename,
		MimeType:  header.Header.Get("Content-Type"),
		Size:      header.Size,
		Content:   src,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, file)
}

// List godoc
// @Summary List a project's files
// @Tags Files
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} response.Envelope
// @Router /projects/{id}/files [get]
func (h *FileHandler) List(c *gin.Context) {
	files, err := h.files.ListByProject(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, files, nil)
}

// Delete godoc
// @Summary Delete an uploaded file
// @Tags Files
// @Produce json
// @Param id path string true "File ID"
// @Success 204
// @Router /files/{id} [delete]
func (h *FileHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.files.Delete(c.Request.Context(), c.Param("id"), claims.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
