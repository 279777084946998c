package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/drivehub-api/internal/middleware"
	"github.com/noah-isme/drivehub-api/internal/service"
	appErrors "github.com/noah-isme/drivehub-api/pkg/errors"
	"github.com/noah-isme/drivehub-api/pkg/response"
)

// FileHandler exposes file endpoints. Uploads arrive as multipart forms;
// downloads are answered with a presigned URL rather than proxied bytes.
type FileHandler struct {
	files   *service.FileService
	trash   *service.TrashService
	metrics *service.MetricsService
}

// NewFileHandler constructs FileHandler.
func NewFileHandler(files *service.FileService, trash *service.TrashService, metrics *service.MetricsService) *FileHandler {
	return &FileHandler{files: files, trash: trash, metrics: metrics}
}

// Upload godoc
// @Summary Upload a file
// @Tags Files
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "File content"
// @Param folder_id formData string false "Destination folder"
// @Param description formData string false "Description"
// @Param tags formData string false "Comma-separated tags"
// @Success 201 {object} response.Envelope
// @Router /files [post]
func (h *FileHandler) Upload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file field is required"))
		return
	}
	src, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to read upload"))
		return
	}
	defer src.Close() //nolint:errcheck

	req := service.UploadFileRequest{
		Name:        header.Filename,
		Size:        header.Size,
		MimeType:    header.Header.Get("Content-Type"),
		Description: c.PostForm("description"),
		Tags:        c.PostForm("tags"),
		Body:        src,
	}
	if folderID := strings.TrimSpace(c.PostForm("folder_id")); folderID != "" {
		req.FolderID = &folderID
	}

	file, err := h.files.Upload(c.Request.Context(), middleware.CurrentPrincipal(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordUpload(file.Size)
	response.Created(c, file)
}

// Get godoc
// @Summary Get file metadata
// @Tags Files
// @Produce json
// @Param id path string true "File ID"
// @Success 200 {object} response.Envelope
// @Router /files/{id} [get]
func (h *FileHandler) Get(c *gin.Context) {
	file, err := h.files.Get(c.Request.Context(), middleware.CurrentPrincipal(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, file, nil)
}

// Update godoc
// @Summary Update file metadata
// @Tags Files
// @Accept json
// @Produce json
// @Param id path string true "File ID"
// @Param payload body service.UpdateFileRequest true "Metadata changes"
// @Success 200 {object} response.Envelope
// @Router /files/{id} [patch]
func (h *FileHandler) Update(c *gin.Context) {
	var req service.UpdateFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	file, err := h.files.Update(c.Request.Context(), middleware.CurrentPrincipal(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, file, nil)
}

// Move godoc
// @Summary Move file
// @Tags Files
// @Accept json
// @Produce json
// @Param id path string true "File ID"
// @Param payload body service.MoveFileRequest true "Destination folder"
// @Success 200 {object} response.Envelope
// @Router /files/{id}/move [patch]
func (h *FileHandler) Move(c *gin.Context) {
	var req service.MoveFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	file, err := h.files.Move(c.Request.Context(), middleware.CurrentPrincipal(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, file, nil)
}

// Download godoc
// @Summary Get a presigned download URL
// @Tags Files
// @Produce json
// @Param id path string true "File ID"
// @Success 200 {object} response.Envelope
// @Router /files/{id}/download [get]
func (h *FileHandler) Download(c *gin.Context) {
	ticket, err := h.files.Download(c.Request.Context(), middleware.CurrentPrincipal(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordDownload("owner")
	response.JSON(c, http.StatusOK, ticket, nil)
}

// Trash godoc
// @Summary Move file to trash
// @Tags Files
// @Produce json
// @Param id path string true "File ID"
// @Success 200 {object} response.Envelope
// @Router /files/{id} [delete]
func (h *FileHandler) Trash(c *gin.Context) {
	summary, err := h.trash.TrashFile(c.Request.Context(), middleware.CurrentPrincipal(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
