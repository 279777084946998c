package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/drivehub-api/internal/middleware"
	"github.com/noah-isme/drivehub-api/internal/service"
	appErrors "github.com/noah-isme/drivehub-api/pkg/errors"
	"github.com/noah-isme/drivehub-api/pkg/response"
)

// TrashHandler exposes the trash view plus restore and purge. Trashing
// itself lives on the file and folder DELETE routes.
type TrashHandler struct {
	trash   *service.TrashService
	metrics *service.MetricsService
}

// NewTrashHandler constructs TrashHandler.
func NewTrashHandler(trash *service.TrashService, metrics *service.MetricsService) *TrashHandler {
	return &TrashHandler{trash: trash, metrics: metrics}
}

// List godoc
// @Summary List trash contents
// @Tags Trash
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /trash [get]
func (h *TrashHandler) List(c *gin.Context) {
	content, err := h.trash.List(c.Request.Context(), middleware.CurrentPrincipal(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, content, nil)
}

// RestoreFile godoc
// @Summary Restore a file from trash
// @Tags Trash
// @Produce json
// @Param id path string true "File ID"
// @Success 200 {object} response.Envelope
// @Router /trash/files/{id}/restore [post]
func (h *TrashHandler) RestoreFile(c *gin.Context) {
	file, err := h.trash.RestoreFile(c.Request.Context(), middleware.CurrentPrincipal(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordTrashOperation("restore_file")
	response.JSON(c, http.StatusOK, file, nil)
}

// RestoreFolder godoc
// @Summary Restore a folder from trash
// @Tags Trash
// @Accept json
// @Produce json
// @Param id path string true "Folder ID"
// @Param payload body service.RestoreFolderRequest false "Restore options"
// @Success 200 {object} response.Envelope
// @Router /trash/folders/{id}/restore [post]
func (h *TrashHandler) RestoreFolder(c *gin.Context) {
	// Descendants stay trashed unless the body explicitly asks for a
	// cascade restore.
	var req service.RestoreFolderRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
	}
	folder, err := h.trash.RestoreFolder(c.Request.Context(), middleware.CurrentPrincipal(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordTrashOperation("restore_folder")
	response.JSON(c, http.StatusOK, folder, nil)
}

// PurgeFile godoc
// @Summary Permanently delete a trashed file
// @Tags Trash
// @Produce json
// @Param id path string true "File ID"
// @Success 204
// @Router /trash/files/{id} [delete]
func (h *TrashHandler) PurgeFile(c *gin.Context) {
	if err := h.trash.PurgeFile(c.Request.Context(), middleware.CurrentPrincipal(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordTrashOperation("purge_file")
	response.NoContent(c)
}

// PurgeFolder godoc
// @Summary Permanently delete a trashed folder subtree
// @Tags Trash
// @Produce json
// @Param id path string true "Folder ID"
// @Success 204
// @Router /trash/folders/{id} [delete]
func (h *TrashHandler) PurgeFolder(c *gin.Context) {
	if err := h.trash.PurgeFolder(c.Request.Context(), middleware.CurrentPrincipal(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordTrashOperation("purge_folder")
	response.NoContent(c)
}

// Empty godoc
// @Summary Empty the trash
// @Tags Trash
// @Produce json
// @Success 204
// @Router /trash [delete]
func (h *TrashHandler) Empty(c *gin.Context) {
	if err := h.trash.Empty(c.Request.Context(), middleware.CurrentPrincipal(c)); err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordTrashOperation("empty")
	response.NoContent(c)
}
