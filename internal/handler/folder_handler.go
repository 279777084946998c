package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/drivehub-api/internal/middleware"
	"github.com/noah-isme/drivehub-api/internal/models"
	"github.com/noah-isme/drivehub-api/internal/service"
	appErrors "github.com/noah-isme/drivehub-api/pkg/errors"
	"github.com/noah-isme/drivehub-api/pkg/response"
)

// FolderHandler exposes folder tree endpoints.
type FolderHandler struct {
	folders *service.FolderService
	trash   *service.TrashService
}

// NewFolderHandler constructs FolderHandler.
func NewFolderHandler(folders *service.FolderService, trash *service.TrashService) *FolderHandler {
	return &FolderHandler{folders: folders, trash: trash}
}

// Create godoc
// @Summary Create folder
// @Tags Folders
// @Accept json
// @Produce json
// @Param payload body service.CreateFolderRequest true "Folder payload"
// @Success 201 {object} response.Envelope
// @Router /folders [post]
func (h *FolderHandler) Create(c *gin.Context) {
	var req service.CreateFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	folder, err := h.folders.Create(c.Request.Context(), middleware.CurrentPrincipal(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, folder)
}

// ListRoot godoc
// @Summary List root folders and files
// @Tags Folders
// @Produce json
// @Param search query string false "Search by name"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /folders [get]
func (h *FolderHandler) ListRoot(c *gin.Context) {
	filter := listFilter(c)
	content, err := h.folders.ListRoot(c.Request.Context(), middleware.CurrentPrincipal(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, content, content.Pagination(filter))
}

// Get godoc
// @Summary Get folder contents with breadcrumbs
// @Tags Folders
// @Produce json
// @Param id path string true "Folder ID"
// @Param search query string false "Search by name"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /folders/{id} [get]
func (h *FolderHandler) Get(c *gin.Context) {
	filter := listFilter(c)
	content, err := h.folders.Get(c.Request.Context(), middleware.CurrentPrincipal(c), c.Param("id"), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, content, content.Pagination(filter))
}

// Rename godoc
// @Summary Rename folder
// @Tags Folders
// @Accept json
// @Produce json
// @Param id path string true "Folder ID"
// @Param payload body service.RenameFolderRequest true "New name"
// @Success 200 {object} response.Envelope
// @Router /folders/{id}/rename [patch]
func (h *FolderHandler) Rename(c *gin.Context) {
	var req service.RenameFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	folder, err := h.folders.Rename(c.Request.Context(), middleware.CurrentPrincipal(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, folder, nil)
}

// Move godoc
// @Summary Move folder
// @Tags Folders
// @Accept json
// @Produce json
// @Param id path string true "Folder ID"
// @Param payload body service.MoveFolderRequest true "Destination parent"
// @Success 200 {object} response.Envelope
// @Router /folders/{id}/move [patch]
func (h *FolderHandler) Move(c *gin.Context) {
	var req service.MoveFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	folder, err := h.folders.Move(c.Request.Context(), middleware.CurrentPrincipal(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, folder, nil)
}

// Trash godoc
// @Summary Move folder to trash
// @Tags Folders
// @Produce json
// @Param id path string true "Folder ID"
// @Success 200 {object} response.Envelope
// @Router /folders/{id} [delete]
func (h *FolderHandler) Trash(c *gin.Context) {
	summary, err := h.trash.TrashFolder(c.Request.Context(), middleware.CurrentPrincipal(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

func listFilter(c *gin.Context) models.ListChildrenFilter {
	var filter models.ListChildrenFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil {
		filter.PageSize = size
	}
	return filter
}
