package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/drivehub-api/internal/middleware"
	"github.com/noah-isme/drivehub-api/internal/models"
	"github.com/noah-isme/drivehub-api/internal/service"
	appErrors "github.com/noah-isme/drivehub-api/pkg/errors"
	"github.com/noah-isme/drivehub-api/pkg/response"
)

// CollaboratorHandler exposes role-grant endpoints for files and folders.
type CollaboratorHandler struct {
	access *service.AccessService
}

// NewCollaboratorHandler constructs CollaboratorHandler.
func NewCollaboratorHandler(access *service.AccessService) *CollaboratorHandler {
	return &CollaboratorHandler{access: access}
}

// Grant godoc
// @Summary Grant a collaborator role
// @Tags Collaborators
// @Accept json
// @Produce json
// @Param payload body service.GrantCollaboratorRequest true "Grant payload"
// @Success 201 {object} response.Envelope
// @Router /collaborators [post]
func (h *CollaboratorHandler) Grant(c *gin.Context) {
	var req service.GrantCollaboratorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	grant, err := h.access.Grant(c.Request.Context(), middleware.CurrentPrincipal(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, grant)
}

// List godoc
// @Summary List collaborators on a resource
// @Tags Collaborators
// @Produce json
// @Param resource_type query string true "file or folder"
// @Param resource_id query string true "Resource ID"
// @Success 200 {object} response.Envelope
// @Router /collaborators [get]
func (h *CollaboratorHandler) List(c *gin.Context) {
	resourceType := models.ResourceType(c.Query("resource_type"))
	resourceID := c.Query("resource_id")
	if resourceID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "resource_id is required"))
		return
	}
	grants, err := h.access.ListCollaborators(c.Request.Context(), middleware.CurrentPrincipal(c), resourceType, resourceID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grants, nil)
}

// Revoke godoc
// @Summary Revoke a collaborator role
// @Tags Collaborators
// @Produce json
// @Param resource_type query string true "file or folder"
// @Param resource_id query string true "Resource ID"
// @Param user_id query string true "Grantee user ID"
// @Success 204
// @Router /collaborators [delete]
func (h *CollaboratorHandler) Revoke(c *gin.Context) {
	resourceType := models.ResourceType(c.Query("resource_type"))
	resourceID := c.Query("resource_id")
	userID := c.Query("user_id")
	if resourceID == "" || userID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "resource_id and user_id are required"))
		return
	}
	if err := h.access.Revoke(c.Request.Context(), middleware.CurrentPrincipal(c), resourceType, resourceID, userID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
