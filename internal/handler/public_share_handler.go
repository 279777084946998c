package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/drivehub-api/internal/service"
	appErrors "github.com/noah-isme/drivehub-api/pkg/errors"
	"github.com/noah-isme/drivehub-api/pkg/response"
)

// PublicShareHandler serves the anonymous share-link routes. The password
// travels in the X-Share-Password header so it never lands in access logs.
type PublicShareHandler struct {
	shares  *service.ShareService
	metrics *service.MetricsService
}

// NewPublicShareHandler constructs PublicShareHandler.
func NewPublicShareHandler(shares *service.ShareService, metrics *service.MetricsService) *PublicShareHandler {
	return &PublicShareHandler{shares: shares, metrics: metrics}
}

// Resolve godoc
// @Summary Resolve a share token
// @Tags Public
// @Produce json
// @Param token path string true "Share token"
// @Param X-Share-Password header string false "Link password"
// @Success 200 {object} response.Envelope
// @Router /s/{token} [get]
func (h *PublicShareHandler) Resolve(c *gin.Context) {
	info, err := h.shares.ResolvePublic(c.Request.Context(), c.Param("token"), sharePassword(c))
	if err != nil {
		h.metrics.RecordShareResolution(outcomeOf(err))
		response.Error(c, err)
		return
	}
	h.metrics.RecordShareResolution("ok")
	response.JSON(c, http.StatusOK, info, nil)
}

// Browse godoc
// @Summary Browse a shared folder
// @Tags Public
// @Produce json
// @Param token path string true "Share token"
// @Param folder_id query string false "Subfolder inside the shared tree"
// @Param X-Share-Password header string false "Link password"
// @Success 200 {object} response.Envelope
// @Router /s/{token}/browse [get]
func (h *PublicShareHandler) Browse(c *gin.Context) {
	filter := listFilter(c)
	content, err := h.shares.BrowsePublic(c.Request.Context(), c.Param("token"), sharePassword(c), c.Query("folder_id"), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, content, content.Pagination(filter))
}

// Download godoc
// @Summary Download through a share token
// @Tags Public
// @Produce json
// @Param token path string true "Share token"
// @Param file_id query string false "File inside a folder link"
// @Param X-Share-Password header string false "Link password"
// @Success 200 {object} response.Envelope
// @Router /s/{token}/download [post]
func (h *PublicShareHandler) Download(c *gin.Context) {
	ticket, err := h.shares.DownloadPublic(c.Request.Context(), c.Param("token"), sharePassword(c), c.Query("file_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordDownload("share")
	response.JSON(c, http.StatusOK, ticket, nil)
}

func sharePassword(c *gin.Context) string {
	return c.GetHeader("X-Share-Password")
}

func outcomeOf(err error) string {
	appErr := appErrors.FromError(err)
	switch appErr.Code {
	case appErrors.ErrNotFound.Code:
		return "not_found"
	case appErrors.ErrExhausted.Code:
		return "exhausted"
	case appErrors.ErrUnauthorized.Code:
		return "password"
	case appErrors.ErrForbidden.Code:
		return "denied"
	default:
		return "error"
	}
}
