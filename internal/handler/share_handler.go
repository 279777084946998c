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

// ShareHandler exposes the owner-facing share link endpoints.
type ShareHandler struct {
	shares *service.ShareService
}

// NewShareHandler constructs ShareHandler.
func NewShareHandler(shares *service.ShareService) *ShareHandler {
	return &ShareHandler{shares: shares}
}

type shareLinkView struct {
	models.ShareLink
	URL string `json:"url"`
}

func (h *ShareHandler) view(link *models.ShareLink) shareLinkView {
	return shareLinkView{ShareLink: *link, URL: h.shares.PublicURL(link)}
}

// Create godoc
// @Summary Create share link
// @Tags Shares
// @Accept json
// @Produce json
// @Param payload body service.CreateShareRequest true "Share payload"
// @Success 201 {object} response.Envelope
// @Router /shares [post]
func (h *ShareHandler) Create(c *gin.Context) {
	var req service.CreateShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	link, err := h.shares.Create(c.Request.Context(), middleware.CurrentPrincipal(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, h.view(link))
}

// List godoc
// @Summary List my share links
// @Tags Shares
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /shares [get]
func (h *ShareHandler) List(c *gin.Context) {
	links, err := h.shares.List(c.Request.Context(), middleware.CurrentPrincipal(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	views := make([]shareLinkView, 0, len(links))
	for i := range links {
		views = append(views, h.view(&links[i]))
	}
	response.JSON(c, http.StatusOK, views, nil)
}

// Update godoc
// @Summary Update share link
// @Tags Shares
// @Accept json
// @Produce json
// @Param id path string true "Share link ID"
// @Param payload body service.UpdateShareRequest true "Changes"
// @Success 200 {object} response.Envelope
// @Router /shares/{id} [patch]
func (h *ShareHandler) Update(c *gin.Context) {
	var req service.UpdateShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	link, err := h.shares.Update(c.Request.Context(), middleware.CurrentPrincipal(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, h.view(link), nil)
}

// Delete godoc
// @Summary Delete share link
// @Tags Shares
// @Produce json
// @Param id path string true "Share link ID"
// @Success 204
// @Router /shares/{id} [delete]
func (h *ShareHandler) Delete(c *gin.Context) {
	if err := h.shares.Delete(c.Request.Context(), middleware.CurrentPrincipal(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
