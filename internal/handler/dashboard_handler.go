package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/drivehub-api/internal/middleware"
	"github.com/noah-isme/drivehub-api/internal/service"
	"github.com/noah-isme/drivehub-api/pkg/response"
)

// DashboardHandler exposes the stats rollup endpoints.
type DashboardHandler struct {
	stats *service.StatsService
}

// NewDashboardHandler constructs DashboardHandler.
func NewDashboardHandler(stats *service.StatsService) *DashboardHandler {
	return &DashboardHandler{stats: stats}
}

// Stats godoc
// @Summary Get my usage stats
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/stats [get]
func (h *DashboardHandler) Stats(c *gin.Context) {
	stats, err := h.stats.Get(c.Request.Context(), middleware.CurrentPrincipal(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Overview godoc
// @Summary Get platform-wide totals
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/overview [get]
func (h *DashboardHandler) Overview(c *gin.Context) {
	overview, err := h.stats.Overview(c.Request.Context(), middleware.CurrentPrincipal(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, overview, nil)
}
