package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tomengsanchez/asset-manager-api/internal/service"
	"github.com/tomengsanchez/asset-manager-api/pkg/response"
)

// DashboardHandler serves aggregate dashboard data.
type DashboardHandler struct {
	dashboard *service.DashboardService
}

// NewDashboardHandler constructs DashboardHandler.
func NewDashboardHandler(dashboard *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

// Summary godoc
// @Summary Dashboard summary counts
// @Description Asset and repair counts grouped by status, holder and category
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/summary [get]
func (h *DashboardHandler) Summary(c *gin.Context) {
	summary, err := h.dashboard.Summary(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary)
}

// Brands godoc
// @Summary Distinct asset brands
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/brands [get]
func (h *DashboardHandler) Brands(c *gin.Context) {
	brands, err := h.dashboard.Brands(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, brands)
}
