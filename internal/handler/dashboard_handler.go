package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lc-billing-api/internal/dto"
	appErrors "github.com/noah-isme/lc-billing-api/pkg/errors"
	"github.com/noah-isme/lc-billing-api/pkg/response"
)

type dashboardService interface {
	Summary(ctx context.Context, orgID, fromMonth, toMonth string) (*dto.DashboardSummary, error)
}

// DashboardHandler exposes the read-only financial summary.
type DashboardHandler struct {
	dashboard dashboardService
}

// NewDashboardHandler constructs DashboardHandler.
func NewDashboardHandler(dashboard dashboardService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

// Summary godoc
// @Summary Financial summary over a month range
// @Tags Dashboard
// @Produce json
// @Param from query string true "Range start month (YYYY-MM)"
// @Param to query string false "Range end month (YYYY-MM), defaults to from"
// @Success 200 {object} response.Envelope
// @Router /dashboard/summary [get]
func (h *DashboardHandler) Summary(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	summary, err := h.dashboard.Summary(c.Request.Context(), claims.OrganizationID, c.Query("from"), c.Query("to"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
