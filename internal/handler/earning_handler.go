package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lc-billing-api/internal/models"
	appErrors "github.com/noah-isme/lc-billing-api/pkg/errors"
	"github.com/noah-isme/lc-billing-api/pkg/response"
)

type earningService interface {
	Get(ctx context.Context, teacherID string, month time.Time) (*models.TeacherMonthlyEarning, error)
	Calculate(ctx context.Context, orgID, teacherID string, month time.Time, force bool) (*models.TeacherMonthlyEarning, error)
}

// EarningHandler exposes teacher earnings endpoints.
type EarningHandler struct {
	earnings earningService
}

// NewEarningHandler constructs EarningHandler.
func NewEarningHandler(earnings earningService) *EarningHandler {
	return &EarningHandler{earnings: earnings}
}

// Get godoc
// @Summary Get a teacher's stored earnings snapshot
// @Tags Earnings
// @Produce json
// @Param teacherId path string true "Teacher ID"
// @Param month query string true "Month (YYYY-MM)"
// @Success 200 {object} response.Envelope
// @Router /earnings/{teacherId} [get]
func (h *EarningHandler) Get(c *gin.Context) {
	month, err := models.ParseMonth(c.Query("month"))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "month must be formatted as YYYY-MM"))
		return
	}
	earning, err := h.earnings.Get(c.Request.Context(), c.Param("teacherId"), month)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, earning, nil)
}

// Calculate godoc
// @Summary Calculate a teacher's earnings for a month
// @Tags Earnings
// @Produce json
// @Param teacherId path string true "Teacher ID"
// @Param month query string true "Month (YYYY-MM)"
// @Param force query bool false "Recompute an existing snapshot"
// @Success 200 {object} response.Envelope
// @Router /earnings/{teacherId}/calculate [post]
func (h *EarningHandler) Calculate(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	month, err := models.ParseMonth(c.Query("month"))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "month must be formatted as YYYY-MM"))
		return
	}
	force, _ := strconv.ParseBool(c.DefaultQuery("force", "false"))

	earning, err := h.earnings.Calculate(c.Request.Context(), claims.OrganizationID, c.Param("teacherId"), month, force)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, earning, nil)
}
