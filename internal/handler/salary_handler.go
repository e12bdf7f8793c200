package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/lc-billing-api/internal/dto"
	"github.com/noah-isme/lc-billing-api/internal/models"
	appErrors "github.com/noah-isme/lc-billing-api/pkg/errors"
	"github.com/noah-isme/lc-billing-api/pkg/response"
)

type salaryService interface {
	ListForMonth(ctx context.Context, orgID string, month time.Time) ([]models.StaffSalary, error)
	Pay(ctx context.Context, salaryID string, amount decimal.Decimal, comment, actorID string) (*models.StaffSalary, error)
	ListPayments(ctx context.Context, salaryID string) ([]models.StaffSalaryPayment, error)
}

// SalaryHandler exposes the staff salary ledger endpoints.
type SalaryHandler struct {
	salaries salaryService
}

// NewSalaryHandler constructs SalaryHandler.
func NewSalaryHandler(salaries salaryService) *SalaryHandler {
	return &SalaryHandler{salaries: salaries}
}

// List godoc
// @Summary List the month's payroll, materialising missing rows
// @Tags Salaries
// @Produce json
// @Param month query string true "Month (YYYY-MM)"
// @Success 200 {object} response.Envelope
// @Router /salaries [get]
func (h *SalaryHandler) List(c *gin.Context) {
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
	salaries, err := h.salaries.ListForMonth(c.Request.Context(), claims.OrganizationID, month)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, salaries, nil)
}

// Pay godoc
// @Summary Apply a payout against a salary row
// @Tags Salaries
// @Accept json
// @Produce json
// @Param id path string true "Salary row ID"
// @Param payload body dto.PaySalaryRequest true "Payout payload"
// @Success 200 {object} response.Envelope
// @Router /salaries/{id}/pay [post]
func (h *SalaryHandler) Pay(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.PaySalaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	salary, err := h.salaries.Pay(c.Request.Context(), c.Param("id"), req.Amount, req.Comment, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, salary, nil)
}

// ListPayments godoc
// @Summary List the payout history of a salary row
// @Tags Salaries
// @Produce json
// @Param id path string true "Salary row ID"
// @Success 200 {object} response.Envelope
// @Router /salaries/{id}/payments [get]
func (h *SalaryHandler) ListPayments(c *gin.Context) {
	payments, err := h.salaries.ListPayments(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payments, nil)
}
