package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lc-billing-api/internal/dto"
	"github.com/noah-isme/lc-billing-api/internal/models"
	appErrors "github.com/noah-isme/lc-billing-api/pkg/errors"
	"github.com/noah-isme/lc-billing-api/pkg/response"
)

type expenseService interface {
	Create(ctx context.Context, orgID, actorID string, req dto.CreateExpenseRequest) (*models.Expense, error)
	ListForMonths(ctx context.Context, orgID, fromMonth, toMonth string) ([]models.Expense, error)
}

// ExpenseHandler exposes the operating-expense ledger endpoints.
type ExpenseHandler struct {
	expenses expenseService
}

// NewExpenseHandler constructs ExpenseHandler.
func NewExpenseHandler(expenses expenseService) *ExpenseHandler {
	return &ExpenseHandler{expenses: expenses}
}

// Create godoc
// @Summary Record an expense
// @Tags Expenses
// @Accept json
// @Produce json
// @Param payload body dto.CreateExpenseRequest true "Expense payload"
// @Success 201 {object} response.Envelope
// @Router /expenses [post]
func (h *ExpenseHandler) Create(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	expense, err := h.expenses.Create(c.Request.Context(), claims.OrganizationID, claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, expense)
}

// List godoc
// @Summary List expenses over a month range
// @Tags Expenses
// @Produce json
// @Param from query string true "Range start month (YYYY-MM)"
// @Param to query string false "Range end month (YYYY-MM), defaults to from"
// @Success 200 {object} response.Envelope
// @Router /expenses [get]
func (h *ExpenseHandler) List(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	expenses, err := h.expenses.ListForMonths(c.Request.Context(), claims.OrganizationID, c.Query("from"), c.Query("to"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, expenses, nil)
}
