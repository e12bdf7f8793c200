package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/lc-billing-api/internal/dto"
	"github.com/noah-isme/lc-billing-api/internal/models"
	appErrors "github.com/noah-isme/lc-billing-api/pkg/errors"
	"github.com/noah-isme/lc-billing-api/pkg/response"
)

type paymentService interface {
	Get(ctx context.Context, id string) (*models.Payment, error)
	List(ctx context.Context, orgID string, filter dto.PaymentFilter) ([]models.Payment, error)
	MarkFullyPaid(ctx context.Context, id, actorID string) (*models.Payment, error)
	PayPartial(ctx context.Context, id string, amount decimal.Decimal, actorID string) (*models.Payment, error)
	Refund(ctx context.Context, id string, amount decimal.Decimal, actorID string) (*models.Payment, error)
	CreateReceipt(ctx context.Context, paymentID string, amount decimal.Decimal, receivedByID string) (*models.PaymentReceipt, error)
	ListReceipts(ctx context.Context, paymentID string) ([]models.PaymentReceipt, error)
	ConfirmReceipt(ctx context.Context, receiptID, confirmerID string) (*models.PaymentReceipt, error)
	RejectReceipt(ctx context.Context, receiptID, confirmerID string) (*models.PaymentReceipt, error)
}

type paymentGenerator interface {
	Generate(ctx context.Context, orgID, actorID, rawMonth string) (*dto.GenerationResult, error)
}

// PaymentHandler exposes payment generation and collection endpoints.
type PaymentHandler struct {
	payments  paymentService
	generator paymentGenerator
}

// NewPaymentHandler constructs PaymentHandler.
func NewPaymentHandler(payments paymentService, generator paymentGenerator) *PaymentHandler {
	return &PaymentHandler{payments: payments, generator: generator}
}

// Generate godoc
// @Summary Generate monthly payments
// @Tags Payments
// @Accept json
// @Produce json
// @Param payload body dto.GeneratePaymentsRequest true "Generation payload"
// @Success 200 {object} response.Envelope
// @Router /payments/generate [post]
func (h *PaymentHandler) Generate(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.GeneratePaymentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.generator.Generate(c.Request.Context(), claims.OrganizationID, claims.UserID, req.Month)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// List godoc
// @Summary List payments
// @Tags Payments
// @Produce json
// @Param month query string false "Filter by month (YYYY-MM)"
// @Param studentId query string false "Filter by student"
// @Param groupId query string false "Filter by group"
// @Param status query string false "Filter by status"
// @Success 200 {object} response.Envelope
// @Router /payments [get]
func (h *PaymentHandler) List(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var filter dto.PaymentFilter
	filter.Month = c.Query("month")
	filter.StudentID = c.Query("studentId")
	filter.GroupID = c.Query("groupId")
	filter.Status = strings.ToUpper(c.Query("status"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil {
		filter.PageSize = size
	}

	payments, err := h.payments.List(c.Request.Context(), claims.OrganizationID, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payments, nil)
}

// Get godoc
// @Summary Get payment
// @Tags Payments
// @Produce json
// @Param id path string true "Payment ID"
// @Success 200 {object} response.Envelope
// @Router /payments/{id} [get]
func (h *PaymentHandler) Get(c *gin.Context) {
	payment, err := h.payments.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payment, nil)
}

// Pay godoc
// @Summary Mark payment fully paid
// @Tags Payments
// @Produce json
// @Param id path string true "Payment ID"
// @Success 200 {object} response.Envelope
// @Router /payments/{id}/pay [post]
func (h *PaymentHandler) Pay(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	payment, err := h.payments.MarkFullyPaid(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payment, nil)
}

// PayPartial godoc
// @Summary Add a partial payment
// @Tags Payments
// @Accept json
// @Produce json
// @Param id path string true "Payment ID"
// @Param payload body dto.PayPartialRequest true "Partial payment payload"
// @Success 200 {object} response.Envelope
// @Router /payments/{id}/pay-partial [post]
func (h *PaymentHandler) PayPartial(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.PayPartialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	payment, err := h.payments.PayPartial(c.Request.Context(), c.Param("id"), req.Amount, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payment, nil)
}

// Refund godoc
// @Summary Refund a payment
// @Tags Payments
// @Accept json
// @Produce json
// @Param id path string true "Payment ID"
// @Param payload body dto.RefundRequest true "Refund payload"
// @Success 200 {object} response.Envelope
// @Router /payments/{id}/refund [post]
func (h *PaymentHandler) Refund(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	payment, err := h.payments.Refund(c.Request.Context(), c.Param("id"), req.Amount, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payment, nil)
}

// CreateReceipt godoc
// @Summary Open a cash-handling receipt
// @Tags Receipts
// @Accept json
// @Produce json
// @Param id path string true "Payment ID"
// @Param payload body dto.CreateReceiptRequest true "Receipt payload"
// @Success 201 {object} response.Envelope
// @Router /payments/{id}/receipts [post]
func (h *PaymentHandler) CreateReceipt(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	receipt, err := h.payments.CreateReceipt(c.Request.Context(), c.Param("id"), req.Amount, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, receipt)
}

// ListReceipts godoc
// @Summary List a payment's receipts
// @Tags Receipts
// @Produce json
// @Param id path string true "Payment ID"
// @Success 200 {object} response.Envelope
// @Router /payments/{id}/receipts [get]
func (h *PaymentHandler) ListReceipts(c *gin.Context) {
	receipts, err := h.payments.ListReceipts(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, receipts, nil)
}

// ConfirmReceipt godoc
// @Summary Confirm a pending receipt
// @Tags Receipts
// @Produce json
// @Param receiptId path string true "Receipt ID"
// @Success 200 {object} response.Envelope
// @Router /receipts/{receiptId}/confirm [post]
func (h *PaymentHandler) ConfirmReceipt(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	receipt, err := h.payments.ConfirmReceipt(c.Request.Context(), c.Param("receiptId"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, receipt, nil)
}

// RejectReceipt godoc
// @Summary Reject a pending receipt
// @Tags Receipts
// @Produce json
// @Param receiptId path string true "Receipt ID"
// @Success 200 {object} response.Envelope
// @Router /receipts/{receiptId}/reject [post]
func (h *PaymentHandler) RejectReceipt(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	receipt, err := h.payments.RejectReceipt(c.Request.Context(), c.Param("receiptId"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, receipt, nil)
}
