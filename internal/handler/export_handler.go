package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/lc-billing-api/pkg/errors"
	"github.com/noah-isme/lc-billing-api/pkg/response"
)

type exportService interface {
	PaymentRegisterCSV(ctx context.Context, orgID, rawMonth string) ([]byte, string, error)
	PayrollPDF(ctx context.Context, orgID, rawMonth string) ([]byte, string, error)
}

// ExportHandler streams bookkeeping exports.
type ExportHandler struct {
	exports exportService
}

// NewExportHandler constructs ExportHandler.
func NewExportHandler(exports exportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// PaymentsCSV godoc
// @Summary Export the month's payment register as CSV
// @Tags Exports
// @Produce text/csv
// @Param month query string true "Month (YYYY-MM)"
// @Success 200 {file} file
// @Router /exports/payments [get]
func (h *ExportHandler) PaymentsCSV(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	payload, filename, err := h.exports.PaymentRegisterCSV(c.Request.Context(), claims.OrganizationID, c.Query("month"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/csv", payload)
}

// PayrollPDF godoc
// @Summary Export the month's payroll sheet as PDF
// @Tags Exports
// @Produce application/pdf
// @Param month query string true "Month (YYYY-MM)"
// @Success 200 {file} file
// @Router /exports/payroll [get]
func (h *ExportHandler) PayrollPDF(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	payload, filename, err := h.exports.PayrollPDF(c.Request.Context(), claims.OrganizationID, c.Query("month"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/pdf", payload)
}
