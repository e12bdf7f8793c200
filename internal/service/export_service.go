package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/lc-billing-api/internal/dto"
	"github.com/noah-isme/lc-billing-api/internal/models"
	appErrors "github.com/noah-isme/lc-billing-api/pkg/errors"
	"github.com/noah-isme/lc-billing-api/pkg/export"
)

// ExportPaymentLister reads the payments feeding the register export.
type ExportPaymentLister interface {
	List(ctx context.Context, orgID string, filter dto.PaymentFilter) ([]models.Payment, error)
}

// ExportService renders the payment register as CSV and the payroll sheet as
// PDF for offline bookkeeping.
type ExportService struct {
	payments ExportPaymentLister
	salaries *SalaryService
	csv      *export.CSVExporter
	pdf      *export.PDFExporter
	logger   *zap.Logger
}

// NewExportService constructs the service.
func NewExportService(payments ExportPaymentLister, salaries *SalaryService, logger *zap.Logger) *ExportService {
	return &ExportService{
		payments: payments,
		salaries: salaries,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		logger:   logger,
	}
}

// PaymentRegisterCSV renders the month's payment register.
func (s *ExportService) PaymentRegisterCSV(ctx context.Context, orgID, rawMonth string) ([]byte, string, error) {
	if _, err := models.ParseMonth(rawMonth); err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "month must be formatted as YYYY-MM")
	}

	payments, err := s.payments.List(ctx, orgID, dto.PaymentFilter{Month: rawMonth})
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list payments")
	}

	headers := []string{"Payment ID", "Student", "Group", "Month", "Due", "Paid", "Refunded", "Status"}
	rows := make([]map[string]string, 0, len(payments))
	totalDue, totalPaid, totalRefunded := decimal.Zero, decimal.Zero, decimal.Zero
	for _, p := range payments {
		rows = append(rows, map[string]string{
			"Payment ID": p.ID,
			"Student":    p.StudentID,
			"Group":      p.GroupID,
			"Month":      models.FormatMonth(p.ForMonth),
			"Due":        p.AmountDue.StringFixed(2),
			"Paid":       p.AmountPaid.StringFixed(2),
			"Refunded":   p.RefundedAmount.StringFixed(2),
			"Status":     string(p.Status),
		})
		totalDue = totalDue.Add(p.AmountDue)
		totalPaid = totalPaid.Add(p.AmountPaid)
		totalRefunded = totalRefunded.Add(p.RefundedAmount)
	}
	footer := map[string]string{
		"Payment ID": "TOTAL",
		"Due":        totalDue.StringFixed(2),
		"Paid":       totalPaid.StringFixed(2),
		"Refunded":   totalRefunded.StringFixed(2),
	}

	payload, err := s.csv.Render(export.Dataset{Headers: headers, Rows: rows, Footer: footer})
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "render csv")
	}
	return payload, fmt.Sprintf("payments-%s.csv", rawMonth), nil
}

// PayrollPDF renders the month's payroll sheet.
func (s *ExportService) PayrollPDF(ctx context.Context, orgID, rawMonth string) ([]byte, string, error) {
	month, err := models.ParseMonth(rawMonth)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "month must be formatted as YYYY-MM")
	}

	salaries, err := s.salaries.ListForMonth(ctx, orgID, month)
	if err != nil {
		return nil, "", err
	}

	headers := []string{"User", "Month", "Base", "Paid", "Remaining", "Status"}
	rows := make([]map[string]string, 0, len(salaries))
	totalBase, totalPaid := decimal.Zero, decimal.Zero
	for _, row := range salaries {
		rows = append(rows, map[string]string{
			"User":      row.UserID,
			"Month":     models.FormatMonth(row.ForMonth),
			"Base":      row.BaseSalary.StringFixed(2),
			"Paid":      row.PaidAmount.StringFixed(2),
			"Remaining": row.BaseSalary.Sub(row.PaidAmount).StringFixed(2),
			"Status":    string(row.Status),
		})
		totalBase = totalBase.Add(row.BaseSalary)
		totalPaid = totalPaid.Add(row.PaidAmount)
	}
	footer := map[string]string{
		"User":      "TOTAL",
		"Base":      totalBase.StringFixed(2),
		"Paid":      totalPaid.StringFixed(2),
		"Remaining": totalBase.Sub(totalPaid).StringFixed(2),
	}

	payload, err := s.pdf.Render(export.Dataset{Headers: headers, Rows: rows, Footer: footer}, fmt.Sprintf("Payroll %s", rawMonth))
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "render pdf")
	}
	return payload, fmt.Sprintf("payroll-%s.pdf", rawMonth), nil
}
