package dto

import "github.com/shopspring/decimal"

// GeneratePaymentsRequest triggers synchronous payment generation for a month.
type GeneratePaymentsRequest struct {
	Month string `json:"month" validate:"required"`
}

// GenerationResult summarises one generator run.
type GenerationResult struct {
	Month     string `json:"month"`
	Created   int    `json:"created"`
	Skipped   int    `json:"skipped"`
	Conflicts int    `json:"conflicts"`
}

// PayPartialRequest adds a partial amount to a payment.
type PayPartialRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"required"`
}

// RefundRequest records a refund against a payment.
type RefundRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"required"`
}

// CreateReceiptRequest opens a pending cash-handling receipt.
type CreateReceiptRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"required"`
}

// PaymentFilter narrows payment listings.
type PaymentFilter struct {
	Month     string
	StudentID string
	GroupID   string
	Status    string
	Page      int
	PageSize  int
}
