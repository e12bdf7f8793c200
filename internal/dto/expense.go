package dto

import "github.com/shopspring/decimal"

// CreateExpenseRequest records an operating cost entry.
type CreateExpenseRequest struct {
	Amount   decimal.Decimal `json:"amount" validate:"required"`
	Category string          `json:"category" validate:"required"`
	Comment  string          `json:"comment"`
	SpentAt  string          `json:"spent_at"`
}
