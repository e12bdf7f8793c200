package dto

import "github.com/shopspring/decimal"

// PaySalaryRequest records a payout against a salary row.
type PaySalaryRequest struct {
	Amount  decimal.Decimal `json:"amount" validate:"required"`
	Comment string          `json:"comment"`
}
