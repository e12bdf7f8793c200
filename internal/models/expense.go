package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Expense is an operating cost entry feeding the dashboard's net cashflow.
type Expense struct {
	ID             string          `db:"id" json:"id"`
	OrganizationID string          `db:"organization_id" json:"organization_id"`
	Amount         decimal.Decimal `db:"amount" json:"amount"`
	Category       string          `db:"category" json:"category"`
	Comment        string          `db:"comment" json:"comment"`
	SpentAt        time.Time       `db:"spent_at" json:"spent_at"`
	CreatedByID    *string         `db:"created_by_id" json:"created_by_id,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}
