package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SalaryStatus mirrors the payment collection states for payroll rows.
type SalaryStatus string

const (
	SalaryUnpaid  SalaryStatus = "UNPAID"
	SalaryPartial SalaryStatus = "PARTIAL"
	SalaryPaid    SalaryStatus = "PAID"
)

// StaffSalary is one compensated user's payroll row for one month, unique on
// (user, for_month). Teacher rows track the latest earnings total until the
// row is PAID, after which base_salary is frozen.
type StaffSalary struct {
	ID             string          `db:"id" json:"id"`
	OrganizationID string          `db:"organization_id" json:"organization_id"`
	UserID         string          `db:"user_id" json:"user_id"`
	ForMonth       time.Time       `db:"for_month" json:"for_month"`
	BaseSalary     decimal.Decimal `db:"base_salary" json:"base_salary"`
	PaidAmount     decimal.Decimal `db:"paid_amount" json:"paid_amount"`
	Status         SalaryStatus    `db:"status" json:"status"`
	PaidAt         *time.Time      `db:"paid_at" json:"paid_at,omitempty"`
	Comment        string          `db:"comment" json:"comment"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// StaffSalaryPayment is an append-only payout event against a salary row. Every
// pay call lands here, so partial payout history survives in full.
type StaffSalaryPayment struct {
	ID            string          `db:"id" json:"id"`
	StaffSalaryID string          `db:"staff_salary_id" json:"staff_salary_id"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	Comment       string          `db:"comment" json:"comment"`
	PaidByID      *string         `db:"paid_by_id" json:"paid_by_id,omitempty"`
	PaidAt        time.Time       `db:"paid_at" json:"paid_at"`
}
