package dto

import "github.com/shopspring/decimal"

// PaymentTotals aggregates the payment ledger over a range.
type PaymentTotals struct {
	Due          decimal.Decimal `db:"due" json:"due"`
	Paid         decimal.Decimal `db:"paid" json:"paid"`
	Remaining    decimal.Decimal `json:"remaining"`
	UnpaidCount  int             `db:"unpaid_count" json:"unpaid_count"`
	PartialCount int             `db:"partial_count" json:"partial_count"`
	PaidCount    int             `db:"paid_count" json:"paid_count"`
}

// PayrollTotals aggregates the staff salary ledger over a range.
type PayrollTotals struct {
	Due          decimal.Decimal `db:"due" json:"due"`
	Paid         decimal.Decimal `db:"paid" json:"paid"`
	Remaining    decimal.Decimal `json:"remaining"`
	UnpaidCount  int             `db:"unpaid_count" json:"unpaid_count"`
	PartialCount int             `db:"partial_count" json:"partial_count"`
	PaidCount    int             `db:"paid_count" json:"paid_count"`
}

// StudentCounts summarises the student population inside a range.
type StudentCounts struct {
	Active  int `db:"active" json:"active"`
	Added   int `db:"added" json:"added"`
	Stopped int `db:"stopped" json:"stopped"`
}

// DashboardSummary is the read-only rollup for an organization and month range.
type DashboardSummary struct {
	FromMonth   string          `json:"from_month"`
	ToMonth     string          `json:"to_month"`
	Payments    PaymentTotals   `json:"payments"`
	Expenses    decimal.Decimal `json:"expenses_total"`
	Payroll     PayrollTotals   `json:"payroll"`
	Students    StudentCounts   `json:"students"`
	NetCashflow decimal.Decimal `json:"net_cashflow"`
}
