package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TeacherMonthlyEarning is the commission snapshot for one teacher and month,
// unique on (teacher, for_month). Once the matching staff salary row is PAID
// the snapshot is frozen; later commission growth becomes a carryover row.
type TeacherMonthlyEarning struct {
	ID                  string          `db:"id" json:"id"`
	OrganizationID      string          `db:"organization_id" json:"organization_id"`
	TeacherID           string          `db:"teacher_id" json:"teacher_id"`
	ForMonth            time.Time       `db:"for_month" json:"for_month"`
	BaseSalarySnapshot  decimal.Decimal `db:"base_salary_snapshot" json:"base_salary_snapshot"`
	CommissionAmount    decimal.Decimal `db:"commission_amount" json:"commission_amount"`
	CarryOverCommission decimal.Decimal `db:"carry_over_commission" json:"carry_over_commission"`
	TotalEarning        decimal.Decimal `db:"total_earning" json:"total_earning"`
	CalculatedAt        time.Time       `db:"calculated_at" json:"calculated_at"`
}

// TeacherCommissionCarryOver defers commission discovered after a month was
// already paid out. AppliedForMonth stays nil until a later calculation
// consumes the row; consumption happens at most once and in creation order.
type TeacherCommissionCarryOver struct {
	ID              string          `db:"id" json:"id"`
	TeacherID       string          `db:"teacher_id" json:"teacher_id"`
	SourceForMonth  time.Time       `db:"source_for_month" json:"source_for_month"`
	Amount          decimal.Decimal `db:"amount" json:"amount"`
	AppliedForMonth *time.Time      `db:"applied_for_month" json:"applied_for_month,omitempty"`
	AppliedAt       *time.Time      `db:"applied_at" json:"applied_at,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}
