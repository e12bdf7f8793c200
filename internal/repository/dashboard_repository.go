package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lc-billing-api/internal/dto"
)

// DashboardRepository runs the aggregate queries behind the summary endpoint.
// All ranges are half-open: [from, to).
type DashboardRepository struct {
	db *sqlx.DB
}

// NewDashboardRepository constructs the repository.
func NewDashboardRepository(db *sqlx.DB) *DashboardRepository {
	return &DashboardRepository{db: db}
}

// PaymentTotals rolls up the payment ledger for months inside [from, to).
func (r *DashboardRepository) PaymentTotals(ctx context.Context, orgID string, from, to time.Time) (dto.PaymentTotals, error) {
	const query = `SELECT
		COALESCE(SUM(amount_due), 0) AS due,
		COALESCE(SUM(amount_paid), 0) AS paid,
		COUNT(*) FILTER (WHERE status = 'UNPAID') AS unpaid_count,
		COUNT(*) FILTER (WHERE status = 'PARTIAL') AS partial_count,
		COUNT(*) FILTER (WHERE status = 'PAID') AS paid_count
	FROM payments
	WHERE organization_id = $1 AND for_month >= $2 AND for_month < $3`
	var totals dto.PaymentTotals
	if err := r.db.GetContext(ctx, &totals, query, orgID, from, to); err != nil {
		return dto.PaymentTotals{}, fmt.Errorf("aggregate payments: %w", err)
	}
	totals.Remaining = totals.Due.Sub(totals.Paid)
	return totals, nil
}

// PayrollTotals rolls up the staff salary ledger for months inside [from, to).
func (r *DashboardRepository) PayrollTotals(ctx context.Context, orgID string, from, to time.Time) (dto.PayrollTotals, error) {
	const query = `SELECT
		COALESCE(SUM(base_salary), 0) AS due,
		COALESCE(SUM(paid_amount), 0) AS paid,
		COUNT(*) FILTER (WHERE status = 'UNPAID') AS unpaid_count,
		COUNT(*) FILTER (WHERE status = 'PARTIAL') AS partial_count,
		COUNT(*) FILTER (WHERE status = 'PAID') AS paid_count
	FROM staff_salaries
	WHERE organization_id = $1 AND for_month >= $2 AND for_month < $3`
	var totals dto.PayrollTotals
	if err := r.db.GetContext(ctx, &totals, query, orgID, from, to); err != nil {
		return dto.PayrollTotals{}, fmt.Errorf("aggregate payroll: %w", err)
	}
	totals.Remaining = totals.Due.Sub(totals.Paid)
	return totals, nil
}

// StudentCounts reports population movement inside [from, to): currently
// active students, students activated in the range, students stopped in it.
func (r *DashboardRepository) StudentCounts(ctx context.Context, orgID string, from, to time.Time) (dto.StudentCounts, error) {
	const query = `SELECT
		COUNT(*) FILTER (WHERE status = 'ACTIVE') AS active,
		COUNT(*) FILTER (WHERE activated_at >= $2 AND activated_at < $3) AS added,
		COUNT(*) FILTER (WHERE stopped_at >= $2 AND stopped_at < $3) AS stopped
	FROM students
	WHERE organization_id = $1`
	var counts dto.StudentCounts
	if err := r.db.GetContext(ctx, &counts, query, orgID, from, to); err != nil {
		return dto.StudentCounts{}, fmt.Errorf("aggregate students: %w", err)
	}
	return counts, nil
}
