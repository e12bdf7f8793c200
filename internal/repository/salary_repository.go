package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/lc-billing-api/internal/models"
)

const salaryColumns = `id, organization_id, user_id, for_month, base_salary, paid_amount,
	status, paid_at, comment, created_at, updated_at`

// SalaryRepository owns staff salary rows and their append-only payout ledger.
type SalaryRepository struct {
	db *sqlx.DB
}

// NewSalaryRepository constructs the repository.
func NewSalaryRepository(db *sqlx.DB) *SalaryRepository {
	return &SalaryRepository{db: db}
}

// FindByID fetches a salary row. sql.ErrNoRows passes through.
func (r *SalaryRepository) FindByID(ctx context.Context, id string) (*models.StaffSalary, error) {
	query := fmt.Sprintf(`SELECT %s FROM staff_salaries WHERE id = $1`, salaryColumns)
	var salary models.StaffSalary
	if err := r.db.GetContext(ctx, &salary, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find salary: %w", err)
	}
	return &salary, nil
}

// FindByUserMonth fetches the unique (user, month) row, or nil.
func (r *SalaryRepository) FindByUserMonth(ctx context.Context, userID string, month time.Time) (*models.StaffSalary, error) {
	query := fmt.Sprintf(`SELECT %s FROM staff_salaries WHERE user_id = $1 AND for_month = $2`, salaryColumns)
	var salary models.StaffSalary
	if err := r.db.GetContext(ctx, &salary, query, userID, models.MonthStart(month)); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find salary by user and month: %w", err)
	}
	return &salary, nil
}

// IsPaid reports whether the user's salary for the month is fully paid out.
// Missing rows count as not paid.
func (r *SalaryRepository) IsPaid(ctx context.Context, userID string, month time.Time) (bool, error) {
	const query = `SELECT EXISTS (
		SELECT 1 FROM staff_salaries WHERE user_id = $1 AND for_month = $2 AND status = 'PAID')`
	var paid bool
	if err := r.db.GetContext(ctx, &paid, query, userID, models.MonthStart(month)); err != nil {
		return false, fmt.Errorf("check salary paid: %w", err)
	}
	return paid, nil
}

// ListForMonth returns every salary row of the organization for the month.
func (r *SalaryRepository) ListForMonth(ctx context.Context, orgID string, month time.Time) ([]models.StaffSalary, error) {
	query := fmt.Sprintf(`SELECT %s FROM staff_salaries
	WHERE organization_id = $1 AND for_month = $2 ORDER BY created_at ASC`, salaryColumns)
	var salaries []models.StaffSalary
	if err := r.db.SelectContext(ctx, &salaries, query, orgID, models.MonthStart(month)); err != nil {
		return nil, fmt.Errorf("list salaries: %w", err)
	}
	return salaries, nil
}

// Insert creates a salary row. Unique-constraint conflicts are returned
// untranslated; ensureForMonth treats them as "already materialised".
func (r *SalaryRepository) Insert(ctx context.Context, s *models.StaffSalary) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	s.CreatedAt = now
	s.UpdatedAt = now

	const query = `INSERT INTO staff_salaries (id, organization_id, user_id, for_month,
		base_salary, paid_amount, status, comment, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	if _, err := r.db.ExecContext(ctx, query,
		s.ID, s.OrganizationID, s.UserID, models.MonthStart(s.ForMonth),
		s.BaseSalary, s.PaidAmount, s.Status, s.Comment, s.CreatedAt, s.UpdatedAt,
	); err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("insert salary: %w", err)
	}
	return nil
}

// RefreshBaseSalary syncs a teacher row with the latest earnings total. The
// status guard keeps PAID rows frozen.
func (r *SalaryRepository) RefreshBaseSalary(ctx context.Context, id string, base decimal.Decimal) error {
	const query = `UPDATE staff_salaries SET base_salary = $1, updated_at = $2
	WHERE id = $3 AND status <> 'PAID'`
	if _, err := r.db.ExecContext(ctx, query, base, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("refresh salary base: %w", err)
	}
	return nil
}

// Pay applies a payout inside one transaction: the row is locked, the paid
// amount clamped to base, status recomputed, and the payout event appended.
func (r *SalaryRepository) Pay(ctx context.Context, id string, amount decimal.Decimal, comment string, paidByID *string, now time.Time) (salary *models.StaffSalary, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin salary transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	lockQuery := fmt.Sprintf(`SELECT %s FROM staff_salaries WHERE id = $1 FOR UPDATE`, salaryColumns)
	var current models.StaffSalary
	if err = tx.GetContext(ctx, &current, lockQuery, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("lock salary row: %w", err)
	}

	paid := current.PaidAmount.Add(amount)
	if paid.GreaterThan(current.BaseSalary) {
		paid = current.BaseSalary
	}
	status := models.SalaryPartial
	if paid.GreaterThanOrEqual(current.BaseSalary) {
		status = models.SalaryPaid
	} else if paid.IsZero() {
		status = models.SalaryUnpaid
	}

	paidAt := current.PaidAt
	if status == models.SalaryPaid && paidAt == nil {
		at := now
		paidAt = &at
	}

	const updateQuery = `UPDATE staff_salaries SET paid_amount = $1, status = $2, paid_at = $3, updated_at = $4
	WHERE id = $5`
	if _, err = tx.ExecContext(ctx, updateQuery, paid, status, paidAt, now, id); err != nil {
		return nil, fmt.Errorf("update salary: %w", err)
	}

	const ledgerQuery = `INSERT INTO staff_salary_payments (id, staff_salary_id, amount, comment, paid_by_id, paid_at)
	VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err = tx.ExecContext(ctx, ledgerQuery, uuid.NewString(), id, amount, comment, paidByID, now); err != nil {
		return nil, fmt.Errorf("append salary payment: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit salary payment: %w", err)
	}

	current.PaidAmount = paid
	current.Status = status
	current.PaidAt = paidAt
	current.UpdatedAt = now
	return &current, nil
}

// ListPayments returns the payout history of one salary row, oldest first.
func (r *SalaryRepository) ListPayments(ctx context.Context, salaryID string) ([]models.StaffSalaryPayment, error) {
	const query = `SELECT id, staff_salary_id, amount, comment, paid_by_id, paid_at
	FROM staff_salary_payments WHERE staff_salary_id = $1 ORDER BY paid_at ASC`
	var payments []models.StaffSalaryPayment
	if err := r.db.SelectContext(ctx, &payments, query, salaryID); err != nil {
		return nil, fmt.Errorf("list salary payments: %w", err)
	}
	return payments, nil
}
