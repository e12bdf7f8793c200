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

const earningColumns = `id, organization_id, teacher_id, for_month, base_salary_snapshot,
	commission_amount, carry_over_commission, total_earning, calculated_at`

const carryOverColumns = `id, teacher_id, source_for_month, amount, applied_for_month, applied_at, created_at`

// EarningRepository owns teacher commission snapshots and their carryover rows.
type EarningRepository struct {
	db *sqlx.DB
}

// NewEarningRepository constructs the repository.
func NewEarningRepository(db *sqlx.DB) *EarningRepository {
	return &EarningRepository{db: db}
}

// FindByTeacherMonth fetches the snapshot for one teacher and month, or nil.
func (r *EarningRepository) FindByTeacherMonth(ctx context.Context, teacherID string, month time.Time) (*models.TeacherMonthlyEarning, error) {
	query := fmt.Sprintf(`SELECT %s FROM teacher_monthly_earnings
	WHERE teacher_id = $1 AND for_month = $2`, earningColumns)
	var earning models.TeacherMonthlyEarning
	if err := r.db.GetContext(ctx, &earning, query, teacherID, models.MonthStart(month)); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find earning snapshot: %w", err)
	}
	return &earning, nil
}

// SumPaidTuition totals amount_paid across PAID payments of the teacher's
// groups in the given month.
func (r *EarningRepository) SumPaidTuition(ctx context.Context, teacherID string, month time.Time) (decimal.Decimal, error) {
	const query = `SELECT COALESCE(SUM(p.amount_paid), 0) AS total
	FROM payments p
	JOIN groups g ON g.id = p.group_id
	WHERE g.teacher_id = $1 AND p.for_month = $2 AND p.status = 'PAID'`
	var total decimal.Decimal
	if err := r.db.GetContext(ctx, &total, query, teacherID, models.MonthStart(month)); err != nil {
		return decimal.Zero, fmt.Errorf("sum paid tuition: %w", err)
	}
	return total, nil
}

// ListUnappliedCarryOvers returns the teacher's unconsumed carryovers in
// creation order, which is the consumption order.
func (r *EarningRepository) ListUnappliedCarryOvers(ctx context.Context, teacherID string) ([]models.TeacherCommissionCarryOver, error) {
	query := fmt.Sprintf(`SELECT %s FROM teacher_commission_carryovers
	WHERE teacher_id = $1 AND applied_for_month IS NULL
	ORDER BY created_at ASC, id ASC`, carryOverColumns)
	var carryOvers []models.TeacherCommissionCarryOver
	if err := r.db.SelectContext(ctx, &carryOvers, query, teacherID); err != nil {
		return nil, fmt.Errorf("list carryovers: %w", err)
	}
	return carryOvers, nil
}

// InsertCarryOver records commission discovered after a month was paid out.
func (r *EarningRepository) InsertCarryOver(ctx context.Context, c *models.TeacherCommissionCarryOver) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO teacher_commission_carryovers
		(id, teacher_id, source_for_month, amount, created_at)
	VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.db.ExecContext(ctx, query,
		c.ID, c.TeacherID, models.MonthStart(c.SourceForMonth), c.Amount, c.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert carryover: %w", err)
	}
	return nil
}

// UpsertSnapshot writes the earnings snapshot and consumes the listed
// carryovers in a single transaction, so a carryover can never be marked
// applied without its amount reaching the stored total.
func (r *EarningRepository) UpsertSnapshot(ctx context.Context, e *models.TeacherMonthlyEarning, consumedCarryOverIDs []string) (err error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.ForMonth = models.MonthStart(e.ForMonth)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin earning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const upsertQuery = `INSERT INTO teacher_monthly_earnings
		(id, organization_id, teacher_id, for_month, base_salary_snapshot,
		 commission_amount, carry_over_commission, total_earning, calculated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (teacher_id, for_month) DO UPDATE SET
		base_salary_snapshot = EXCLUDED.base_salary_snapshot,
		commission_amount = EXCLUDED.commission_amount,
		carry_over_commission = EXCLUDED.carry_over_commission,
		total_earning = EXCLUDED.total_earning,
		calculated_at = EXCLUDED.calculated_at`
	if _, err = tx.ExecContext(ctx, upsertQuery,
		e.ID, e.OrganizationID, e.TeacherID, e.ForMonth, e.BaseSalarySnapshot,
		e.CommissionAmount, e.CarryOverCommission, e.TotalEarning, e.CalculatedAt,
	); err != nil {
		return fmt.Errorf("upsert earning snapshot: %w", err)
	}

	if len(consumedCarryOverIDs) > 0 {
		query, args, inErr := sqlx.In(`UPDATE teacher_commission_carryovers
		SET applied_for_month = ?, applied_at = ?
		WHERE id IN (?) AND applied_for_month IS NULL`, e.ForMonth, e.CalculatedAt, consumedCarryOverIDs)
		if inErr != nil {
			err = fmt.Errorf("build carryover update: %w", inErr)
			return err
		}
		query = tx.Rebind(query)
		if _, err = tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("consume carryovers: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit earning snapshot: %w", err)
	}
	return nil
}
