package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/lc-billing-api/internal/dto"
	"github.com/noah-isme/lc-billing-api/internal/models"
)

// IsUniqueViolation reports whether err is a Postgres unique-constraint error.
// The generator treats it as "row already exists" rather than a failure.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

const paymentColumns = `id, organization_id, student_id, group_id, for_month, amount_due, amount_paid,
	status, due_date, hard_due_date, lessons_planned, lessons_billable, planned_study_until,
	refunded_amount, refunded_at, created_at, updated_at`

// PaymentRepository owns the payments table and its receipt sub-ledger.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs the repository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// FindByID fetches a payment row. sql.ErrNoRows passes through for the service
// layer to translate.
func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE id = $1`, paymentColumns)
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find payment: %w", err)
	}
	return &payment, nil
}

// ExistsForMonth checks the (student, group, month) uniqueness key.
func (r *PaymentRepository) ExistsForMonth(ctx context.Context, studentID, groupID string, month time.Time) (bool, error) {
	const query = `SELECT EXISTS (
		SELECT 1 FROM payments WHERE student_id = $1 AND group_id = $2 AND for_month = $3)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, studentID, groupID, models.MonthStart(month)); err != nil {
		return false, fmt.Errorf("check payment existence: %w", err)
	}
	return exists, nil
}

const insertPaymentQuery = `INSERT INTO payments (id, organization_id, student_id, group_id, for_month,
		amount_due, amount_paid, status, due_date, hard_due_date, lessons_planned,
		lessons_billable, planned_study_until, refunded_amount, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

// Insert creates a new payment row. Unique-constraint conflicts are returned
// untranslated so callers can decide whether the race is benign.
func (r *PaymentRepository) Insert(ctx context.Context, p *models.Payment) error {
	stampNewPayment(p)
	if _, err := r.db.ExecContext(ctx, insertPaymentQuery, insertPaymentArgs(p)...); err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// InsertWithReferral creates the payment row and consumes the referrer's
// bonus flag in one transaction, so the discount and the flag can never
// diverge. A flag already consumed elsewhere surfaces as sql.ErrNoRows and
// nothing is written.
func (r *PaymentRepository) InsertWithReferral(ctx context.Context, p *models.Payment, referralID string, appliedAt time.Time) (err error) {
	stampNewPayment(p)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin payment transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, insertPaymentQuery, insertPaymentArgs(p)...); err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("insert payment: %w", err)
	}

	const applyQuery = `UPDATE student_referrals SET bonus_applied_at = $1, bonus_payment_id = $2
	WHERE id = $3 AND bonus_applied_at IS NULL`
	result, err := tx.ExecContext(ctx, applyQuery, appliedAt, p.ID, referralID)
	if err != nil {
		return fmt.Errorf("apply referral bonus: %w", err)
	}
	if affected, raErr := result.RowsAffected(); raErr == nil && affected == 0 {
		err = sql.ErrNoRows
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit payment with referral: %w", err)
	}
	return nil
}

func stampNewPayment(p *models.Payment) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
}

func insertPaymentArgs(p *models.Payment) []interface{} {
	return []interface{}{
		p.ID, p.OrganizationID, p.StudentID, p.GroupID, models.MonthStart(p.ForMonth),
		p.AmountDue, p.AmountPaid, p.Status, p.DueDate, p.HardDueDate, p.LessonsPlanned,
		p.LessonsBillable, p.PlannedStudyUntil, p.RefundedAmount, p.CreatedAt, p.UpdatedAt,
	}
}

// UpdateCollection persists the collection state mutated by the pay operations.
func (r *PaymentRepository) UpdateCollection(ctx context.Context, id string, amountPaid decimal.Decimal, status models.PaymentStatus) error {
	const query = `UPDATE payments SET amount_paid = $1, status = $2, updated_at = $3 WHERE id = $4`
	result, err := r.db.ExecContext(ctx, query, amountPaid, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update payment collection: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateRefund records a refund figure without touching amount_paid.
func (r *PaymentRepository) UpdateRefund(ctx context.Context, id string, refunded decimal.Decimal, refundedAt time.Time) error {
	const query = `UPDATE payments SET refunded_amount = $1, refunded_at = $2, updated_at = $3 WHERE id = $4`
	result, err := r.db.ExecContext(ctx, query, refunded, refundedAt, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update payment refund: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// List returns payments for an organization filtered by month, student, group
// and status.
func (r *PaymentRepository) List(ctx context.Context, orgID string, filter dto.PaymentFilter) ([]models.Payment, error) {
	query := strings.Builder{}
	fmt.Fprintf(&query, `SELECT %s FROM payments WHERE organization_id = $1`, paymentColumns)
	args := []interface{}{orgID}

	if filter.Month != "" {
		month, err := models.ParseMonth(filter.Month)
		if err != nil {
			return nil, err
		}
		args = append(args, month)
		fmt.Fprintf(&query, " AND for_month = $%d", len(args))
	}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		fmt.Fprintf(&query, " AND student_id = $%d", len(args))
	}
	if filter.GroupID != "" {
		args = append(args, filter.GroupID)
		fmt.Fprintf(&query, " AND group_id = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		fmt.Fprintf(&query, " AND status = $%d", len(args))
	}
	query.WriteString(" ORDER BY for_month DESC, created_at ASC")

	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query.String(), args...); err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return payments, nil
}

// CountPaid returns how many of a student's payments have ever reached PAID.
// The referral bonus unlocks on the first one.
func (r *PaymentRepository) CountPaid(ctx context.Context, studentID string) (int, error) {
	const query = `SELECT COUNT(*) FROM payments WHERE student_id = $1 AND status = 'PAID'`
	var count int
	if err := r.db.GetContext(ctx, &count, query, studentID); err != nil {
		return 0, fmt.Errorf("count paid payments: %w", err)
	}
	return count, nil
}

const receiptColumns = `id, payment_id, amount, status, received_by_id, received_at,
	confirmed_by_id, confirmed_at, receiver_commission_percent, receiver_commission_amount`

// InsertReceipt opens a pending cash-handling receipt.
func (r *PaymentRepository) InsertReceipt(ctx context.Context, receipt *models.PaymentReceipt) error {
	if receipt.ID == "" {
		receipt.ID = uuid.NewString()
	}
	const query = `INSERT INTO payment_receipts (id, payment_id, amount, status, received_by_id,
		received_at, receiver_commission_percent, receiver_commission_amount)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := r.db.ExecContext(ctx, query,
		receipt.ID, receipt.PaymentID, receipt.Amount, receipt.Status, receipt.ReceivedByID,
		receipt.ReceivedAt, receipt.ReceiverCommissionPercent, receipt.ReceiverCommissionAmount,
	); err != nil {
		return fmt.Errorf("insert receipt: %w", err)
	}
	return nil
}

// FindReceiptByID fetches a receipt row.
func (r *PaymentRepository) FindReceiptByID(ctx context.Context, id string) (*models.PaymentReceipt, error) {
	query := fmt.Sprintf(`SELECT %s FROM payment_receipts WHERE id = $1`, receiptColumns)
	var receipt models.PaymentReceipt
	if err := r.db.GetContext(ctx, &receipt, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find receipt: %w", err)
	}
	return &receipt, nil
}

// ResolveReceipt moves a pending receipt into a terminal state. The WHERE guard
// keeps already-resolved receipts immutable.
func (r *PaymentRepository) ResolveReceipt(ctx context.Context, id string, status models.ReceiptStatus, confirmedByID string, confirmedAt time.Time) error {
	const query = `UPDATE payment_receipts SET status = $1, confirmed_by_id = $2, confirmed_at = $3
	WHERE id = $4 AND status = 'PENDING'`
	result, err := r.db.ExecContext(ctx, query, status, confirmedByID, confirmedAt, id)
	if err != nil {
		return fmt.Errorf("resolve receipt: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListReceipts returns all receipts for one payment, oldest first.
func (r *PaymentRepository) ListReceipts(ctx context.Context, paymentID string) ([]models.PaymentReceipt, error) {
	query := fmt.Sprintf(`SELECT %s FROM payment_receipts WHERE payment_id = $1 ORDER BY received_at ASC`, receiptColumns)
	var receipts []models.PaymentReceipt
	if err := r.db.SelectContext(ctx, &receipts, query, paymentID); err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	return receipts, nil
}
