package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/lc-billing-api/internal/models"
)

const expenseColumns = `id, organization_id, amount, category, comment, spent_at, created_by_id, created_at`

// ExpenseRepository owns the operating-expense ledger.
type ExpenseRepository struct {
	db *sqlx.DB
}

// NewExpenseRepository constructs the repository.
func NewExpenseRepository(db *sqlx.DB) *ExpenseRepository {
	return &ExpenseRepository{db: db}
}

// Insert records a new expense.
func (r *ExpenseRepository) Insert(ctx context.Context, e *models.Expense) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO expenses (id, organization_id, amount, category, comment, spent_at, created_by_id, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := r.db.ExecContext(ctx, query,
		e.ID, e.OrganizationID, e.Amount, e.Category, e.Comment, e.SpentAt, e.CreatedByID, e.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert expense: %w", err)
	}
	return nil
}

// ListForRange returns expenses spent inside [from, to).
func (r *ExpenseRepository) ListForRange(ctx context.Context, orgID string, from, to time.Time) ([]models.Expense, error) {
	query := fmt.Sprintf(`SELECT %s FROM expenses
	WHERE organization_id = $1 AND spent_at >= $2 AND spent_at < $3
	ORDER BY spent_at DESC`, expenseColumns)
	var expenses []models.Expense
	if err := r.db.SelectContext(ctx, &expenses, query, orgID, from, to); err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return expenses, nil
}

// SumForRange totals expenses spent inside [from, to).
func (r *ExpenseRepository) SumForRange(ctx context.Context, orgID string, from, to time.Time) (decimal.Decimal, error) {
	const query = `SELECT COALESCE(SUM(amount), 0) FROM expenses
	WHERE organization_id = $1 AND spent_at >= $2 AND spent_at < $3`
	var total decimal.Decimal
	if err := r.db.GetContext(ctx, &total, query, orgID, from, to); err != nil {
		return decimal.Zero, fmt.Errorf("sum expenses: %w", err)
	}
	return total, nil
}
