package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/lc-billing-api/internal/dto"
	"github.com/noah-isme/lc-billing-api/internal/models"
)

type expenseLedgerStub struct {
	inserted []*models.Expense
	listed   []models.Expense
	lastFrom time.Time
	lastTo   time.Time
}

func (s *expenseLedgerStub) Insert(ctx context.Context, e *models.Expense) error {
	e.ID = "exp-1"
	s.inserted = append(s.inserted, e)
	return nil
}

func (s *expenseLedgerStub) ListForRange(ctx context.Context, orgID string, from, to time.Time) ([]models.Expense, error) {
	s.lastFrom, s.lastTo = from, to
	return s.listed, nil
}

func (s *expenseLedgerStub) SumForRange(ctx context.Context, orgID string, from, to time.Time) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func TestCreateExpense(t *testing.T) {
	ledger := &expenseLedgerStub{}
	svc := NewExpenseService(ledger, nil, nil, zap.NewNop())

	expense, err := svc.Create(context.Background(), "org-1", "admin-1", dto.CreateExpenseRequest{
		Amount:   d("250000"),
		Category: "RENT",
		SpentAt:  "2024-09-05T10:00:00Z",
	})
	require.NoError(t, err)
	assert.Equal(t, "exp-1", expense.ID)
	assert.Equal(t, 5, expense.SpentAt.Day())
	require.NotNil(t, expense.CreatedByID)
	assert.Equal(t, "admin-1", *expense.CreatedByID)
}

func TestCreateExpenseRejectsMissingCategory(t *testing.T) {
	svc := NewExpenseService(&expenseLedgerStub{}, nil, nil, zap.NewNop())

	_, err := svc.Create(context.Background(), "org-1", "admin-1", dto.CreateExpenseRequest{
		Amount: d("250000"),
	})
	assert.Error(t, err)
}

func TestCreateExpenseRejectsNonPositiveAmount(t *testing.T) {
	svc := NewExpenseService(&expenseLedgerStub{}, nil, nil, zap.NewNop())

	_, err := svc.Create(context.Background(), "org-1", "admin-1", dto.CreateExpenseRequest{
		Amount:   d("-100"),
		Category: "RENT",
	})
	assert.Error(t, err)
}

func TestListExpensesSpansInclusiveMonthRange(t *testing.T) {
	ledger := &expenseLedgerStub{}
	svc := NewExpenseService(ledger, nil, nil, zap.NewNop())

	_, err := svc.ListForMonths(context.Background(), "org-1", "2024-07", "2024-09")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC), ledger.lastFrom)
	assert.Equal(t, time.Date(2024, time.October, 1, 0, 0, 0, 0, time.UTC), ledger.lastTo)
}
