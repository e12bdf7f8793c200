package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/lc-billing-api/internal/dto"
	"github.com/noah-isme/lc-billing-api/internal/models"
	appErrors "github.com/noah-isme/lc-billing-api/pkg/errors"
)

// ExpenseLedgerRepository is the persistence surface of the expense ledger.
type ExpenseLedgerRepository interface {
	Insert(ctx context.Context, e *models.Expense) error
	ListForRange(ctx context.Context, orgID string, from, to time.Time) ([]models.Expense, error)
	SumForRange(ctx context.Context, orgID string, from, to time.Time) (decimal.Decimal, error)
}

// ExpenseService records operating costs and serves range listings.
type ExpenseService struct {
	expenses  ExpenseLedgerRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewExpenseService constructs the service.
func NewExpenseService(expenses ExpenseLedgerRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *ExpenseService {
	if validate == nil {
		validate = validator.New()
	}
	return &ExpenseService{expenses: expenses, cache: cache, validator: validate, logger: logger, now: time.Now}
}

// Create records one expense. SpentAt defaults to the current time when absent.
func (s *ExpenseService) Create(ctx context.Context, orgID, actorID string, req dto.CreateExpenseRequest) (*models.Expense, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid expense payload")
	}
	if !req.Amount.IsPositive() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "amount must be positive")
	}

	spentAt := s.now().UTC()
	if req.SpentAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.SpentAt)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "spent_at must be RFC 3339")
		}
		spentAt = parsed.UTC()
	}

	expense := &models.Expense{
		OrganizationID: orgID,
		Amount:         req.Amount,
		Category:       req.Category,
		Comment:        req.Comment,
		SpentAt:        spentAt,
	}
	if actorID != "" {
		expense.CreatedByID = &actorID
	}
	if err := s.expenses.Insert(ctx, expense); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "insert expense")
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, dashboardCachePattern(orgID)); err != nil {
			s.logger.Warn("dashboard cache invalidation failed", zap.String("organization_id", orgID), zap.Error(err))
		}
	}
	return expense, nil
}

// ListForMonths returns expenses spent inside an inclusive month range.
func (s *ExpenseService) ListForMonths(ctx context.Context, orgID, fromMonth, toMonth string) ([]models.Expense, error) {
	from, err := models.ParseMonth(fromMonth)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "from month must be formatted as YYYY-MM")
	}
	to := from
	if toMonth != "" {
		if to, err = models.ParseMonth(toMonth); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "to month must be formatted as YYYY-MM")
		}
	}
	if to.Before(from) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "range end precedes range start")
	}

	expenses, err := s.expenses.ListForRange(ctx, orgID, from, models.NextMonth(to))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list expenses")
	}
	return expenses, nil
}
