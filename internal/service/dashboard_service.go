package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/lc-billing-api/internal/dto"
	"github.com/noah-isme/lc-billing-api/internal/models"
	appErrors "github.com/noah-isme/lc-billing-api/pkg/errors"
)

func dashboardCacheKey(orgID, from, to string) string {
	return fmt.Sprintf("dashboard:%s:%s:%s", orgID, from, to)
}

func dashboardCachePattern(orgID string) string {
	return fmt.Sprintf("dashboard:%s:*", orgID)
}

// DashboardAggregateRepository runs the rollup queries behind the summary.
type DashboardAggregateRepository interface {
	PaymentTotals(ctx context.Context, orgID string, from, to time.Time) (dto.PaymentTotals, error)
	PayrollTotals(ctx context.Context, orgID string, from, to time.Time) (dto.PayrollTotals, error)
	StudentCounts(ctx context.Context, orgID string, from, to time.Time) (dto.StudentCounts, error)
}

// ExpenseAggregateRepository totals operating expenses over a range.
type ExpenseAggregateRepository interface {
	SumForRange(ctx context.Context, orgID string, from, to time.Time) (decimal.Decimal, error)
}

// DashboardService assembles the read-only financial summary. It never writes
// to any ledger; mutating services invalidate its cache instead.
type DashboardService struct {
	aggregates DashboardAggregateRepository
	expenses   ExpenseAggregateRepository
	cache      *CacheService
	cacheTTL   time.Duration
	logger     *zap.Logger
}

// NewDashboardService constructs the service.
func NewDashboardService(aggregates DashboardAggregateRepository, expenses ExpenseAggregateRepository, cache *CacheService, cacheTTL time.Duration, logger *zap.Logger) *DashboardService {
	return &DashboardService{
		aggregates: aggregates,
		expenses:   expenses,
		cache:      cache,
		cacheTTL:   cacheTTL,
		logger:     logger,
	}
}

// Summary aggregates payments, payroll, expenses and the student population
// over an inclusive month range. An empty toMonth collapses the range to one
// month. Results are cached per (organization, range).
func (s *DashboardService) Summary(ctx context.Context, orgID, fromMonth, toMonth string) (*dto.DashboardSummary, error) {
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
	rangeEnd := models.NextMonth(to)

	key := dashboardCacheKey(orgID, models.FormatMonth(from), models.FormatMonth(to))
	if s.cache != nil {
		var cached dto.DashboardSummary
		if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	payments, err := s.aggregates.PaymentTotals(ctx, orgID, from, rangeEnd)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "aggregate payments")
	}
	payroll, err := s.aggregates.PayrollTotals(ctx, orgID, from, rangeEnd)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "aggregate payroll")
	}
	students, err := s.aggregates.StudentCounts(ctx, orgID, from, rangeEnd)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "aggregate students")
	}
	expensesTotal, err := s.expenses.SumForRange(ctx, orgID, from, rangeEnd)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "sum expenses")
	}

	summary := &dto.DashboardSummary{
		FromMonth:   models.FormatMonth(from),
		ToMonth:     models.FormatMonth(to),
		Payments:    payments,
		Expenses:    expensesTotal,
		Payroll:     payroll,
		Students:    students,
		NetCashflow: payments.Paid.Sub(expensesTotal).Sub(payroll.Paid),
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, summary, s.cacheTTL); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return summary, nil
}
