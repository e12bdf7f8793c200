package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/lc-billing-api/internal/models"
	appErrors "github.com/noah-isme/lc-billing-api/pkg/errors"
)

// EarningStore is the persistence surface of the commission calculator.
type EarningStore interface {
	FindByTeacherMonth(ctx context.Context, teacherID string, month time.Time) (*models.TeacherMonthlyEarning, error)
	SumPaidTuition(ctx context.Context, teacherID string, month time.Time) (decimal.Decimal, error)
	ListUnappliedCarryOvers(ctx context.Context, teacherID string) ([]models.TeacherCommissionCarryOver, error)
	InsertCarryOver(ctx context.Context, c *models.TeacherCommissionCarryOver) error
	UpsertSnapshot(ctx context.Context, e *models.TeacherMonthlyEarning, consumedCarryOverIDs []string) error
}

// EarningDirectoryRepository reads teacher compensation terms.
type EarningDirectoryRepository interface {
	FindUser(ctx context.Context, orgID, userID string) (*models.User, error)
}

// SalaryStatusReader answers whether a month's payroll row is already paid out.
type SalaryStatusReader interface {
	IsPaid(ctx context.Context, userID string, month time.Time) (bool, error)
}

// EarningService computes teacher monthly earnings: base salary plus a
// commission share of the month's collected tuition, plus any unconsumed
// carryovers. Once the matching salary row is PAID the snapshot is frozen;
// commission that grows afterwards becomes a carryover row instead.
type EarningService struct {
	earnings  EarningStore
	directory EarningDirectoryRepository
	salaries  SalaryStatusReader
	logger    *zap.Logger
	now       func() time.Time
}

// NewEarningService constructs the calculator.
func NewEarningService(earnings EarningStore, directory EarningDirectoryRepository, salaries SalaryStatusReader, logger *zap.Logger) *EarningService {
	return &EarningService{
		earnings:  earnings,
		directory: directory,
		salaries:  salaries,
		logger:    logger,
		now:       time.Now,
	}
}

// Get returns the stored snapshot without recalculating.
func (s *EarningService) Get(ctx context.Context, teacherID string, month time.Time) (*models.TeacherMonthlyEarning, error) {
	earning, err := s.earnings.FindByTeacherMonth(ctx, teacherID, month)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load earning snapshot")
	}
	if earning == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "earning snapshot not found")
	}
	return earning, nil
}

// Calculate computes and stores the teacher's earnings for the month. With
// force false an existing snapshot is returned as-is; with force true the
// snapshot is recomputed from the current ledger, keeping the carryover
// amounts it already consumed. A frozen month is never
// rewritten regardless of force: commission growth is deferred as a carryover
// and the stored snapshot comes back unchanged.
func (s *EarningService) Calculate(ctx context.Context, orgID, teacherID string, month time.Time, force bool) (*models.TeacherMonthlyEarning, error) {
	month = models.MonthStart(month)
	if models.IsFutureMonth(month, s.now()) {
		return nil, appErrors.ErrFutureMonth
	}

	teacher, err := s.directory.FindUser(ctx, orgID, teacherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load teacher")
	}
	if teacher.Role != models.RoleTeacher {
		return nil, appErrors.Clone(appErrors.ErrValidation, "user is not a teacher")
	}

	existing, err := s.earnings.FindByTeacherMonth(ctx, teacherID, month)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load earning snapshot")
	}
	if existing != nil && !force {
		return existing, nil
	}

	paidTuition, err := s.earnings.SumPaidTuition(ctx, teacherID, month)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "sum paid tuition")
	}
	commission := paidTuition.Mul(clampPercent(teacher.CommissionPercent)).Div(percentBase).Round(2)

	salaryPaid, err := s.salaries.IsPaid(ctx, teacherID, month)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "check salary status")
	}

	if salaryPaid && existing != nil {
		return s.deferCommissionGrowth(ctx, existing, commission, month)
	}

	carryOvers, err := s.earnings.ListUnappliedCarryOvers(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load carryovers")
	}
	carrySum := decimal.Zero
	if existing != nil {
		// Carryovers this snapshot consumed earlier stay in the total on a
		// forced recompute; an applied carryover is never released back.
		carrySum = existing.CarryOverCommission
	}
	consumedIDs := make([]string, 0, len(carryOvers))
	for _, c := range carryOvers {
		carrySum = carrySum.Add(c.Amount)
		consumedIDs = append(consumedIDs, c.ID)
	}

	earning := &models.TeacherMonthlyEarning{
		OrganizationID:      orgID,
		TeacherID:           teacherID,
		ForMonth:            month,
		BaseSalarySnapshot:  teacher.Salary,
		CommissionAmount:    commission,
		CarryOverCommission: carrySum,
		TotalEarning:        teacher.Salary.Add(commission).Add(carrySum).Round(2),
		CalculatedAt:        s.now().UTC(),
	}
	if existing != nil {
		earning.ID = existing.ID
	}

	if err := s.earnings.UpsertSnapshot(ctx, earning, consumedIDs); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "store earning snapshot")
	}
	return earning, nil
}

// deferCommissionGrowth handles the frozen path: the snapshot stays untouched
// and any positive commission delta becomes a carryover for a later month.
func (s *EarningService) deferCommissionGrowth(ctx context.Context, frozen *models.TeacherMonthlyEarning, commission decimal.Decimal, month time.Time) (*models.TeacherMonthlyEarning, error) {
	delta := commission.Sub(frozen.CommissionAmount)
	if !delta.IsPositive() {
		return frozen, nil
	}

	carryOver := &models.TeacherCommissionCarryOver{
		TeacherID:      frozen.TeacherID,
		SourceForMonth: month,
		Amount:         delta.Round(2),
	}
	if err := s.earnings.InsertCarryOver(ctx, carryOver); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "insert carryover")
	}
	s.logger.Info("commission growth deferred to carryover",
		zap.String("teacher_id", frozen.TeacherID),
		zap.String("source_month", models.FormatMonth(month)),
		zap.String("amount", carryOver.Amount.String()))
	return frozen, nil
}
