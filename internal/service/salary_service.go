package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/lc-billing-api/internal/models"
	"github.com/noah-isme/lc-billing-api/internal/repository"
	appErrors "github.com/noah-isme/lc-billing-api/pkg/errors"
)

// SalaryLedgerRepository is the persistence surface of the payroll ledger.
type SalaryLedgerRepository interface {
	FindByID(ctx context.Context, id string) (*models.StaffSalary, error)
	FindByUserMonth(ctx context.Context, userID string, month time.Time) (*models.StaffSalary, error)
	ListForMonth(ctx context.Context, orgID string, month time.Time) ([]models.StaffSalary, error)
	Insert(ctx context.Context, s *models.StaffSalary) error
	RefreshBaseSalary(ctx context.Context, id string, base decimal.Decimal) error
	Pay(ctx context.Context, id string, amount decimal.Decimal, comment string, paidByID *string, now time.Time) (*models.StaffSalary, error)
	ListPayments(ctx context.Context, salaryID string) ([]models.StaffSalaryPayment, error)
}

// SalaryDirectoryRepository lists the users owed a payroll row.
type SalaryDirectoryRepository interface {
	CompensatedUsers(ctx context.Context, orgID string) ([]models.User, error)
}

// EarningCalculator resolves a teacher's earnings total for a month.
type EarningCalculator interface {
	Calculate(ctx context.Context, orgID, teacherID string, month time.Time, force bool) (*models.TeacherMonthlyEarning, error)
}

// SalaryService maintains the monthly payroll ledger. Rows materialise lazily
// on first access to a month; teacher rows track the earnings total until they
// are PAID, after which the base is frozen.
type SalaryService struct {
	salaries  SalaryLedgerRepository
	directory SalaryDirectoryRepository
	earnings  EarningCalculator
	audit     AuditRecorder
	cache     *CacheService
	logger    *zap.Logger
	now       func() time.Time
}

// NewSalaryService constructs the service.
func NewSalaryService(
	salaries SalaryLedgerRepository,
	directory SalaryDirectoryRepository,
	earnings EarningCalculator,
	audit AuditRecorder,
	cache *CacheService,
	logger *zap.Logger,
) *SalaryService {
	return &SalaryService{
		salaries:  salaries,
		directory: directory,
		earnings:  earnings,
		audit:     audit,
		cache:     cache,
		logger:    logger,
		now:       time.Now,
	}
}

// EnsureForMonth materialises salary rows for every compensated user of the
// organization in the month, and refreshes the base of unpaid teacher rows
// from the latest earnings total. Future months are rejected.
func (s *SalaryService) EnsureForMonth(ctx context.Context, orgID string, month time.Time) error {
	month = models.MonthStart(month)
	if models.IsFutureMonth(month, s.now()) {
		return appErrors.ErrFutureMonth
	}

	users, err := s.directory.CompensatedUsers(ctx, orgID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load compensated users")
	}

	for _, user := range users {
		if err := s.ensureRow(ctx, orgID, user, month); err != nil {
			return err
		}
	}
	return nil
}

func (s *SalaryService) ensureRow(ctx context.Context, orgID string, user models.User, month time.Time) error {
	existing, err := s.salaries.FindByUserMonth(ctx, user.ID, month)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load salary row")
	}

	if existing == nil {
		base := user.Salary
		if user.Role == models.RoleTeacher {
			earning, err := s.earnings.Calculate(ctx, orgID, user.ID, month, false)
			if err != nil {
				return err
			}
			base = earning.TotalEarning
		}
		row := &models.StaffSalary{
			OrganizationID: orgID,
			UserID:         user.ID,
			ForMonth:       month,
			BaseSalary:     base,
			PaidAmount:     decimal.Zero,
			Status:         models.SalaryUnpaid,
		}
		if err := s.salaries.Insert(ctx, row); err != nil {
			// A concurrent ensure already created the row.
			if repository.IsUniqueViolation(err) {
				return nil
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "insert salary row")
		}
		return nil
	}

	if existing.Status != models.SalaryPaid && user.Role == models.RoleTeacher {
		earning, err := s.earnings.Calculate(ctx, orgID, user.ID, month, true)
		if err != nil {
			return err
		}
		if !earning.TotalEarning.Equal(existing.BaseSalary) {
			if err := s.salaries.RefreshBaseSalary(ctx, existing.ID, earning.TotalEarning); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "refresh salary base")
			}
		}
	}
	return nil
}

// ListForMonth returns the month's payroll, materialising missing rows first.
func (s *SalaryService) ListForMonth(ctx context.Context, orgID string, month time.Time) ([]models.StaffSalary, error) {
	if err := s.EnsureForMonth(ctx, orgID, month); err != nil {
		return nil, err
	}
	salaries, err := s.salaries.ListForMonth(ctx, orgID, month)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list salaries")
	}
	return salaries, nil
}

// Pay applies a payout against a salary row. The paid amount clamps to the
// base; a row that is already PAID is frozen and rejects further payouts.
func (s *SalaryService) Pay(ctx context.Context, salaryID string, amount decimal.Decimal, comment, actorID string) (*models.StaffSalary, error) {
	if !amount.IsPositive() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "amount must be positive")
	}

	current, err := s.salaries.FindByID(ctx, salaryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "salary row not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load salary row")
	}
	if current.Status == models.SalaryPaid {
		return nil, appErrors.ErrFinalized
	}

	var paidBy *string
	if actorID != "" {
		paidBy = &actorID
	}
	updated, err := s.salaries.Pay(ctx, salaryID, amount, comment, paidBy, s.now().UTC())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "salary row not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "pay salary")
	}

	s.recordAudit(ctx, actorID, updated)
	s.invalidateDashboard(ctx, updated.OrganizationID)
	return updated, nil
}

// ListPayments returns the payout history of one salary row.
func (s *SalaryService) ListPayments(ctx context.Context, salaryID string) ([]models.StaffSalaryPayment, error) {
	payments, err := s.salaries.ListPayments(ctx, salaryID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list salary payments")
	}
	return payments, nil
}

func (s *SalaryService) recordAudit(ctx context.Context, actorID string, salary *models.StaffSalary) {
	if s.audit == nil {
		return
	}
	payload, err := json.Marshal(salary)
	if err != nil {
		payload = nil
	}
	log := &models.AuditLog{
		Action:     models.AuditActionSalaryPay,
		Resource:   "staff_salaries",
		ResourceID: &salary.ID,
		NewValues:  payload,
	}
	if actorID != "" {
		log.UserID = &actorID
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("audit log write failed", zap.Error(err))
	}
}

func (s *SalaryService) invalidateDashboard(ctx context.Context, orgID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, dashboardCachePattern(orgID)); err != nil {
		s.logger.Warn("dashboard cache invalidation failed", zap.String("organization_id", orgID), zap.Error(err))
	}
}
