package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/lc-billing-api/internal/dto"
	"github.com/noah-isme/lc-billing-api/internal/models"
	"github.com/noah-isme/lc-billing-api/internal/repository"
	appErrors "github.com/noah-isme/lc-billing-api/pkg/errors"
)

// Payment rows come due on the 10th and overdue on the 15th of their month.
const (
	dueDayOfMonth     = 10
	hardDueDayOfMonth = 15
)

// GeneratorPaymentRepository is the payment-side persistence the generator needs.
type GeneratorPaymentRepository interface {
	ExistsForMonth(ctx context.Context, studentID, groupID string, month time.Time) (bool, error)
	Insert(ctx context.Context, p *models.Payment) error
	InsertWithReferral(ctx context.Context, p *models.Payment, referralID string, appliedAt time.Time) error
}

// GeneratorDirectoryRepository reads the enrollments to bill.
type GeneratorDirectoryRepository interface {
	ActiveEnrollments(ctx context.Context, orgID string) ([]models.Enrollment, error)
}

// GeneratorDiscountRepository reads discount overrides per student.
type GeneratorDiscountRepository interface {
	ListByStudents(ctx context.Context, studentIDs []string) (map[string][]models.DiscountPeriod, error)
}

// GeneratorReferralRepository reads pending referral bonuses; consumption
// happens inside the payment insert transaction.
type GeneratorReferralRepository interface {
	FindUnlockedUnapplied(ctx context.Context, referrerStudentID string) (*models.Referral, error)
}

// AuditRecorder appends to the audit trail.
type AuditRecorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// PaymentGeneratorService materialises the monthly payment ledger from active
// enrollments. Runs are idempotent: existing rows are skipped and concurrent
// duplicate inserts are absorbed by the unique constraint.
type PaymentGeneratorService struct {
	payments  GeneratorPaymentRepository
	directory GeneratorDirectoryRepository
	discounts GeneratorDiscountRepository
	referrals GeneratorReferralRepository
	audit     AuditRecorder
	metrics   *MetricsService
	logger    *zap.Logger

	referralBonusRate decimal.Decimal
	now               func() time.Time
}

// NewPaymentGeneratorService constructs the generator. referralBonusPercent is
// the one-time discount granted to a referrer's next generated payment.
func NewPaymentGeneratorService(
	payments GeneratorPaymentRepository,
	directory GeneratorDirectoryRepository,
	discounts GeneratorDiscountRepository,
	referrals GeneratorReferralRepository,
	audit AuditRecorder,
	metrics *MetricsService,
	logger *zap.Logger,
	referralBonusPercent float64,
) *PaymentGeneratorService {
	return &PaymentGeneratorService{
		payments:          payments,
		directory:         directory,
		discounts:         discounts,
		referrals:         referrals,
		audit:             audit,
		metrics:           metrics,
		logger:            logger,
		referralBonusRate: decimal.NewFromFloat(referralBonusPercent),
		now:               time.Now,
	}
}

// Generate creates the payment rows for every active enrollment of the
// organization in the given YYYY-MM month. Months that have not started yet
// are rejected.
func (s *PaymentGeneratorService) Generate(ctx context.Context, orgID, actorID, rawMonth string) (*dto.GenerationResult, error) {
	month, err := models.ParseMonth(rawMonth)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "month must be formatted as YYYY-MM")
	}
	if models.IsFutureMonth(month, s.now()) {
		return nil, appErrors.ErrFutureMonth
	}

	enrollments, err := s.directory.ActiveEnrollments(ctx, orgID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load active enrollments")
	}

	studentIDs := make([]string, 0, len(enrollments))
	seen := make(map[string]struct{}, len(enrollments))
	for _, e := range enrollments {
		if _, ok := seen[e.StudentID]; ok {
			continue
		}
		seen[e.StudentID] = struct{}{}
		studentIDs = append(studentIDs, e.StudentID)
	}

	periodsByStudent, err := s.discounts.ListByStudents(ctx, studentIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load discount periods")
	}

	result := &dto.GenerationResult{Month: models.FormatMonth(month)}
	for _, enrollment := range enrollments {
		exists, err := s.payments.ExistsForMonth(ctx, enrollment.StudentID, enrollment.GroupID, month)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "check existing payment")
		}
		if exists {
			result.Skipped++
			continue
		}

		payment, referral, err := s.buildPayment(ctx, orgID, enrollment, periodsByStudent[enrollment.StudentID], month)
		if err != nil {
			return nil, err
		}

		if err := s.insertPayment(ctx, payment, referral); err != nil {
			if repository.IsUniqueViolation(err) {
				// Another run won the race for this row. The referral
				// consumption rolls back with the losing insert.
				result.Conflicts++
				continue
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "insert payment")
		}
		result.Created++
	}

	if s.metrics != nil {
		s.metrics.RecordPaymentsGenerated(result.Created)
	}
	s.recordAudit(ctx, actorID, result)
	s.logger.Info("payment generation finished",
		zap.String("organization_id", orgID),
		zap.String("month", result.Month),
		zap.Int("created", result.Created),
		zap.Int("skipped", result.Skipped),
		zap.Int("conflicts", result.Conflicts))

	return result, nil
}

// insertPayment lands the row, consuming the referral bonus in the same
// transaction when one is pending. A bonus that a concurrent run consumed
// first surfaces as sql.ErrNoRows; the month is then billed at full price.
func (s *PaymentGeneratorService) insertPayment(ctx context.Context, payment *models.Payment, referral *models.Referral) error {
	if referral == nil {
		return s.payments.Insert(ctx, payment)
	}

	undiscounted := payment.AmountDue
	payment.AmountDue = DiscountedAmount(undiscounted, s.referralBonusRate)
	err := s.payments.InsertWithReferral(ctx, payment, referral.ID, s.now().UTC())
	if errors.Is(err, sql.ErrNoRows) {
		s.logger.Info("referral bonus raced away, billing full amount",
			zap.String("referral_id", referral.ID),
			zap.String("student_id", payment.StudentID))
		payment.AmountDue = undiscounted
		return s.payments.Insert(ctx, payment)
	}
	return err
}

// buildPayment prices one enrollment month at the pre-referral amount. The
// returned referral, when not nil, entitles the row to the one-time bonus.
func (s *PaymentGeneratorService) buildPayment(ctx context.Context, orgID string, enrollment models.Enrollment, periods []models.DiscountPeriod, month time.Time) (*models.Payment, *models.Referral, error) {
	fee := enrollment.GroupFee
	if enrollment.StudentFee != nil {
		fee = *enrollment.StudentFee
	}

	percent := EffectiveDiscountPercent(enrollment.BaseDiscountPercent, periods, month)
	amountDue := ProratedAmountDue(fee, percent, month, enrollment.PlannedStudyUntil,
		enrollment.LessonsPlanned, enrollment.LessonsBillable)

	referral, err := s.referrals.FindUnlockedUnapplied(ctx, enrollment.StudentID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load referral bonus")
	}

	monthStart := models.MonthStart(month)
	return &models.Payment{
		OrganizationID:    orgID,
		StudentID:         enrollment.StudentID,
		GroupID:           enrollment.GroupID,
		ForMonth:          monthStart,
		AmountDue:         amountDue,
		AmountPaid:        decimal.Zero,
		Status:            models.PaymentUnpaid,
		DueDate:           monthStart.AddDate(0, 0, dueDayOfMonth-1),
		HardDueDate:       monthStart.AddDate(0, 0, hardDueDayOfMonth-1),
		LessonsPlanned:    enrollment.LessonsPlanned,
		LessonsBillable:   enrollment.LessonsBillable,
		PlannedStudyUntil: enrollment.PlannedStudyUntil,
		RefundedAmount:    decimal.Zero,
	}, referral, nil
}

func (s *PaymentGeneratorService) recordAudit(ctx context.Context, actorID string, result *dto.GenerationResult) {
	if s.audit == nil {
		return
	}
	payload, err := json.Marshal(result)
	if err != nil {
		payload = nil
	}
	log := &models.AuditLog{
		Action:    models.AuditActionPaymentGenerate,
		Resource:  "payments",
		NewValues: payload,
	}
	if actorID != "" {
		log.UserID = &actorID
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("audit log write failed", zap.Error(err))
	}
}
