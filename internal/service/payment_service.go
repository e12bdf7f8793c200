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
	appErrors "github.com/noah-isme/lc-billing-api/pkg/errors"
)

// PaymentLedgerRepository is the persistence surface of the collection lifecycle.
type PaymentLedgerRepository interface {
	FindByID(ctx context.Context, id string) (*models.Payment, error)
	List(ctx context.Context, orgID string, filter dto.PaymentFilter) ([]models.Payment, error)
	UpdateCollection(ctx context.Context, id string, amountPaid decimal.Decimal, status models.PaymentStatus) error
	UpdateRefund(ctx context.Context, id string, refunded decimal.Decimal, refundedAt time.Time) error
	CountPaid(ctx context.Context, studentID string) (int, error)
	InsertReceipt(ctx context.Context, receipt *models.PaymentReceipt) error
	FindReceiptByID(ctx context.Context, id string) (*models.PaymentReceipt, error)
	ResolveReceipt(ctx context.Context, id string, status models.ReceiptStatus, confirmedByID string, confirmedAt time.Time) error
	ListReceipts(ctx context.Context, paymentID string) ([]models.PaymentReceipt, error)
}

// ReferralUnlockRepository flips referral bonuses to spendable.
type ReferralUnlockRepository interface {
	FindByReferred(ctx context.Context, referredStudentID string) (*models.Referral, error)
	MarkUnlocked(ctx context.Context, id string, at time.Time) error
}

// ReceiptDirectoryRepository reads the cash handler's commission facts.
type ReceiptDirectoryRepository interface {
	FindUser(ctx context.Context, orgID, userID string) (*models.User, error)
}

// PaymentService runs the collection lifecycle: full and partial payments,
// refunds, and the cash-handling receipt track. amount_paid only ever moves
// through the pay operations; receipts never touch it.
type PaymentService struct {
	payments  PaymentLedgerRepository
	referrals ReferralUnlockRepository
	directory ReceiptDirectoryRepository
	audit     AuditRecorder
	cache     *CacheService
	logger    *zap.Logger
	now       func() time.Time
}

// NewPaymentService constructs the service.
func NewPaymentService(
	payments PaymentLedgerRepository,
	referrals ReferralUnlockRepository,
	directory ReceiptDirectoryRepository,
	audit AuditRecorder,
	cache *CacheService,
	logger *zap.Logger,
) *PaymentService {
	return &PaymentService{
		payments:  payments,
		referrals: referrals,
		directory: directory,
		audit:     audit,
		cache:     cache,
		logger:    logger,
		now:       time.Now,
	}
}

// Get fetches one payment.
func (s *PaymentService) Get(ctx context.Context, id string) (*models.Payment, error) {
	payment, err := s.payments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load payment")
	}
	return payment, nil
}

// List returns an organization's payments narrowed by the filter.
func (s *PaymentService) List(ctx context.Context, orgID string, filter dto.PaymentFilter) ([]models.Payment, error) {
	payments, err := s.payments.List(ctx, orgID, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list payments")
	}
	return payments, nil
}

// MarkFullyPaid settles the remaining balance in one step.
func (s *PaymentService) MarkFullyPaid(ctx context.Context, id, actorID string) (*models.Payment, error) {
	payment, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	remaining := payment.AmountDue.Sub(payment.AmountPaid)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	return s.applyCollection(ctx, payment, remaining, actorID)
}

// PayPartial adds an amount to the collected total. Overpayment clamps to the
// amount due rather than failing; the final increment often arrives rounded.
func (s *PaymentService) PayPartial(ctx context.Context, id string, amount decimal.Decimal, actorID string) (*models.Payment, error) {
	if !amount.IsPositive() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "amount must be positive")
	}
	payment, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.applyCollection(ctx, payment, amount, actorID)
}

func (s *PaymentService) applyCollection(ctx context.Context, payment *models.Payment, amount decimal.Decimal, actorID string) (*models.Payment, error) {
	wasPaid := payment.Status == models.PaymentPaid

	paid := payment.AmountPaid.Add(amount)
	if paid.GreaterThan(payment.AmountDue) {
		paid = payment.AmountDue
	}
	status := models.PaymentPartial
	if paid.GreaterThanOrEqual(payment.AmountDue) {
		status = models.PaymentPaid
	} else if paid.IsZero() {
		status = models.PaymentUnpaid
	}

	if err := s.payments.UpdateCollection(ctx, payment.ID, paid, status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "update payment")
	}
	payment.AmountPaid = paid
	payment.Status = status
	payment.UpdatedAt = s.now().UTC()

	if status == models.PaymentPaid && !wasPaid {
		s.maybeUnlockReferral(ctx, payment.StudentID)
	}

	s.recordAudit(ctx, actorID, models.AuditActionPaymentPay, payment.ID, payment)
	s.invalidateDashboard(ctx, payment.OrganizationID)
	return payment, nil
}

// maybeUnlockReferral unlocks the referrer's bonus when the referred student's
// first payment reaches PAID.
func (s *PaymentService) maybeUnlockReferral(ctx context.Context, studentID string) {
	count, err := s.payments.CountPaid(ctx, studentID)
	if err != nil {
		s.logger.Warn("paid payment count failed", zap.String("student_id", studentID), zap.Error(err))
		return
	}
	if count != 1 {
		return
	}
	referral, err := s.referrals.FindByReferred(ctx, studentID)
	if err != nil {
		s.logger.Warn("referral lookup failed", zap.String("student_id", studentID), zap.Error(err))
		return
	}
	if referral == nil || referral.BonusUnlockedAt != nil {
		return
	}
	if err := s.referrals.MarkUnlocked(ctx, referral.ID, s.now().UTC()); err != nil {
		s.logger.Warn("referral unlock failed", zap.String("referral_id", referral.ID), zap.Error(err))
	}
}

// Refund records a refund figure. Refunds never decrease amount_paid; the paid
// history stays intact and the refund rides alongside it.
func (s *PaymentService) Refund(ctx context.Context, id string, amount decimal.Decimal, actorID string) (*models.Payment, error) {
	if !amount.IsPositive() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "amount must be positive")
	}
	payment, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	refunded := payment.RefundedAmount.Add(amount)
	if refunded.GreaterThan(payment.AmountPaid) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "refund exceeds collected amount")
	}

	at := s.now().UTC()
	if err := s.payments.UpdateRefund(ctx, payment.ID, refunded, at); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "update refund")
	}
	payment.RefundedAmount = refunded
	payment.RefundedAt = &at

	s.recordAudit(ctx, actorID, models.AuditActionPaymentRefund, payment.ID, payment)
	s.invalidateDashboard(ctx, payment.OrganizationID)
	return payment, nil
}

// CreateReceipt opens a pending cash-handling receipt, snapshotting the
// receiver's commission terms at hand-over time.
func (s *PaymentService) CreateReceipt(ctx context.Context, paymentID string, amount decimal.Decimal, receivedByID string) (*models.PaymentReceipt, error) {
	if !amount.IsPositive() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "amount must be positive")
	}
	payment, err := s.Get(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	receiver, err := s.directory.FindUser(ctx, payment.OrganizationID, receivedByID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "receiver not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load receiver")
	}

	receipt := &models.PaymentReceipt{
		PaymentID:                 payment.ID,
		Amount:                    amount,
		Status:                    models.ReceiptPending,
		ReceivedByID:              receiver.ID,
		ReceivedAt:                s.now().UTC(),
		ReceiverCommissionPercent: receiver.CommissionPercent,
		ReceiverCommissionAmount:  amount.Mul(receiver.CommissionPercent).Div(percentBase).Round(2),
	}
	if err := s.payments.InsertReceipt(ctx, receipt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "insert receipt")
	}
	return receipt, nil
}

// ConfirmReceipt moves a pending receipt to CONFIRMED. The payment's collected
// amount is untouched; receipts are an accountability track, not a pay path.
func (s *PaymentService) ConfirmReceipt(ctx context.Context, receiptID, confirmerID string) (*models.PaymentReceipt, error) {
	return s.resolveReceipt(ctx, receiptID, confirmerID, models.ReceiptConfirmed, models.AuditActionReceiptConfirm)
}

// RejectReceipt moves a pending receipt to REJECTED.
func (s *PaymentService) RejectReceipt(ctx context.Context, receiptID, confirmerID string) (*models.PaymentReceipt, error) {
	return s.resolveReceipt(ctx, receiptID, confirmerID, models.ReceiptRejected, models.AuditActionReceiptReject)
}

func (s *PaymentService) resolveReceipt(ctx context.Context, receiptID, confirmerID string, status models.ReceiptStatus, action string) (*models.PaymentReceipt, error) {
	receipt, err := s.payments.FindReceiptByID(ctx, receiptID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "receipt not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load receipt")
	}
	if receipt.Status != models.ReceiptPending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "receipt already resolved")
	}

	at := s.now().UTC()
	if err := s.payments.ResolveReceipt(ctx, receiptID, status, confirmerID, at); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "receipt already resolved")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "resolve receipt")
	}
	receipt.Status = status
	receipt.ConfirmedByID = &confirmerID
	receipt.ConfirmedAt = &at

	s.recordAudit(ctx, confirmerID, action, receipt.ID, receipt)
	return receipt, nil
}

// ListReceipts returns the receipt history of a payment.
func (s *PaymentService) ListReceipts(ctx context.Context, paymentID string) ([]models.PaymentReceipt, error) {
	receipts, err := s.payments.ListReceipts(ctx, paymentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list receipts")
	}
	return receipts, nil
}

func (s *PaymentService) recordAudit(ctx context.Context, actorID, action, resourceID string, value interface{}) {
	if s.audit == nil {
		return
	}
	payload, err := json.Marshal(value)
	if err != nil {
		payload = nil
	}
	log := &models.AuditLog{
		Action:     action,
		Resource:   "payments",
		ResourceID: &resourceID,
		NewValues:  payload,
	}
	if actorID != "" {
		log.UserID = &actorID
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("audit log write failed", zap.Error(err))
	}
}

func (s *PaymentService) invalidateDashboard(ctx context.Context, orgID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, dashboardCachePattern(orgID)); err != nil {
		s.logger.Warn("dashboard cache invalidation failed", zap.String("organization_id", orgID), zap.Error(err))
	}
}
