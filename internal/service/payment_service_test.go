package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/lc-billing-api/internal/dto"
	"github.com/noah-isme/lc-billing-api/internal/models"
)

type paymentLedgerStub struct {
	payments      map[string]*models.Payment
	receipts      map[string]*models.PaymentReceipt
	paidByStudent map[string]int
}

func newPaymentLedgerStub(payments ...*models.Payment) *paymentLedgerStub {
	s := &paymentLedgerStub{
		payments:      make(map[string]*models.Payment),
		receipts:      make(map[string]*models.PaymentReceipt),
		paidByStudent: make(map[string]int),
	}
	for _, p := range payments {
		s.payments[p.ID] = p
	}
	return s
}

func (s *paymentLedgerStub) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	p, ok := s.payments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *p
	return &clone, nil
}

func (s *paymentLedgerStub) List(ctx context.Context, orgID string, filter dto.PaymentFilter) ([]models.Payment, error) {
	var out []models.Payment
	for _, p := range s.payments {
		out = append(out, *p)
	}
	return out, nil
}

func (s *paymentLedgerStub) UpdateCollection(ctx context.Context, id string, amountPaid decimal.Decimal, status models.PaymentStatus) error {
	p, ok := s.payments[id]
	if !ok {
		return sql.ErrNoRows
	}
	if status == models.PaymentPaid && p.Status != models.PaymentPaid {
		s.paidByStudent[p.StudentID]++
	}
	p.AmountPaid = amountPaid
	p.Status = status
	return nil
}

func (s *paymentLedgerStub) UpdateRefund(ctx context.Context, id string, refunded decimal.Decimal, refundedAt time.Time) error {
	p, ok := s.payments[id]
	if !ok {
		return sql.ErrNoRows
	}
	p.RefundedAmount = refunded
	p.RefundedAt = &refundedAt
	return nil
}

func (s *paymentLedgerStub) CountPaid(ctx context.Context, studentID string) (int, error) {
	return s.paidByStudent[studentID], nil
}

func (s *paymentLedgerStub) InsertReceipt(ctx context.Context, receipt *models.PaymentReceipt) error {
	receipt.ID = "rcpt-1"
	s.receipts[receipt.ID] = receipt
	return nil
}

func (s *paymentLedgerStub) FindReceiptByID(ctx context.Context, id string) (*models.PaymentReceipt, error) {
	r, ok := s.receipts[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *r
	return &clone, nil
}

func (s *paymentLedgerStub) ResolveReceipt(ctx context.Context, id string, status models.ReceiptStatus, confirmedByID string, confirmedAt time.Time) error {
	r, ok := s.receipts[id]
	if !ok || r.Status != models.ReceiptPending {
		return sql.ErrNoRows
	}
	r.Status = status
	r.ConfirmedByID = &confirmedByID
	r.ConfirmedAt = &confirmedAt
	return nil
}

func (s *paymentLedgerStub) ListReceipts(ctx context.Context, paymentID string) ([]models.PaymentReceipt, error) {
	var out []models.PaymentReceipt
	for _, r := range s.receipts {
		if r.PaymentID == paymentID {
			out = append(out, *r)
		}
	}
	return out, nil
}

type referralUnlockStub struct {
	byReferred map[string]*models.Referral
	unlockedID string
}

func (s *referralUnlockStub) FindByReferred(ctx context.Context, referredStudentID string) (*models.Referral, error) {
	return s.byReferred[referredStudentID], nil
}

func (s *referralUnlockStub) MarkUnlocked(ctx context.Context, id string, at time.Time) error {
	s.unlockedID = id
	return nil
}

type receiptDirectoryStub struct {
	users map[string]*models.User
}

func (s receiptDirectoryStub) FindUser(ctx context.Context, orgID, userID string) (*models.User, error) {
	u, ok := s.users[userID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

func newPaymentService(ledger *paymentLedgerStub, referrals *referralUnlockStub, directory receiptDirectoryStub) *PaymentService {
	svc := NewPaymentService(ledger, referrals, directory, &auditStub{}, nil, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2024, time.September, 20, 12, 0, 0, 0, time.UTC) }
	return svc
}

func unpaidPayment(id, studentID string, due string) *models.Payment {
	return &models.Payment{
		ID:             id,
		OrganizationID: "org-1",
		StudentID:      studentID,
		GroupID:        "grp-1",
		ForMonth:       month("2024-09"),
		AmountDue:      d(due),
		AmountPaid:     decimal.Zero,
		Status:         models.PaymentUnpaid,
		RefundedAmount: decimal.Zero,
	}
}

func TestPayPartialAccumulatesAndClamps(t *testing.T) {
	ledger := newPaymentLedgerStub(unpaidPayment("pay-1", "stu-1", "100000"))
	svc := newPaymentService(ledger, &referralUnlockStub{byReferred: map[string]*models.Referral{}}, receiptDirectoryStub{})

	p, err := svc.PayPartial(context.Background(), "pay-1", d("50000"), "cashier")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPartial, p.Status)
	assert.Equal(t, "50000.00", p.AmountPaid.StringFixed(2))

	// Overshoot clamps to the amount due instead of failing.
	p, err = svc.PayPartial(context.Background(), "pay-1", d("60000"), "cashier")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, p.Status)
	assert.Equal(t, "100000.00", p.AmountPaid.StringFixed(2))
}

func TestPayPartialRejectsNonPositiveAmount(t *testing.T) {
	ledger := newPaymentLedgerStub(unpaidPayment("pay-1", "stu-1", "100000"))
	svc := newPaymentService(ledger, &referralUnlockStub{}, receiptDirectoryStub{})

	_, err := svc.PayPartial(context.Background(), "pay-1", decimal.Zero, "cashier")
	assert.Error(t, err)
}

func TestMarkFullyPaidUnlocksReferralOnFirstPayment(t *testing.T) {
	ledger := newPaymentLedgerStub(unpaidPayment("pay-1", "stu-referred", "100000"))
	referrals := &referralUnlockStub{byReferred: map[string]*models.Referral{
		"stu-referred": {ID: "ref-1", ReferredStudentID: "stu-referred"},
	}}
	svc := newPaymentService(ledger, referrals, receiptDirectoryStub{})

	p, err := svc.MarkFullyPaid(context.Background(), "pay-1", "cashier")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, p.Status)
	assert.Equal(t, "ref-1", referrals.unlockedID)
}

func TestMarkFullyPaidDoesNotUnlockOnLaterPayments(t *testing.T) {
	ledger := newPaymentLedgerStub(unpaidPayment("pay-2", "stu-referred", "100000"))
	ledger.paidByStudent["stu-referred"] = 1
	referrals := &referralUnlockStub{byReferred: map[string]*models.Referral{
		"stu-referred": {ID: "ref-1", ReferredStudentID: "stu-referred"},
	}}
	svc := newPaymentService(ledger, referrals, receiptDirectoryStub{})

	_, err := svc.MarkFullyPaid(context.Background(), "pay-2", "cashier")
	require.NoError(t, err)
	assert.Empty(t, referrals.unlockedID)
}

func TestRefundKeepsCollectedAmountIntact(t *testing.T) {
	payment := unpaidPayment("pay-1", "stu-1", "100000")
	payment.AmountPaid = d("100000")
	payment.Status = models.PaymentPaid
	ledger := newPaymentLedgerStub(payment)
	svc := newPaymentService(ledger, &referralUnlockStub{}, receiptDirectoryStub{})

	p, err := svc.Refund(context.Background(), "pay-1", d("30000"), "admin")
	require.NoError(t, err)
	assert.Equal(t, "30000.00", p.RefundedAmount.StringFixed(2))
	assert.Equal(t, "100000.00", p.AmountPaid.StringFixed(2))
	assert.Equal(t, models.PaymentPaid, p.Status)
}

func TestRefundRejectsMoreThanCollected(t *testing.T) {
	payment := unpaidPayment("pay-1", "stu-1", "100000")
	payment.AmountPaid = d("40000")
	ledger := newPaymentLedgerStub(payment)
	svc := newPaymentService(ledger, &referralUnlockStub{}, receiptDirectoryStub{})

	_, err := svc.Refund(context.Background(), "pay-1", d("50000"), "admin")
	assert.Error(t, err)
}

func TestCreateReceiptSnapshotsCommission(t *testing.T) {
	ledger := newPaymentLedgerStub(unpaidPayment("pay-1", "stu-1", "100000"))
	directory := receiptDirectoryStub{users: map[string]*models.User{
		"cashier-1": {ID: "cashier-1", Role: models.RoleCashier, CommissionPercent: d("5")},
	}}
	svc := newPaymentService(ledger, &referralUnlockStub{}, directory)

	receipt, err := svc.CreateReceipt(context.Background(), "pay-1", d("100000"), "cashier-1")
	require.NoError(t, err)
	assert.Equal(t, models.ReceiptPending, receipt.Status)
	assert.Equal(t, "5.00", receipt.ReceiverCommissionPercent.StringFixed(2))
	assert.Equal(t, "5000.00", receipt.ReceiverCommissionAmount.StringFixed(2))
}

func TestConfirmReceiptLeavesPaymentUntouched(t *testing.T) {
	ledger := newPaymentLedgerStub(unpaidPayment("pay-1", "stu-1", "100000"))
	directory := receiptDirectoryStub{users: map[string]*models.User{
		"cashier-1": {ID: "cashier-1", Role: models.RoleCashier, CommissionPercent: decimal.Zero},
	}}
	svc := newPaymentService(ledger, &referralUnlockStub{byReferred: map[string]*models.Referral{}}, directory)

	receipt, err := svc.CreateReceipt(context.Background(), "pay-1", d("100000"), "cashier-1")
	require.NoError(t, err)

	confirmed, err := svc.ConfirmReceipt(context.Background(), receipt.ID, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.ReceiptConfirmed, confirmed.Status)

	payment, err := svc.Get(context.Background(), "pay-1")
	require.NoError(t, err)
	assert.True(t, payment.AmountPaid.IsZero())
	assert.Equal(t, models.PaymentUnpaid, payment.Status)
}

func TestResolveReceiptRejectsAlreadyResolved(t *testing.T) {
	ledger := newPaymentLedgerStub(unpaidPayment("pay-1", "stu-1", "100000"))
	directory := receiptDirectoryStub{users: map[string]*models.User{
		"cashier-1": {ID: "cashier-1", Role: models.RoleCashier, CommissionPercent: decimal.Zero},
	}}
	svc := newPaymentService(ledger, &referralUnlockStub{}, directory)

	receipt, err := svc.CreateReceipt(context.Background(), "pay-1", d("100000"), "cashier-1")
	require.NoError(t, err)

	_, err = svc.ConfirmReceipt(context.Background(), receipt.ID, "admin-1")
	require.NoError(t, err)
	_, err = svc.RejectReceipt(context.Background(), receipt.ID, "admin-1")
	assert.Error(t, err)
}
