package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/lc-billing-api/internal/models"
	appErrors "github.com/noah-isme/lc-billing-api/pkg/errors"
)

type salaryLedgerStub struct {
	rows      map[string]*models.StaffSalary // keyed by row ID
	conflicts bool

	inserted  []*models.StaffSalary
	refreshed map[string]decimal.Decimal
	payments  []models.StaffSalaryPayment
}

func newSalaryLedgerStub(rows ...*models.StaffSalary) *salaryLedgerStub {
	s := &salaryLedgerStub{
		rows:      make(map[string]*models.StaffSalary),
		refreshed: make(map[string]decimal.Decimal),
	}
	for _, r := range rows {
		s.rows[r.ID] = r
	}
	return s
}

func (s *salaryLedgerStub) FindByID(ctx context.Context, id string) (*models.StaffSalary, error) {
	r, ok := s.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *r
	return &clone, nil
}

func (s *salaryLedgerStub) FindByUserMonth(ctx context.Context, userID string, month time.Time) (*models.StaffSalary, error) {
	for _, r := range s.rows {
		if r.UserID == userID && r.ForMonth.Equal(month) {
			clone := *r
			return &clone, nil
		}
	}
	return nil, nil
}

func (s *salaryLedgerStub) ListForMonth(ctx context.Context, orgID string, month time.Time) ([]models.StaffSalary, error) {
	var out []models.StaffSalary
	for _, r := range s.rows {
		if r.OrganizationID == orgID && r.ForMonth.Equal(month) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (s *salaryLedgerStub) Insert(ctx context.Context, row *models.StaffSalary) error {
	if s.conflicts {
		return &pq.Error{Code: "23505"}
	}
	row.ID = "sal-" + row.UserID
	s.rows[row.ID] = row
	s.inserted = append(s.inserted, row)
	return nil
}

func (s *salaryLedgerStub) RefreshBaseSalary(ctx context.Context, id string, base decimal.Decimal) error {
	s.refreshed[id] = base
	if r, ok := s.rows[id]; ok {
		r.BaseSalary = base
	}
	return nil
}

func (s *salaryLedgerStub) Pay(ctx context.Context, id string, amount decimal.Decimal, comment string, paidByID *string, now time.Time) (*models.StaffSalary, error) {
	r, ok := s.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	r.PaidAmount = r.PaidAmount.Add(amount)
	if r.PaidAmount.GreaterThanOrEqual(r.BaseSalary) {
		r.PaidAmount = r.BaseSalary
		r.Status = models.SalaryPaid
	} else {
		r.Status = models.SalaryPartial
	}
	s.payments = append(s.payments, models.StaffSalaryPayment{
		StaffSalaryID: id,
		Amount:        amount,
		Comment:       comment,
		PaidByID:      paidByID,
		PaidAt:        now,
	})
	clone := *r
	return &clone, nil
}

func (s *salaryLedgerStub) ListPayments(ctx context.Context, salaryID string) ([]models.StaffSalaryPayment, error) {
	var out []models.StaffSalaryPayment
	for _, p := range s.payments {
		if p.StaffSalaryID == salaryID {
			out = append(out, p)
		}
	}
	return out, nil
}

type salaryDirectoryStub struct {
	users []models.User
}

func (s salaryDirectoryStub) CompensatedUsers(ctx context.Context, orgID string) ([]models.User, error) {
	return s.users, nil
}

type earningCalculatorStub struct {
	totals map[string]decimal.Decimal // keyed by teacher ID
	forced []string
}

func (s *earningCalculatorStub) Calculate(ctx context.Context, orgID, teacherID string, month time.Time, force bool) (*models.TeacherMonthlyEarning, error) {
	if force {
		s.forced = append(s.forced, teacherID)
	}
	return &models.TeacherMonthlyEarning{
		TeacherID:    teacherID,
		ForMonth:     month,
		TotalEarning: s.totals[teacherID],
	}, nil
}

func newSalaryService(ledger *salaryLedgerStub, directory salaryDirectoryStub, earnings *earningCalculatorStub) *SalaryService {
	svc := NewSalaryService(ledger, directory, earnings, &auditStub{}, nil, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2024, time.September, 20, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestEnsureForMonthMaterialisesRows(t *testing.T) {
	ledger := newSalaryLedgerStub()
	directory := salaryDirectoryStub{users: []models.User{
		{ID: "tch-1", Role: models.RoleTeacher, Salary: d("1500000")},
		{ID: "adm-1", Role: models.RoleAdmin, Salary: d("2000000")},
	}}
	earnings := &earningCalculatorStub{totals: map[string]decimal.Decimal{"tch-1": d("1900000")}}
	svc := newSalaryService(ledger, directory, earnings)

	require.NoError(t, svc.EnsureForMonth(context.Background(), "org-1", month("2024-09")))
	require.Len(t, ledger.inserted, 2)

	// Teacher rows start from the earnings total, everyone else from the
	// contractual salary.
	assert.Equal(t, "1900000.00", ledger.inserted[0].BaseSalary.StringFixed(2))
	assert.Equal(t, "2000000.00", ledger.inserted[1].BaseSalary.StringFixed(2))
	assert.Equal(t, models.SalaryUnpaid, ledger.inserted[0].Status)
}

func TestEnsureForMonthAbsorbsInsertRace(t *testing.T) {
	ledger := newSalaryLedgerStub()
	ledger.conflicts = true
	directory := salaryDirectoryStub{users: []models.User{
		{ID: "adm-1", Role: models.RoleAdmin, Salary: d("2000000")},
	}}
	svc := newSalaryService(ledger, directory, &earningCalculatorStub{})

	assert.NoError(t, svc.EnsureForMonth(context.Background(), "org-1", month("2024-09")))
}

func TestEnsureForMonthRefreshesUnpaidTeacherRow(t *testing.T) {
	ledger := newSalaryLedgerStub(&models.StaffSalary{
		ID:             "sal-tch-1",
		OrganizationID: "org-1",
		UserID:         "tch-1",
		ForMonth:       month("2024-09"),
		BaseSalary:     d("1900000"),
		Status:         models.SalaryUnpaid,
	})
	directory := salaryDirectoryStub{users: []models.User{
		{ID: "tch-1", Role: models.RoleTeacher},
	}}
	earnings := &earningCalculatorStub{totals: map[string]decimal.Decimal{"tch-1": d("1950000")}}
	svc := newSalaryService(ledger, directory, earnings)

	require.NoError(t, svc.EnsureForMonth(context.Background(), "org-1", month("2024-09")))
	assert.Equal(t, []string{"tch-1"}, earnings.forced)
	assert.Equal(t, "1950000.00", ledger.refreshed["sal-tch-1"].StringFixed(2))
}

func TestEnsureForMonthLeavesPaidRowFrozen(t *testing.T) {
	ledger := newSalaryLedgerStub(&models.StaffSalary{
		ID:             "sal-tch-1",
		OrganizationID: "org-1",
		UserID:         "tch-1",
		ForMonth:       month("2024-09"),
		BaseSalary:     d("1900000"),
		Status:         models.SalaryPaid,
	})
	directory := salaryDirectoryStub{users: []models.User{
		{ID: "tch-1", Role: models.RoleTeacher},
	}}
	earnings := &earningCalculatorStub{totals: map[string]decimal.Decimal{"tch-1": d("2500000")}}
	svc := newSalaryService(ledger, directory, earnings)

	require.NoError(t, svc.EnsureForMonth(context.Background(), "org-1", month("2024-09")))
	assert.Empty(t, earnings.forced)
	assert.Empty(t, ledger.refreshed)
}

func TestEnsureForMonthRejectsFutureMonth(t *testing.T) {
	svc := newSalaryService(newSalaryLedgerStub(), salaryDirectoryStub{}, &earningCalculatorStub{})

	err := svc.EnsureForMonth(context.Background(), "org-1", month("2024-10"))
	assert.ErrorIs(t, err, appErrors.ErrFutureMonth)
}

func TestPayAccumulatesPartialPayouts(t *testing.T) {
	ledger := newSalaryLedgerStub(&models.StaffSalary{
		ID:             "sal-1",
		OrganizationID: "org-1",
		UserID:         "adm-1",
		ForMonth:       month("2024-09"),
		BaseSalary:     d("2000000"),
		PaidAmount:     decimal.Zero,
		Status:         models.SalaryUnpaid,
	})
	svc := newSalaryService(ledger, salaryDirectoryStub{}, &earningCalculatorStub{})

	row, err := svc.Pay(context.Background(), "sal-1", d("800000"), "advance", "admin")
	require.NoError(t, err)
	assert.Equal(t, models.SalaryPartial, row.Status)
	assert.Equal(t, "800000.00", row.PaidAmount.StringFixed(2))

	row, err = svc.Pay(context.Background(), "sal-1", d("1200000"), "remainder", "admin")
	require.NoError(t, err)
	assert.Equal(t, models.SalaryPaid, row.Status)

	payments, err := svc.ListPayments(context.Background(), "sal-1")
	require.NoError(t, err)
	assert.Len(t, payments, 2)
}

func TestPayRejectsFrozenRow(t *testing.T) {
	ledger := newSalaryLedgerStub(&models.StaffSalary{
		ID:         "sal-1",
		BaseSalary: d("2000000"),
		PaidAmount: d("2000000"),
		Status:     models.SalaryPaid,
	})
	svc := newSalaryService(ledger, salaryDirectoryStub{}, &earningCalculatorStub{})

	_, err := svc.Pay(context.Background(), "sal-1", d("1"), "", "admin")
	assert.ErrorIs(t, err, appErrors.ErrFinalized)
}

func TestPayRejectsNonPositiveAmount(t *testing.T) {
	svc := newSalaryService(newSalaryLedgerStub(), salaryDirectoryStub{}, &earningCalculatorStub{})

	_, err := svc.Pay(context.Background(), "sal-1", decimal.Zero, "", "admin")
	assert.Error(t, err)
}
