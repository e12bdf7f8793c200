package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lc-billing-api/internal/models"
)

func salaryRows(id, base, paid string, status models.SalaryStatus) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "organization_id", "user_id", "for_month", "base_salary", "paid_amount",
		"status", "paid_at", "comment", "created_at", "updated_at",
	}).AddRow(id, "org-1", "usr-1", now, base, paid, status, nil, "", now, now)
}

func TestSalaryRepositoryPayPartial(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSalaryRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM staff_salaries WHERE id = \\$1 FOR UPDATE").
		WithArgs("sal-1").
		WillReturnRows(salaryRows("sal-1", "2000000", "0", models.SalaryUnpaid))
	mock.ExpectExec("UPDATE staff_salaries SET paid_amount").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO staff_salary_payments").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	salary, err := repo.Pay(context.Background(), "sal-1", decimal.RequireFromString("800000"), "advance", nil, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, models.SalaryPartial, salary.Status)
	assert.Equal(t, "800000.00", salary.PaidAmount.StringFixed(2))
	assert.Nil(t, salary.PaidAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSalaryRepositoryPayClampsToBase(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSalaryRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM staff_salaries WHERE id = \\$1 FOR UPDATE").
		WithArgs("sal-1").
		WillReturnRows(salaryRows("sal-1", "2000000", "1500000", models.SalaryPartial))
	mock.ExpectExec("UPDATE staff_salaries SET paid_amount").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO staff_salary_payments").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	salary, err := repo.Pay(context.Background(), "sal-1", decimal.RequireFromString("900000"), "", nil, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, models.SalaryPaid, salary.Status)
	assert.Equal(t, "2000000.00", salary.PaidAmount.StringFixed(2))
	require.NotNil(t, salary.PaidAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSalaryRepositoryPayMissingRow(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSalaryRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM staff_salaries WHERE id = \\$1 FOR UPDATE").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.Pay(context.Background(), "missing", decimal.RequireFromString("1"), "", nil, time.Now().UTC())
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSalaryRepositoryFindByUserMonthMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSalaryRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM staff_salaries WHERE user_id = \\$1").
		WithArgs("usr-1", sqlmock.AnyArg()).
		WillReturnError(sql.ErrNoRows)

	salary, err := repo.FindByUserMonth(context.Background(), "usr-1", time.Now())
	require.NoError(t, err)
	assert.Nil(t, salary)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSalaryRepositoryIsPaid(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSalaryRepository(db)

	month := time.Date(2024, time.September, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("usr-1", month).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	paid, err := repo.IsPaid(context.Background(), "usr-1", month)
	require.NoError(t, err)
	assert.True(t, paid)
	assert.NoError(t, mock.ExpectationsWereMet())
}
