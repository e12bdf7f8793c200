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

func TestEarningRepositoryFindByTeacherMonthMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEarningRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM teacher_monthly_earnings").
		WithArgs("tch-1", sqlmock.AnyArg()).
		WillReturnError(sql.ErrNoRows)

	earning, err := repo.FindByTeacherMonth(context.Background(), "tch-1", time.Now())
	require.NoError(t, err)
	assert.Nil(t, earning)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEarningRepositorySumPaidTuition(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEarningRepository(db)

	month := time.Date(2024, time.September, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT COALESCE\\(SUM\\(p.amount_paid\\), 0\\)").
		WithArgs("tch-1", month).
		WillReturnRows(sqlmock.NewRows([]string{"total"}).AddRow("1000000"))

	total, err := repo.SumPaidTuition(context.Background(), "tch-1", month)
	require.NoError(t, err)
	assert.Equal(t, "1000000.00", total.StringFixed(2))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEarningRepositoryUpsertSnapshotConsumesCarryOvers(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEarningRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO teacher_monthly_earnings").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE teacher_commission_carryovers").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	earning := &models.TeacherMonthlyEarning{
		OrganizationID:   "org-1",
		TeacherID:        "tch-1",
		ForMonth:         time.Date(2024, time.September, 1, 0, 0, 0, 0, time.UTC),
		CommissionAmount: decimal.RequireFromString("400000"),
		TotalEarning:     decimal.RequireFromString("1900000"),
		CalculatedAt:     time.Now().UTC(),
	}
	err := repo.UpsertSnapshot(context.Background(), earning, []string{"co-1", "co-2"})
	require.NoError(t, err)
	assert.NotEmpty(t, earning.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEarningRepositoryUpsertSnapshotRollsBackOnFailure(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEarningRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO teacher_monthly_earnings").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE teacher_commission_carryovers").
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := repo.UpsertSnapshot(context.Background(), &models.TeacherMonthlyEarning{
		TeacherID: "tch-1",
		ForMonth:  time.Now(),
	}, []string{"co-1"})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEarningRepositoryInsertCarryOver(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEarningRepository(db)

	mock.ExpectExec("INSERT INTO teacher_commission_carryovers").
		WithArgs(sqlmock.AnyArg(), "tch-1", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	carry := &models.TeacherCommissionCarryOver{
		TeacherID:      "tch-1",
		SourceForMonth: time.Date(2024, time.September, 1, 0, 0, 0, 0, time.UTC),
		Amount:         decimal.RequireFromString("40000"),
	}
	require.NoError(t, repo.InsertCarryOver(context.Background(), carry))
	assert.NotEmpty(t, carry.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
