package repository

import (
	"context"
	"testing"
	"time"

	"anoa.com/loyaltyledger/internal/entity"
	"anoa.com/loyaltyledger/pkg/apperror"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newMockRepo(t *testing.T) (LedgerRepository, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	return NewLedgerRepository(db), mock
}

func TestSumEarnedSince_Query(t *testing.T) {
	repo, mock := newMockRepo(t)
	userID := uuid.New()
	since := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT COALESCE\(SUM\(amount\), 0\) FROM "ledger_entries" WHERE user_id = \$1 AND direction = \$2 AND created_at >= \$3`).
		WithArgs(sqlmock.AnyArg(), string(entity.DirectionEarned), since).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(240))

	total, err := repo.SumEarnedSince(context.Background(), userID, since)
	require.NoError(t, err)
	assert.Equal(t, int64(240), total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSumEarnedSinceByUsers_Grouped(t *testing.T) {
	repo, mock := newMockRepo(t)
	a, b := uuid.New(), uuid.New()
	since := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT user_id, COALESCE\(SUM\(amount\), 0\) AS total FROM "ledger_entries" WHERE .* GROUP BY .*user_id`).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "total"}).AddRow(a.String(), 70))

	totals, err := repo.SumEarnedSinceByUsers(context.Background(), []uuid.UUID{a, b}, since)
	require.NoError(t, err)
	assert.Equal(t, int64(70), totals[a])
	assert.Zero(t, totals[b])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSumEarnedSinceByUsers_Empty(t *testing.T) {
	repo, mock := newMockRepo(t)

	totals, err := repo.SumEarnedSinceByUsers(context.Background(), nil, time.Now())
	require.NoError(t, err)
	assert.Empty(t, totals)
	require.NoError(t, mock.ExpectationsWereMet(), "no query for an empty id list")
}

func TestSaveAccount_VersionCheck(t *testing.T) {
	repo, mock := newMockRepo(t)
	acc := &entity.Account{UserID: uuid.New(), Balance: 10, Version: 4}

	t.Run("stale version", func(t *testing.T) {
		mock.ExpectExec(`UPDATE "accounts" SET .* WHERE .*user_id = .*version = `).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.SaveAccount(context.Background(), acc)
		assert.ErrorIs(t, err, apperror.ErrConcurrentUpdate)
		assert.Equal(t, int64(4), acc.Version)
	})

	t.Run("current version", func(t *testing.T) {
		mock.ExpectExec(`UPDATE "accounts" SET .* WHERE .*user_id = .*version = `).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.SaveAccount(context.Background(), acc))
		assert.Equal(t, int64(5), acc.Version)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReferenceExists_Query(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "ledger_entries" WHERE user_id = \$1 AND source = \$2 AND reference_id = \$3`).
		WithArgs(sqlmock.AnyArg(), string(entity.SourceDailyLogin), "2026-03-02").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	exists, err := repo.ReferenceExists(context.Background(), uuid.New(), entity.SourceDailyLogin, "2026-03-02")
	require.NoError(t, err)
	assert.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBalanceChecks_SingleStatement(t *testing.T) {
	repo, mock := newMockRepo(t)
	a := uuid.New()

	mock.ExpectQuery(`SELECT accounts.user_id, accounts.balance,\s+\(SELECT COALESCE\(SUM\(CASE WHEN e.direction = \$1 THEN e.amount ELSE -e.amount END\), 0\)\s+FROM ledger_entries e WHERE e.user_id = accounts.user_id\) AS ledger FROM "accounts" WHERE accounts.user_id > \$2 ORDER BY accounts.user_id asc LIMIT \$3`).
		WithArgs(string(entity.DirectionEarned), sqlmock.AnyArg(), 500).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "balance", "ledger"}).AddRow(a.String(), 42, 10))

	rows, err := repo.BalanceChecks(context.Background(), uuid.Nil, 500)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, BalanceCheck{UserID: a, Balance: 42, Ledger: 10}, rows[0])
	require.NoError(t, mock.ExpectationsWereMet())
}
