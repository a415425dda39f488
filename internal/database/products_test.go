package database

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drluca/shopstream/orderservice/internal/contracts"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return &DB{SQL: sqlx.NewDb(mockDB, "sqlmock")}, mock
}

func beginTx(t *testing.T, db *DB, mock sqlmock.Sqlmock) *sqlx.Tx {
	t.Helper()
	mock.ExpectBegin()
	tx, err := db.SQL.Beginx()
	require.NoError(t, err)
	return tx
}

func TestDecrementStock(t *testing.T) {
	t.Run("moves units from current to total out", func(t *testing.T) {
		db, mock := newMockDB(t)
		tx := beginTx(t, db, mock)

		mock.ExpectExec(regexp.QuoteMeta(`UPDATE products SET current_stock = current_stock - $1, total_out = total_out + $1 WHERE id = $2 AND current_stock >= $1`)).
			WithArgs(3, int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, db.DecrementStock(context.Background(), tx, 1, 3))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("fails with insufficient stock when the guard matches no row", func(t *testing.T) {
		db, mock := newMockDB(t)
		tx := beginTx(t, db, mock)

		mock.ExpectExec(`UPDATE products SET current_stock = current_stock - `).
			WithArgs(3, int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := db.DecrementStock(context.Background(), tx, 1, 3)
		require.Error(t, err)
		assert.True(t, errors.Is(err, contracts.ErrInsufficientStock))
	})
}

func TestIncrementStock(t *testing.T) {
	t.Run("adds units to current and total in", func(t *testing.T) {
		db, mock := newMockDB(t)
		tx := beginTx(t, db, mock)

		mock.ExpectExec(regexp.QuoteMeta(`UPDATE products SET current_stock = current_stock + $1, total_in = total_in + $1 WHERE id = $2`)).
			WithArgs(3, int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, db.IncrementStock(context.Background(), tx, 1, 3))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("reports a missing product", func(t *testing.T) {
		db, mock := newMockDB(t)
		tx := beginTx(t, db, mock)

		mock.ExpectExec(`UPDATE products SET current_stock = current_stock \+ `).
			WithArgs(3, int64(99)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := db.IncrementStock(context.Background(), tx, 99, 3)
		require.Error(t, err)
		assert.Equal(t, contracts.KindNotFound, contracts.KindOf(err))
	})
}

func TestRestoreStock(t *testing.T) {
	db, mock := newMockDB(t)
	tx := beginTx(t, db, mock)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE products SET current_stock = current_stock + $1, total_out = total_out - $1 WHERE id = $2`)).
		WithArgs(3, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, db.RestoreStock(context.Background(), tx, 1, 3))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInTx(t *testing.T) {
	t.Run("commits when fn succeeds", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectCommit()

		err := db.InTx(context.Background(), func(tx *sqlx.Tx) error { return nil })
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back and returns the original error when fn fails", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectRollback()

		boom := errors.New("boom")
		err := db.InTx(context.Background(), func(tx *sqlx.Tx) error { return boom })
		assert.True(t, errors.Is(err, boom))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
