package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_InTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	m := Wrap(sqlx.NewDb(db, "postgres"))
	defer m.Close()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM signals").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()
	err = m.InTx(context.Background(), func(tx *sqlx.Tx) error {
		_, err := tx.Exec("DELETE FROM signals")
		return err
	})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectRollback()
	boom := errors.New("boom")
	err = m.InTx(context.Background(), func(*sqlx.Tx) error { return boom })
	assert.ErrorIs(t, err, boom)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpen_RequiresDSN(t *testing.T) {
	_, err := Open(context.Background(), "")
	assert.Error(t, err)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", &pq.Error{Code: "23505"})))
	assert.False(t, IsUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("x")))
}
