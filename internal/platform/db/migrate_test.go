package db

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })
	return sqlx.NewDb(raw, "mysql"), mock
}

func Test_Migrate_FreshDatabase(t *testing.T) {
	conn, mock := newMock(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_meta`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT meta_value FROM schema_meta`).WillReturnRows(sqlmock.NewRows([]string{"meta_value"}))
	for v, stmts := range migrations {
		for range stmts {
			mock.ExpectExec(`CREATE TABLE IF NOT EXISTS`).WillReturnResult(sqlmock.NewResult(0, 0))
		}
		mock.ExpectExec(`INSERT INTO schema_meta`).
			WithArgs(string(rune('1' + v))).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}

	from, to, err := Migrate(context.Background(), conn)
	require.NoError(t, err)
	assert.Equal(t, 0, from)
	assert.Equal(t, schemaVersion, to)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func Test_Migrate_AlreadyCurrent(t *testing.T) {
	conn, mock := newMock(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_meta`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT meta_value FROM schema_meta`).
		WillReturnRows(sqlmock.NewRows([]string{"meta_value"}).AddRow("2"))

	from, to, err := Migrate(context.Background(), conn)
	require.NoError(t, err)
	assert.Equal(t, 2, from)
	assert.Equal(t, 2, to)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func Test_IsDuplicateKey(t *testing.T) {
	assert.True(t, IsDuplicateKey(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}))
	assert.False(t, IsDuplicateKey(&mysql.MySQLError{Number: 1452}))
	assert.False(t, IsDuplicateKey(assert.AnError))
}
