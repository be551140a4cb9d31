package database

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"testing/fstest"

	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func migrationFS() fstest.MapFS {
	return fstest.MapFS{
		"002_breaks.up.sql":     {Data: []byte("CREATE TABLE price_breaks (product_id BIGINT)")},
		"001_products.up.sql":   {Data: []byte("CREATE TABLE products (id BIGINT PRIMARY KEY)")},
		"001_products.down.sql": {Data: []byte("DROP TABLE products")},
		"README.md":             {Data: []byte("schema notes")},
	}
}

func expectApplied(mock pgxmock.PgxPoolIface, versions ...string) {
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	rows := pgxmock.NewRows([]string{"version"})
	for _, v := range versions {
		rows.AddRow(v)
	}
	mock.ExpectQuery("SELECT version FROM schema_migrations").WillReturnRows(rows)
}

func TestLoadMigrations_UpFilesInOrder(t *testing.T) {
	got, err := LoadMigrations(migrationFS())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "001_products.up.sql", got[0].Version)
	assert.Equal(t, "CREATE TABLE products (id BIGINT PRIMARY KEY)", got[0].SQL)
	assert.Equal(t, "002_breaks.up.sql", got[1].Version)
}

func TestRunMigrations_AppliesOnlyPending(t *testing.T) {
	mock, err := NewMockPool()
	require.NoError(t, err)
	defer mock.Close()

	expectApplied(mock, "001_products.up.sql")
	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").WithArgs(migrationLockID).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec("INSERT INTO schema_migrations").WithArgs("002_breaks.up.sql").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("CREATE TABLE price_breaks").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCommit()

	require.NoError(t, RunMigrations(context.Background(), mock, migrationFS(), discardLogger()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_NothingPending(t *testing.T) {
	mock, err := NewMockPool()
	require.NoError(t, err)
	defer mock.Close()

	expectApplied(mock, "001_products.up.sql", "002_breaks.up.sql")

	require.NoError(t, RunMigrations(context.Background(), mock, migrationFS(), discardLogger()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_ConcurrentInstanceAlreadyApplied(t *testing.T) {
	mock, err := NewMockPool()
	require.NoError(t, err)
	defer mock.Close()

	expectApplied(mock, "001_products.up.sql")
	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").WithArgs(migrationLockID).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec("INSERT INTO schema_migrations").WithArgs("002_breaks.up.sql").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectCommit()

	require.NoError(t, RunMigrations(context.Background(), mock, migrationFS(), discardLogger()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_SQLErrorRollsBackWithoutRetry(t *testing.T) {
	mock, err := NewMockPool()
	require.NoError(t, err)
	defer mock.Close()

	expectApplied(mock)
	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").WithArgs(migrationLockID).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec("INSERT INTO schema_migrations").WithArgs("001_products.up.sql").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("CREATE TABLE products").
		WillReturnError(&pgconn.PgError{Code: "42601", Message: "syntax error at or near"})
	mock.ExpectRollback()

	err = RunMigrations(context.Background(), mock, migrationFS(), discardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "execute migration 001_products.up.sql")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRetrier_SkipsNonRetryableErrors(t *testing.T) {
	syntax := &pgconn.PgError{Code: "42601", Message: "syntax error"}
	calls := 0
	r := retrier{op: "run migrations", attempts: 3, retryable: isConnectionError}

	err := r.do(context.Background(), func() error {
		calls++
		return syntax
	})
	assert.Same(t, syntax, err)
	assert.Equal(t, 1, calls)
}

func TestRetrier_RetriesConnectionErrorsUntilCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	r := retrier{op: "run migrations", warning: "retrying", attempts: 3, logger: discardLogger(), retryable: isConnectionError}
	err := r.do(ctx, func() error {
		calls++
		return errors.New("dial tcp 127.0.0.1:5432: connection refused")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, err.Error(), "run migrations: context canceled during retry")
	assert.Equal(t, 1, calls)
}

func TestIsConnectionError_ServerErrors(t *testing.T) {
	assert.True(t, isConnectionError(&pgconn.PgError{Code: "08006"}))
	assert.False(t, isConnectionError(&pgconn.PgError{Code: "42P01", Message: "connection refused"}))
	assert.True(t, isConnectionError(io.ErrUnexpectedEOF))
}
