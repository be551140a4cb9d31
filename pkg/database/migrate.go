package database

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const migrationSuffix = ".up.sql"

// migrationLockID serialises concurrent migrators across instances.
const migrationLockID = 7_261_034

const createMigrationsTable = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version    TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`

// Migration is one forward schema change.
type Migration struct {
	Version string
	SQL     string
}

// LoadMigrations reads every *.up.sql file at the root of fsys, ordered by
// file name.
func LoadMigrations(fsys fs.FS) ([]Migration, error) {
	names, err := fs.Glob(fsys, "*"+migrationSuffix)
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	slices.Sort(names)

	out := make([]Migration, 0, len(names))
	for _, name := range names {
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		out = append(out, Migration{Version: name, SQL: string(content)})
	}
	return out, nil
}

var transientMessages = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"i/o timeout",
	"dial tcp",
	"EOF",
	"connection timed out",
	"server closed the connection unexpectedly",
	"could not connect",
}

// isConnectionError reports whether err is a transport failure worth
// retrying. Errors reported by the server are not, except for the
// connection_exception class (SQLSTATE 08xxx).
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.HasPrefix(pgErr.Code, "08")
	}
	var netErr net.Error
	if errors.As(err, &netErr) || pgconn.Timeout(err) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	msg := err.Error()
	for _, p := range transientMessages {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// RunMigrations applies the pending *.up.sql files from fsys in name order,
// each in its own transaction, and records them in schema_migrations.
// Connection failures are retried with backoff; SQL errors are not.
func RunMigrations(ctx context.Context, pool TxBeginner, fsys fs.FS, logger *slog.Logger) error {
	all, err := LoadMigrations(fsys)
	if err != nil {
		return err
	}

	r := retrier{
		op:        "run migrations",
		warning:   "migration failed due to connection error, retrying",
		attempts:  defaultRetryAttempts,
		logger:    logger,
		retryable: isConnectionError,
	}
	return r.do(ctx, func() error {
		return migrate(ctx, pool, all, logger)
	})
}

func migrate(ctx context.Context, pool TxBeginner, all []Migration, logger *slog.Logger) error {
	if _, err := pool.Exec(ctx, createMigrationsTable); err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	applied, err := appliedVersions(ctx, pool)
	if err != nil {
		return err
	}

	pending := 0
	for _, m := range all {
		if _, ok := applied[m.Version]; ok {
			continue
		}
		ran, err := applyMigration(ctx, pool, m)
		if err != nil {
			return err
		}
		if !ran {
			continue
		}
		pending++
		logger.Info("migration applied", slog.String("version", m.Version))
	}

	logger.Info("schema up to date",
		slog.Int("applied", pending),
		slog.Int("total", len(all)),
	)
	return nil
}

func appliedVersions(ctx context.Context, db DBTX) (map[string]struct{}, error) {
	rows, err := db.Query(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]struct{})
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan applied migration: %w", err)
		}
		applied[v] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	return applied, nil
}

// applyMigration runs m and records its version atomically. The advisory
// lock makes a second instance wait; the insert conflict then reports that
// another instance already ran m.
func applyMigration(ctx context.Context, pool TxBeginner, m Migration) (ran bool, err error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin migration %s: %w", m.Version, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", migrationLockID); err != nil {
		return false, fmt.Errorf("lock migration %s: %w", m.Version, err)
	}

	tag, err := tx.Exec(ctx,
		"INSERT INTO schema_migrations (version) VALUES ($1) ON CONFLICT (version) DO NOTHING",
		m.Version)
	if err != nil {
		return false, fmt.Errorf("record migration %s: %w", m.Version, err)
	}
	if tag.RowsAffected() == 0 {
		err = tx.Commit(ctx)
		return false, err
	}

	if _, err = tx.Exec(ctx, m.SQL); err != nil {
		return false, fmt.Errorf("execute migration %s: %w", m.Version, err)
	}
	if err = tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit migration %s: %w", m.Version, err)
	}
	return true, nil
}
