// Package sqlitedb opens the SQLite databases behind the queue journal and
// the entries store. Schemas are versioned with golang-migrate: each store
// embeds numbered *.up.sql files that are applied in order on open and
// tracked in the schema_migrations table.
package sqlitedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

// ErrNewerSchema is returned when the database was migrated by a newer build.
var ErrNewerSchema = errors.New("database schema is newer than this build")

// Migrations locates the numbered migration files of one database.
type Migrations struct {
	FS  fs.FS
	Dir string
}

// Pragmas go in the DSN so every pooled connection gets them.
var pragmas = []string{
	"journal_mode(WAL)",
	"foreign_keys(1)",
	"busy_timeout(5000)",
}

func dsn(path string) string {
	query := make(url.Values)
	for _, pragma := range pragmas {
		query.Add("_pragma", pragma)
	}
	return "file:" + (&url.URL{Path: path}).EscapedPath() + "?" + query.Encode()
}

// Open opens the database at path and runs any pending migrations.
func Open(ctx context.Context, path string, migrations Migrations) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open sqlite db %s: %w", path, err)
	}
	if err := Migrate(db, migrations); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Version reads the applied schema version. A database that was never
// migrated reports 0.
func Version(ctx context.Context, db *sql.DB) (int, error) {
	var (
		version int
		dirty   bool
	)
	err := db.QueryRowContext(ctx, "SELECT version, dirty FROM "+sqlite.DefaultMigrationsTable+" LIMIT 1").Scan(&version, &dirty)
	switch {
	case err == nil:
	case errors.Is(err, sql.ErrNoRows), strings.Contains(err.Error(), "no such table"):
		return 0, nil
	default:
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("schema version %d is dirty", version)
	}
	return version, nil
}

// Migrate applies every pending migration. The caller keeps ownership of db.
func Migrate(db *sql.DB, migrations Migrations) error {
	if migrations.FS == nil {
		return errors.New("migrations: no source")
	}
	dir := migrations.Dir
	if dir == "" {
		dir = "."
	}
	src, err := iofs.New(migrations.FS, dir)
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	latest, err := latestVersion(src)
	if err != nil {
		_ = src.Close()
		return fmt.Errorf("read migrations: %w", err)
	}

	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		_ = src.Close()
		return fmt.Errorf("init migration driver: %w", err)
	}
	// m.Close would close db as well, so only the source is released.
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		_ = src.Close()
		return fmt.Errorf("init migrations: %w", err)
	}
	defer src.Close()

	current, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
	case err != nil:
		return fmt.Errorf("read schema version: %w", err)
	case dirty:
		return fmt.Errorf("schema version %d is dirty; a previous migration failed", current)
	case current > latest:
		return fmt.Errorf("%w: database has version %d, this build knows %d", ErrNewerSchema, current, latest)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func latestVersion(src source.Driver) (uint, error) {
	version, err := src.First()
	if err != nil {
		return 0, err
	}
	for {
		next, err := src.Next(version)
		if err != nil {
			return version, nil
		}
		version = next
	}
}

const (
	sqliteBusyCode    = 5
	busyRetryAttempts = 5
	busyRetryInitial  = 10 * time.Millisecond
	busyRetryMax      = 200 * time.Millisecond
)

// IsBusy reports whether err is SQLITE_BUSY or one of its extended codes.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// RetryOnBusy runs op until it succeeds, fails with a non-busy error, or the
// attempts run out. Backoff doubles up to a cap.
func RetryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitial
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		if lastErr = op(); lastErr == nil || !IsBusy(lastErr) {
			return lastErr
		}
		if attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay = min(delay*2, busyRetryMax)
	}
	return lastErr
}

// Exec runs a statement with busy retries.
func Exec(ctx context.Context, db *sql.DB, query string, args ...any) (sql.Result, error) {
	var res sql.Result
	err := RetryOnBusy(ctx, func() error {
		var execErr error
		res, execErr = db.ExecContext(ctx, query, args...)
		return execErr
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// WithTx runs fn in a transaction, retrying the whole transaction when
// SQLite reports the database busy.
func WithTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	return RetryOnBusy(ctx, func() error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if err := fn(tx); err != nil {
			_ = tx.Rollback()
			return err
		}
		return tx.Commit()
	})
}
