package results

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"visionrecall/internal/config"
	"visionrecall/internal/sqlitedb"
)

//go:embed migrations/*.up.sql
var migrationFiles embed.FS

var migrations = sqlitedb.Migrations{FS: migrationFiles, Dir: "migrations"}

// Store keeps result entries in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens the entries database configured in cfg.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.EntriesDBPath())
}

// OpenPath opens or creates the entries database at dbPath.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sqlitedb.Open(context.Background(), dbPath, migrations)
	if err != nil {
		return nil, fmt.Errorf("open entries db: %w", err)
	}
	return &Store{db: db, path: dbPath}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	return sqlitedb.WithTx(ctx, s.db, fn)
}
