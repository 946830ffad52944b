package queue

import (
	"context"
	"database/sql"
	"fmt"

	"visionrecall/internal/config"
	"visionrecall/internal/sqlitedb"
)

// Store journals queue items in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return sqlitedb.Exec(ensureContext(ctx), s.db, query, args...)
}

// Open initializes or connects to the queue database. Items left in
// processing by a previous run are returned to pending.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.QueueDBPath())
}

// OpenPath opens the queue database at an explicit path.
func OpenPath(dbPath string) (*Store, error) {
	ctx := context.Background()
	db, err := sqlitedb.Open(ctx, dbPath, migrations)
	if err != nil {
		return nil, fmt.Errorf("open queue journal: %w", err)
	}
	store := &Store{db: db, path: dbPath}
	if _, err := store.ResetProcessing(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
