package sqlitedb_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"testing/fstest"

	"visionrecall/internal/sqlitedb"
)

func testMigrations(upTo int) sqlitedb.Migrations {
	files := []struct{ name, sql string }{
		{"1_notes.up.sql", `CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT NOT NULL);`},
		{"2_note_title.up.sql", `ALTER TABLE notes ADD COLUMN title TEXT;`},
	}
	fsys := fstest.MapFS{}
	for _, f := range files[:upTo] {
		fsys["migrations/"+f.name] = &fstest.MapFile{Data: []byte(f.sql)}
	}
	return sqlitedb.Migrations{FS: fsys, Dir: "migrations"}
}

func TestOpenAppliesMigrationsOnce(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "test.db")

	db, err := sqlitedb.Open(ctx, path, testMigrations(1))
	if err != nil {
		t.Fatalf("Open v1: %v", err)
	}
	if version, err := sqlitedb.Version(ctx, db); err != nil || version != 1 {
		t.Fatalf("Version = %d, %v", version, err)
	}
	if _, err := sqlitedb.Exec(ctx, db, `INSERT INTO notes (body) VALUES (?)`, "kept"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	db.Close()

	db, err = sqlitedb.Open(ctx, path, testMigrations(2))
	if err != nil {
		t.Fatalf("Open v2: %v", err)
	}
	defer db.Close()

	version, err := sqlitedb.Version(ctx, db)
	if err != nil || version != 2 {
		t.Fatalf("Version = %d, %v", version, err)
	}
	var body string
	if err := db.QueryRowContext(ctx, `SELECT body FROM notes WHERE title IS NULL`).Scan(&body); err != nil || body != "kept" {
		t.Fatalf("existing row lost: %q, %v", body, err)
	}

	if err := sqlitedb.Migrate(db, testMigrations(2)); err != nil {
		t.Fatalf("re-running migrations should be a no-op: %v", err)
	}
}

func TestOpenRejectsNewerSchema(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := sqlitedb.Open(ctx, path, testMigrations(2))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	db.Close()

	if _, err := sqlitedb.Open(ctx, path, testMigrations(1)); !errors.Is(err, sqlitedb.ErrNewerSchema) {
		t.Fatalf("expected ErrNewerSchema, got %v", err)
	}
}

func TestOpenRejectsMissingSource(t *testing.T) {
	ctx := context.Background()
	_, err := sqlitedb.Open(ctx, filepath.Join(t.TempDir(), "test.db"), sqlitedb.Migrations{})
	if err == nil {
		t.Fatal("expected error without migration files")
	}
}

func TestVersionOfFreshDatabase(t *testing.T) {
	ctx := context.Background()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "fresh.db"))
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()
	if version, err := sqlitedb.Version(ctx, db); err != nil || version != 0 {
		t.Fatalf("Version = %d, %v", version, err)
	}
}

func TestWithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	db, err := sqlitedb.Open(ctx, filepath.Join(t.TempDir(), "test.db"), testMigrations(2))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	boom := errors.New("boom")
	err = sqlitedb.WithTx(ctx, db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO notes (body) VALUES ('discarded')`); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notes`).Scan(&count); err != nil || count != 0 {
		t.Fatalf("rolled back insert persisted: %d, %v", count, err)
	}
}

func TestRetryOnBusy(t *testing.T) {
	busy := errors.New("database is locked (SQLITE_BUSY)")
	calls := 0
	err := sqlitedb.RetryOnBusy(context.Background(), func() error {
		calls++
		if calls < 3 {
			return busy
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("RetryOnBusy = %v after %d calls", err, calls)
	}

	calls = 0
	other := errors.New("constraint failed")
	if err := sqlitedb.RetryOnBusy(context.Background(), func() error {
		calls++
		return other
	}); !errors.Is(err, other) || calls != 1 {
		t.Fatalf("non-busy errors should not retry: %v after %d calls", err, calls)
	}
}
