package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const itemColumns = "id, source_path, status, error_message, created_at, updated_at"

// Enqueue inserts a pending item for sourcePath.
func (s *Store) Enqueue(ctx context.Context, sourcePath string) (*Item, error) {
	sourcePath = strings.TrimSpace(sourcePath)
	if sourcePath == "" {
		return nil, errors.New("source path required")
	}
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(ctx,
		`INSERT INTO queue_items (source_path, status, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		sourcePath, StatusPending, timestamp, timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert item: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches a queue item by identifier. Missing items return nil, nil.
func (s *Store) GetByID(ctx context.Context, id int64) (*Item, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+itemColumns+` FROM queue_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// FindActiveByPath returns the newest pending or processing item for path.
func (s *Store) FindActiveByPath(ctx context.Context, sourcePath string) (*Item, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+itemColumns+` FROM queue_items
         WHERE source_path = ? AND status IN (?, ?)
         ORDER BY id DESC LIMIT 1`,
		sourcePath, StatusPending, StatusProcessing,
	)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by path: %w", err)
	}
	return item, nil
}

// FailedPaths maps every source path whose newest journal row is failed to
// the time that row was written. Retrying or clearing the row drops the path.
func (s *Store) FailedPaths(ctx context.Context) (map[string]time.Time, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT q.source_path, q.updated_at FROM queue_items q
         WHERE q.status = ? AND q.id = (SELECT MAX(id) FROM queue_items WHERE source_path = q.source_path)`,
		StatusFailed,
	)
	if err != nil {
		return nil, fmt.Errorf("list failed paths: %w", err)
	}
	defer rows.Close()

	failed := make(map[string]time.Time)
	for rows.Next() {
		var (
			path    string
			updated sql.NullString
		)
		if err := rows.Scan(&path, &updated); err != nil {
			return nil, fmt.Errorf("scan failed path: %w", err)
		}
		at, err := parseTimeString(updated.String)
		if err != nil {
			return nil, fmt.Errorf("failed path %s: %w", path, err)
		}
		failed[path] = at
	}
	return failed, rows.Err()
}

// List returns items in FIFO order, optionally filtered by status.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Item, error) {
	query := `SELECT ` + itemColumns + ` FROM queue_items`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// UpdateStatus records a status transition for id.
func (s *Store) UpdateStatus(ctx context.Context, id int64, status Status, errorMessage string) error {
	if _, ok := ParseStatus(string(status)); !ok {
		return fmt.Errorf("unknown status %q", status)
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE queue_items SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		status, nullableString(errorMessage), time.Now().UTC().Format(time.RFC3339Nano), id,
	)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("queue item %d not found", id)
	}
	return nil
}

// Remove deletes one item regardless of its status.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM queue_items WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("remove item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Clear deletes every item.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM queue_items`)
	if err != nil {
		return 0, fmt.Errorf("clear queue: %w", err)
	}
	return res.RowsAffected()
}

// ClearTerminal deletes completed, failed and skipped items.
func (s *Store) ClearTerminal(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`DELETE FROM queue_items WHERE status IN (?, ?, ?)`,
		StatusCompleted, StatusFailed, StatusSkipped,
	)
	if err != nil {
		return 0, fmt.Errorf("clear terminal items: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailed moves failed items back to pending. With no ids every failed
// item is retried.
func (s *Store) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	query := `UPDATE queue_items SET status = ?, error_message = NULL, updated_at = ? WHERE status = ?`
	args := []any{StatusPending, time.Now().UTC().Format(time.RFC3339Nano), StatusFailed}
	if len(ids) > 0 {
		query += ` AND id IN (` + makePlaceholders(len(ids)) + `)`
		for _, id := range ids {
			args = append(args, id)
		}
	}
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry failed: %w", err)
	}
	return res.RowsAffected()
}

// ResetProcessing returns items stuck in processing to pending.
func (s *Store) ResetProcessing(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE queue_items SET status = ?, updated_at = ? WHERE status = ?`,
		StatusPending, time.Now().UTC().Format(time.RFC3339Nano), StatusProcessing,
	)
	if err != nil {
		return 0, fmt.Errorf("reset processing: %w", err)
	}
	return res.RowsAffected()
}

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		id           int64
		sourcePath   string
		statusStr    string
		errorMessage sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)
	if err := scanner.Scan(&id, &sourcePath, &statusStr, &errorMessage, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	item := &Item{
		ID:           id,
		SourcePath:   sourcePath,
		Status:       Status(statusStr),
		ErrorMessage: errorMessage.String,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		item.UpdatedAt = updated
	}
	return item, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
