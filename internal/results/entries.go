package results

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// Put inserts or replaces entry and its tags.
func (s *Store) Put(ctx context.Context, entry *Entry) error {
	if entry == nil || strings.TrimSpace(entry.ID) == "" {
		return errors.New("entry id required")
	}
	if entry.Timestamp == "" {
		entry.Timestamp = FormatTimestamp(time.Now())
	}
	if entry.ExtractedTags == nil {
		entry.ExtractedTags = []string{}
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO entries (id, timestamp, hash, title, payload) VALUES (?, ?, ?, ?, ?)
             ON CONFLICT(id) DO UPDATE SET timestamp = excluded.timestamp, hash = excluded.hash,
             title = excluded.title, payload = excluded.payload`,
			entry.ID, entry.Timestamp, entry.Hash, entry.Title, string(payload),
		); err != nil {
			return fmt.Errorf("upsert entry: %w", err)
		}
		return replaceTags(ctx, tx, entry.ID, entry.ExtractedTags)
	})
}

func replaceTags(ctx context.Context, tx *sql.Tx, id string, tags []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM entry_tags WHERE entry_id = ?`, id); err != nil {
		return fmt.Errorf("clear tags: %w", err)
	}
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO entry_tags (entry_id, tag) VALUES (?, ?)`, id, tag,
		); err != nil {
			return fmt.Errorf("insert tag: %w", err)
		}
	}
	return nil
}

// Get returns the entry with id, or nil when none exists.
func (s *Store) Get(ctx context.Context, id string) (*Entry, error) {
	return s.getOne(ctx, `SELECT payload FROM entries WHERE id = ?`, id)
}

// GetByTimestamp returns the entry created at timestamp, or nil.
func (s *Store) GetByTimestamp(ctx context.Context, timestamp string) (*Entry, error) {
	return s.getOne(ctx, `SELECT payload FROM entries WHERE timestamp = ? ORDER BY id LIMIT 1`, timestamp)
}

// FindByHash returns the newest entry with the given content hash, or nil.
func (s *Store) FindByHash(ctx context.Context, hash string) (*Entry, error) {
	return s.getOne(ctx, `SELECT payload FROM entries WHERE hash = ? ORDER BY timestamp DESC LIMIT 1`, hash)
}

func (s *Store) getOne(ctx context.Context, query string, arg any) (*Entry, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return decodeEntry(payload)
}

// ListOptions filters List.
type ListOptions struct {
	Tag   string
	Limit int
}

// List returns entries newest first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]*Entry, error) {
	query := `SELECT payload FROM entries`
	var args []any
	if tag := strings.TrimSpace(opts.Tag); tag != "" {
		query += ` WHERE id IN (SELECT entry_id FROM entry_tags WHERE tag = ? COLLATE NOCASE)`
		args = append(args, tag)
	}
	query += ` ORDER BY timestamp DESC, id`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entry, err := decodeEntry(payload)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Count returns the number of stored entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}

// CountByHash returns how many entries reference hash.
func (s *Store) CountByHash(ctx context.Context, hash string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM entries WHERE hash = ?`, hash).Scan(&n); err != nil {
		return 0, fmt.Errorf("count entries by hash: %w", err)
	}
	return n, nil
}

// Delete removes the entry with id. Tags are removed by cascade.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	var removed bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete entry: %w", err)
		}
		n, err := res.RowsAffected()
		removed = n > 0
		return err
	})
	return removed, err
}

// UpdateTags replaces the tags of an existing entry and returns the updated
// entry. formatted is stored as the entry's rendered tag string.
func (s *Store) UpdateTags(ctx context.Context, id string, tags []string, formatted string) (*Entry, error) {
	entry, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, fmt.Errorf("entry %s not found", id)
	}
	if tags == nil {
		tags = []string{}
	}
	entry.ExtractedTags = tags
	entry.FormattedTags = formatted
	if err := s.Put(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// TagCounts returns every tag with its usage count, most used first.
func (s *Store) TagCounts(ctx context.Context) ([]TagCount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT tag, COUNT(1) AS n FROM entry_tags GROUP BY tag ORDER BY n DESC, tag`)
	if err != nil {
		return nil, fmt.Errorf("tag counts: %w", err)
	}
	defer rows.Close()
	var counts []TagCount
	for rows.Next() {
		var tc TagCount
		if err := rows.Scan(&tc.Tag, &tc.Count); err != nil {
			return nil, err
		}
		counts = append(counts, tc)
	}
	return counts, rows.Err()
}

// exportDocument is the portable backup format.
type exportDocument struct {
	Version    int      `json:"version"`
	ExportedAt string   `json:"exportedAt"`
	Entries    []*Entry `json:"entries"`
}

const exportVersion = 1

// Export writes every entry as an indented JSON document.
func (s *Store) Export(ctx context.Context, w io.Writer) (int, error) {
	entries, err := s.List(ctx, ListOptions{})
	if err != nil {
		return 0, err
	}
	if entries == nil {
		entries = []*Entry{}
	}
	doc := exportDocument{
		Version:    exportVersion,
		ExportedAt: FormatTimestamp(time.Now()),
		Entries:    entries,
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return 0, fmt.Errorf("encode export: %w", err)
	}
	return len(entries), nil
}

// Import reads a document produced by Export and upserts its entries. A bare
// JSON array of entries is accepted too.
func (s *Store) Import(ctx context.Context, r io.Reader) (int, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("read import: %w", err)
	}
	var entries []*Entry
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal([]byte(trimmed), &entries); err != nil {
			return 0, fmt.Errorf("decode import: %w", err)
		}
	} else {
		var doc exportDocument
		if err := json.Unmarshal([]byte(trimmed), &doc); err != nil {
			return 0, fmt.Errorf("decode import: %w", err)
		}
		if doc.Version > exportVersion {
			return 0, fmt.Errorf("import version %d is newer than supported version %d", doc.Version, exportVersion)
		}
		entries = doc.Entries
	}
	imported := 0
	for _, entry := range entries {
		if entry == nil || strings.TrimSpace(entry.ID) == "" {
			continue
		}
		if err := s.Put(ctx, entry); err != nil {
			return imported, err
		}
		imported++
	}
	return imported, nil
}

func decodeEntry(payload string) (*Entry, error) {
	var entry Entry
	if err := json.Unmarshal([]byte(payload), &entry); err != nil {
		return nil, fmt.Errorf("decode entry: %w", err)
	}
	if entry.ExtractedTags == nil {
		entry.ExtractedTags = []string{}
	}
	return &entry, nil
}
