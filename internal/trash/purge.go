// Package trash lists and purges the directory that deleted entries and
// replaced screenshots are moved into.
package trash

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"visionrecall/internal/logging"
)

// PurgeResult contains the outcome of a purge.
type PurgeResult struct {
	Removed []string
	Freed   int64
	Errors  []PurgeError
}

// PurgeError pairs a trash path with its removal error.
type PurgeError struct {
	Path  string
	Error error
}

// Item describes one top-level trash entry.
type Item struct {
	Name    string
	Path    string
	ModTime time.Time
	Size    int64
}

// Purge removes trash entries whose modification time is older than maxAge
// relative to now. A missing or blank directory is an empty result.
func Purge(ctx context.Context, dir string, maxAge time.Duration, now time.Time, logger *slog.Logger) PurgeResult {
	result := PurgeResult{}
	if logger == nil {
		logger = logging.NewNop()
	}

	items, err := List(dir)
	if err != nil {
		result.Errors = append(result.Errors, PurgeError{Path: dir, Error: err})
		return result
	}

	cutoff := now.Add(-maxAge)
	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		if !item.ModTime.Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(item.Path); err != nil {
			result.Errors = append(result.Errors, PurgeError{Path: item.Path, Error: err})
			logger.Warn("failed to purge trash entry",
				logging.String("path", item.Path),
				logging.Error(err),
				logging.String(logging.FieldEventType, "trash_purge_failed"),
				logging.String(logging.FieldErrorHint, "check trash_dir permissions"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			continue
		}
		result.Removed = append(result.Removed, item.Path)
		result.Freed += item.Size
		logger.Debug("purged trash entry",
			logging.String("path", item.Path),
			logging.Duration("age", now.Sub(item.ModTime)),
		)
	}

	if len(result.Removed) > 0 {
		logger.Info("trash purged",
			logging.Int("removed", len(result.Removed)),
			logging.Int64("freed_bytes", result.Freed),
			logging.String(logging.FieldEventType, "trash_purge"),
		)
	}
	return result
}

// List returns the top-level trash entries, oldest first.
func List(dir string) ([]Item, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	items := make([]Item, 0, len(entries))
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		size := info.Size()
		if entry.IsDir() {
			size, _ = dirSize(path)
		}
		items = append(items, Item{
			Name:    entry.Name(),
			Path:    path,
			ModTime: info.ModTime(),
			Size:    size,
		})
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].ModTime.Equal(items[j].ModTime) {
			return items[i].Name < items[j].Name
		}
		return items[i].ModTime.Before(items[j].ModTime)
	})
	return items, nil
}

func dirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}
