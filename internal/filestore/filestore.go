// Package filestore is the file collaborator of the pipeline: it reads
// screenshots, writes notes and metadata, and moves files to a trash
// directory instead of deleting them outright.
package filestore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"visionrecall/internal/fileutil"
)

// Store operates on the local filesystem.
type Store struct {
	trashDir string
	now      func() time.Time
}

// New returns a Store that trashes files into trashDir.
func New(trashDir string) *Store {
	return &Store{trashDir: trashDir, now: time.Now}
}

// TrashDir returns the trash directory.
func (s *Store) TrashDir() string {
	return s.trashDir
}

// ReadBytes returns the contents of path.
func (s *Store) ReadBytes(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// WriteBytes atomically writes data to path, creating parent directories.
func (s *Store) WriteBytes(path string, data []byte) error {
	return fileutil.WriteFileAtomic(path, data, 0o644)
}

// CreateExclusive writes data to path and fails if path already exists.
func (s *Store) CreateExclusive(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// Copy copies src to dst and returns the SHA-256 digest of the copy.
func (s *Store) Copy(src, dst string) (string, error) {
	return fileutil.CopyFileVerified(src, dst)
}

// Exists reports whether path exists.
func (s *Store) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Delete removes path. A missing file is not an error.
func (s *Store) Delete(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

// Trash moves path into the trash directory and returns the new location.
// Name collisions get a timestamp suffix. A missing file is not an error and
// returns "".
func (s *Store) Trash(path string) (string, error) {
	if strings.TrimSpace(s.trashDir) == "" {
		return "", s.Delete(path)
	}
	if !s.Exists(path) {
		return "", nil
	}
	base := filepath.Base(path)
	target := filepath.Join(s.trashDir, base)
	if s.Exists(target) {
		ext := filepath.Ext(base)
		stem := strings.TrimSuffix(base, ext)
		target = filepath.Join(s.trashDir, stem+"-"+strconv.FormatInt(s.now().UnixMilli(), 10)+ext)
	}
	if err := fileutil.MoveFile(path, target); err != nil {
		return "", fmt.Errorf("trash %s: %w", path, err)
	}
	return target, nil
}
