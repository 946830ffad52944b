// Package kvstore persists small JSON documents as single blob files.
//
// Every Save rewrites the whole document through a temp file and rename so a
// crash never leaves a half-written blob behind. Callers own the document
// shape; the store only guards the file.
package kvstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"

	"visionrecall/internal/fileutil"
)

// Store is a load/save blob store backed by one JSON file.
type Store struct {
	path string
	mu   sync.Mutex
}

// Open returns a store for path. The file is created lazily on first Save.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("kvstore: path required")
	}
	return &Store{path: path}, nil
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Load decodes the stored document into v. A missing or empty file leaves v
// untouched and reports found=false.
func (s *Store) Load(v any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("kvstore: read %s: %w", s.path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("kvstore: decode %s: %w", s.path, err)
	}
	return true, nil
}

// Save encodes v and atomically replaces the backing file.
func (s *Store) Save(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("kvstore: encode: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := fileutil.WriteFileAtomic(s.path, data, 0o644); err != nil {
		return fmt.Errorf("kvstore: save %s: %w", s.path, err)
	}
	return nil
}

// Remove deletes the backing file. Missing files are not an error.
func (s *Store) Remove() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("kvstore: remove %s: %w", s.path, err)
	}
	return nil
}
