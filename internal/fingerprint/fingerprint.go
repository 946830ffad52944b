// Package fingerprint decides whether a screenshot has already been processed.
//
// Each accepted or rejected file leaves a Record keyed by path. A separate set
// of known content hashes catches duplicates that were renamed or copied. Both
// are written through to a kvstore blob after every mutation.
package fingerprint

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"visionrecall/internal/fileutil"
	"visionrecall/internal/kvstore"
	"visionrecall/internal/logging"
)

// Record is the persisted fingerprint of one file path.
type Record struct {
	Size  int64  `json:"size"`
	MTime int64  `json:"mtime"`
	Hash  string `json:"hash"`
}

type document struct {
	Records map[string]Record `json:"processedFileRecords"`
	Hashes  []string          `json:"processedHashes"`
}

// Stats summarizes the dedup store.
type Stats struct {
	Records int `json:"records"`
	Hashes  int `json:"hashes"`
}

// Store holds fingerprint records and the known hash set.
type Store struct {
	kv     *kvstore.Store
	logger *slog.Logger

	mu      sync.RWMutex
	records map[string]Record
	hashes  map[string]struct{}
}

// Open loads the dedup state from the blob at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	kv, err := kvstore.Open(path)
	if err != nil {
		return nil, err
	}
	s := &Store{
		kv:      kv,
		logger:  logging.NewComponentLogger(logger, "fingerprint"),
		records: make(map[string]Record),
		hashes:  make(map[string]struct{}),
	}
	var doc document
	if _, err := kv.Load(&doc); err != nil {
		return nil, fmt.Errorf("load fingerprints: %w", err)
	}
	for p, rec := range doc.Records {
		s.records[p] = rec
	}
	for _, h := range doc.Hashes {
		s.hashes[h] = struct{}{}
	}
	return s, nil
}

// ShouldProcess reports whether the file at path is new content. When
// hashOnly is false an unchanged size and mtime for a known path short-cuts
// to false without reading the file. Otherwise the content hash decides: a
// known hash records the path and returns false, a new hash records both and
// returns true. Hashing errors are returned and the caller must not process.
func (s *Store) ShouldProcess(path string, hashOnly bool) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	size, mtime := info.Size(), info.ModTime().UnixMilli()

	if !hashOnly && s.unchanged(path, size, mtime) {
		return false, nil
	}

	hash, _, err := fileutil.HashFile(path)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := Record{Size: size, MTime: mtime, Hash: hash}
	prev, hadPrev := s.records[path]
	_, known := s.hashes[hash]
	s.records[path] = rec
	if !known {
		s.hashes[hash] = struct{}{}
	}
	if err := s.saveLocked(); err != nil {
		// Memory must match the blob, or a retry would see this content as a duplicate.
		if hadPrev {
			s.records[path] = prev
		} else {
			delete(s.records, path)
		}
		if !known {
			delete(s.hashes, hash)
		}
		return false, err
	}
	if known {
		s.logger.Debug("duplicate content",
			logging.String("path", path),
			logging.String("hash", hash))
		return false, nil
	}
	return true, nil
}

// Known reports whether path has a record with the given size and mtime.
// It never reads the file or mutates state.
func (s *Store) Known(path string, size, mtimeMillis int64) bool {
	return s.unchanged(path, size, mtimeMillis)
}

func (s *Store) unchanged(path string, size, mtime int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[path]
	return ok && rec.Size == size && rec.MTime == mtime
}

// Lookup returns the record for path.
func (s *Store) Lookup(path string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[path]
	return rec, ok
}

// Forget drops the record for path. Its hash is dropped too once no other
// record references it, so the same content can be processed again.
func (s *Store) Forget(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[path]
	if !ok {
		return nil
	}
	delete(s.records, path)
	if !s.referencedLocked(rec.Hash) {
		delete(s.hashes, rec.Hash)
	}
	return s.saveLocked()
}

// ForgetHash drops the hash and every record that carries it.
func (s *Store) ForgetHash(hash string) error {
	if hash == "" {
		return errors.New("fingerprint: hash required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, known := s.hashes[hash]
	removed := 0
	for p, rec := range s.records {
		if rec.Hash == hash {
			delete(s.records, p)
			removed++
		}
	}
	if !known && removed == 0 {
		return nil
	}
	delete(s.hashes, hash)
	return s.saveLocked()
}

// Prune evicts records whose file mtime is older than maxAge and drops hashes
// no longer referenced by any record. It returns the number of records removed.
func (s *Store) Prune(maxAge time.Duration, now time.Time) (int, error) {
	if maxAge <= 0 {
		return 0, nil
	}
	cutoff := now.Add(-maxAge).UnixMilli()

	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for p, rec := range s.records {
		if rec.MTime < cutoff {
			delete(s.records, p)
			removed++
		}
	}
	if removed == 0 {
		return 0, nil
	}
	for h := range s.hashes {
		if !s.referencedLocked(h) {
			delete(s.hashes, h)
		}
	}
	if err := s.saveLocked(); err != nil {
		return 0, err
	}
	s.logger.Info("pruned fingerprint records",
		logging.Int("removed", removed),
		logging.Duration("max_age", maxAge))
	return removed, nil
}

// Stats returns the current record and hash counts.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{Records: len(s.records), Hashes: len(s.hashes)}
}

func (s *Store) referencedLocked(hash string) bool {
	for _, rec := range s.records {
		if rec.Hash == hash {
			return true
		}
	}
	return false
}

func (s *Store) saveLocked() error {
	doc := document{
		Records: make(map[string]Record, len(s.records)),
		Hashes:  make([]string, 0, len(s.hashes)),
	}
	for p, rec := range s.records {
		doc.Records[p] = rec
	}
	for h := range s.hashes {
		doc.Hashes = append(doc.Hashes, h)
	}
	sort.Strings(doc.Hashes)
	if err := s.kv.Save(doc); err != nil {
		return fmt.Errorf("persist fingerprints: %w", err)
	}
	return nil
}
