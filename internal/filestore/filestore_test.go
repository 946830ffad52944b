package filestore

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWriteReadExistsDelete(t *testing.T) {
	dir := t.TempDir()
	s := New(filepath.Join(dir, "trash"))
	path := filepath.Join(dir, "nested", "note.md")

	if s.Exists(path) {
		t.Fatal("expected file to be missing")
	}
	if err := s.WriteBytes(path, []byte("hello")); err != nil {
		t.Fatalf("WriteBytes failed: %v", err)
	}
	data, err := s.ReadBytes(path)
	if err != nil || string(data) != "hello" {
		t.Fatalf("ReadBytes = %q, %v", data, err)
	}
	if err := s.Delete(path); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := s.Delete(path); err != nil {
		t.Fatalf("second Delete should be a no-op, got %v", err)
	}
}

func TestCreateExclusiveRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	s := New("")
	path := filepath.Join(dir, "a.md")
	if err := s.CreateExclusive(path, []byte("one")); err != nil {
		t.Fatalf("CreateExclusive failed: %v", err)
	}
	if err := s.CreateExclusive(path, []byte("two")); !os.IsExist(err) {
		t.Fatalf("expected exists error, got %v", err)
	}
}

func TestTrashHandlesCollisions(t *testing.T) {
	dir := t.TempDir()
	trash := filepath.Join(dir, "trash")
	s := New(trash)
	s.now = func() time.Time { return time.UnixMilli(1700000000000) }

	first := filepath.Join(dir, "shot.png")
	if err := os.WriteFile(first, []byte("1"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := s.Trash(first)
	if err != nil || got != filepath.Join(trash, "shot.png") {
		t.Fatalf("Trash = %q, %v", got, err)
	}

	if err := os.WriteFile(first, []byte("2"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err = s.Trash(first)
	if err != nil || got != filepath.Join(trash, "shot-1700000000000.png") {
		t.Fatalf("Trash collision = %q, %v", got, err)
	}
	if s.Exists(first) {
		t.Fatal("expected source removed")
	}

	if got, err := s.Trash(first); err != nil || got != "" {
		t.Fatalf("trashing missing file = %q, %v", got, err)
	}
}
