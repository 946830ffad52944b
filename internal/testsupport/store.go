package testsupport

import (
	"context"
	"testing"

	"visionrecall/internal/config"
	"visionrecall/internal/queue"
)

// MustOpenStore opens the queue journal for cfg and closes it on cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()
	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// Enqueue journals a pending item for path.
func Enqueue(t testing.TB, store *queue.Store, path string) *queue.Item {
	t.Helper()
	item, err := store.Enqueue(context.Background(), path)
	if err != nil {
		t.Fatalf("store.Enqueue(%s): %v", path, err)
	}
	return item
}

// EnqueueWithStatus journals an item for path and moves it straight to
// status, recording msg as its error message.
func EnqueueWithStatus(t testing.TB, store *queue.Store, path string, status queue.Status, msg string) *queue.Item {
	t.Helper()
	item := Enqueue(t, store, path)
	if err := store.UpdateStatus(context.Background(), item.ID, status, msg); err != nil {
		t.Fatalf("store.UpdateStatus(%d, %s): %v", item.ID, status, err)
	}
	item.Status = status
	item.ErrorMessage = msg
	return item
}
