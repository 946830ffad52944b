package queueaccess_test

import (
	"context"
	"errors"
	"testing"

	"visionrecall/internal/ipc"
	"visionrecall/internal/queue"
	"visionrecall/internal/queueaccess"
	"visionrecall/internal/testsupport"
)

func TestOpenWithFallbackUsesStoreWhenDaemonDown(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}

	session, err := queueaccess.OpenWithFallback(
		func() (*ipc.Client, error) { return nil, errors.New("no socket") },
		func() (*queue.Store, error) { return queue.Open(cfg) },
	)
	if err != nil {
		t.Fatalf("OpenWithFallback: %v", err)
	}
	defer session.Close()

	if session.Access.Live() {
		t.Fatal("expected offline access")
	}
}

func TestOpenWithFallbackRequiresStoreOpener(t *testing.T) {
	_, err := queueaccess.OpenWithFallback(func() (*ipc.Client, error) { return nil, errors.New("down") }, nil)
	if err == nil {
		t.Fatal("expected error without store opener")
	}
}

func TestStoreAccessOperations(t *testing.T) {
	ctx := context.Background()
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)
	access := queueaccess.NewStoreAccess(store)

	pending := testsupport.Enqueue(t, store, "/shots/a.png")
	testsupport.EnqueueWithStatus(t, store, "/shots/b.png", queue.StatusFailed, "vision: upstream 500")
	testsupport.EnqueueWithStatus(t, store, "/shots/c.png", queue.StatusCompleted, "")
	testsupport.Enqueue(t, store, "/shots/d.png")

	stats, err := access.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats["pending"] != 2 || stats["failed"] != 1 || stats["completed"] != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	items, err := access.List(ctx, []string{"failed"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 1 || items[0].FileName != "b.png" || items[0].ErrorMessage == "" {
		t.Fatalf("unexpected failed listing %+v", items)
	}

	removed, notFound, err := access.Remove(ctx, []string{"/shots/d.png", "999", "/shots/missing.png"})
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if removed != 1 || len(notFound) != 2 {
		t.Fatalf("Remove = %d, %v", removed, notFound)
	}

	retried, err := access.Retry(ctx, nil)
	if err != nil || retried != 1 {
		t.Fatalf("Retry = %d, %v", retried, err)
	}

	cleared, err := access.Clear(ctx, true)
	if err != nil || cleared != 1 {
		t.Fatalf("Clear(terminal) = %d, %v", cleared, err)
	}

	health, err := access.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Total != 2 || health.Pending != 2 {
		t.Fatalf("unexpected health %+v", health)
	}
	if item, _ := store.GetByID(ctx, pending.ID); item == nil {
		t.Fatal("pending item should survive terminal clear")
	}
}
