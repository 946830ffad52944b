package daemon_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"visionrecall/internal/config"
	"visionrecall/internal/daemon"
	"visionrecall/internal/notifications"
	"visionrecall/internal/queue"
	"visionrecall/internal/testsupport"
	"visionrecall/internal/workflow"
)

type nullNotifier struct{ events []notifications.Event }

func (n *nullNotifier) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	n.events = append(n.events, event)
	return nil
}

func newDaemon(t *testing.T, cfg *config.Config) (*daemon.Daemon, *testsupport.Harness) {
	t.Helper()
	h := testsupport.NewHarness(t, cfg)
	store := testsupport.MustOpenStore(t, cfg)
	mgr := workflow.NewManagerWithNotifier(cfg, store, h.State, h.Processor, nil, &nullNotifier{})
	d, err := daemon.New(cfg, store, nil, mgr, daemon.Options{Fingerprints: h.Fingerprints, Notifier: &nullNotifier{}})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(d.Stop)
	return d, h
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, _ := newDaemon(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	status := d.Status(ctx)
	if !status.Running || status.LockFilePath != cfg.LockPath() {
		t.Fatalf("unexpected status %+v", status)
	}
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	info, ok, err := daemon.ReadRuntime(cfg)
	if err != nil || !ok {
		t.Fatalf("ReadRuntime = %v, %v", ok, err)
	}
	if info.PID != os.Getpid() || !info.Alive() || info.SocketPath != cfg.SocketPath() {
		t.Fatalf("unexpected runtime info %+v", info)
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
	if _, ok, _ := daemon.ReadRuntime(cfg); ok {
		t.Fatal("runtime document should be removed on stop")
	}
}

func TestDaemonLockPreventsSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first, _ := newDaemon(t, cfg)
	second, _ := newDaemon(t, cfg)

	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if err := second.Start(context.Background()); err == nil {
		t.Fatal("expected lock conflict")
	}
	first.Stop()
	if err := second.Start(context.Background()); err != nil {
		t.Fatalf("second Start after release: %v", err)
	}
}

func TestDaemonEnqueueProcessesImages(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, h := newDaemon(t, cfg)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	img := testsupport.WriteImage(t, filepath.Join(cfg.Paths.IntakeDir, "shot.png"), 7)
	text := filepath.Join(cfg.Paths.IntakeDir, "readme.txt")
	if err := os.WriteFile(text, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	items, err := d.Enqueue(context.Background(), []string{img, text, filepath.Join(cfg.Paths.IntakeDir, "missing.png")})
	if err == nil {
		t.Fatal("expected invalid paths to be reported")
	}
	if len(items) != 1 {
		t.Fatalf("expected one queued item, got %d", len(items))
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		stored, err := d.ListQueue(context.Background(), []queue.Status{queue.StatusCompleted})
		if err != nil {
			t.Fatalf("ListQueue: %v", err)
		}
		if len(stored) == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("screenshot was not processed")
		}
		time.Sleep(20 * time.Millisecond)
	}
	if n, _ := h.Entries.Count(context.Background()); n != 1 {
		t.Fatalf("expected one result entry, got %d", n)
	}
	health, err := d.QueueHealth(context.Background())
	if err != nil || health.Completed != 1 {
		t.Fatalf("QueueHealth = %+v, %v", health, err)
	}
}

func TestDaemonTestNotification(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, _ := newDaemon(t, cfg)
	sent, msg, err := d.TestNotification(context.Background())
	if err != nil || sent || msg != "ntfy topic not configured" {
		t.Fatalf("TestNotification = %v, %q, %v", sent, msg, err)
	}
}

func TestDaemonStartPurgesExpiredTrash(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Trash.RetentionDays = 7
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	old := filepath.Join(cfg.Paths.TrashDir, "old.png")
	fresh := filepath.Join(cfg.Paths.TrashDir, "fresh.png")
	for _, path := range []string{old, fresh} {
		if err := os.WriteFile(path, []byte("png"), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	stale := time.Now().Add(-10 * 24 * time.Hour)
	if err := os.Chtimes(old, stale, stale); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	d, _ := newDaemon(t, cfg)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatalf("expired trash entry should be purged, stat err %v", err)
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Fatalf("fresh trash entry should remain: %v", err)
	}
}
