package daemonctl_test

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"

	"visionrecall/internal/daemon"
	"visionrecall/internal/daemonctl"
	"visionrecall/internal/kvstore"
	"visionrecall/internal/queue"
	"visionrecall/internal/testsupport"
)

func TestStopAndTerminateWithoutRuntime(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	_, err := daemonctl.StopAndTerminate(cfg, time.Second)
	if !errors.Is(err, daemonctl.ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
}

func TestStopAndTerminateSignalsRecordedProcess(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}

	proc := exec.Command("sleep", "30")
	if err := proc.Start(); err != nil {
		t.Skipf("sleep unavailable: %v", err)
	}
	exited := make(chan error, 1)
	go func() { exited <- proc.Wait() }()

	kv, err := kvstore.Open(cfg.RuntimePath())
	if err != nil {
		t.Fatalf("kvstore.Open: %v", err)
	}
	if err := kv.Save(daemon.RuntimeInfo{PID: proc.Process.Pid, StartedAt: time.Now(), SocketPath: cfg.SocketPath()}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	result, err := daemonctl.StopAndTerminate(cfg, 500*time.Millisecond)
	if err != nil {
		t.Fatalf("StopAndTerminate: %v", err)
	}
	if result.PID != proc.Process.Pid {
		t.Fatalf("expected pid %d, got %d", proc.Process.Pid, result.PID)
	}
	select {
	case <-exited:
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit")
	}
}

func TestBuildStatusSnapshotOffline(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.Enqueue(t, store, "/shots/a.png")
	testsupport.EnqueueWithStatus(t, store, "/shots/b.png", queue.StatusFailed, "ocr: exit 1")

	snap, err := daemonctl.BuildStatusSnapshot(context.Background(), cfg.SocketPath(), cfg)
	if err != nil {
		t.Fatalf("BuildStatusSnapshot: %v", err)
	}
	if snap.Status.Running {
		t.Fatal("expected daemon to be reported as not running")
	}
	if snap.QueueStats["pending"] != 1 || snap.QueueStats["failed"] != 1 {
		t.Fatalf("unexpected queue stats %+v", snap.QueueStats)
	}
	if len(snap.Checks) == 0 {
		t.Fatal("expected preflight checks")
	}
}

func TestBuildStatusSnapshotRequiresConfig(t *testing.T) {
	if _, err := daemonctl.BuildStatusSnapshot(context.Background(), "/nonexistent.sock", nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}
