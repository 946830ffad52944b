package daemonrun_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"visionrecall/internal/daemonrun"
	"visionrecall/internal/notifications"
	"visionrecall/internal/testsupport"
)

type quietNotifier struct{}

func (quietNotifier) Publish(context.Context, notifications.Event, notifications.Payload) error {
	return nil
}

func TestBuildRequiresConfig(t *testing.T) {
	if _, err := daemonrun.Build(context.Background(), nil, nil, daemonrun.BuildOptions{}); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestBuildProcessesImages(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	rt, err := daemonrun.Build(context.Background(), cfg, nil, daemonrun.BuildOptions{
		OCREngine: testsupport.NewFakeOCR("Deploy pipeline green after retry"),
		Client:    testsupport.NewFakeChat(),
		Notifier:  quietNotifier{},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer rt.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := rt.Workflow.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	paths := []string{
		testsupport.WriteImage(t, filepath.Join(cfg.Paths.IntakeDir, "one.png"), 1),
		testsupport.WriteImage(t, filepath.Join(cfg.Paths.IntakeDir, "two.png"), 2),
	}
	if _, err := rt.Workflow.EnqueueMany(ctx, paths); err != nil {
		t.Fatalf("EnqueueMany: %v", err)
	}
	if err := rt.Workflow.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	count, err := rt.Entries.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 entries, got %d", count)
	}
	if stats := rt.Fingerprints.Stats(); stats.Hashes != 2 {
		t.Fatalf("expected 2 known hashes, got %+v", stats)
	}
}

func TestCloseTerminatesOCREngine(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ocr := testsupport.NewFakeOCR("text")
	rt, err := daemonrun.Build(context.Background(), cfg, nil, daemonrun.BuildOptions{
		OCREngine: ocr,
		Client:    testsupport.NewFakeChat(),
		Notifier:  quietNotifier{},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	rt.Close()
	if !ocr.Terminated() {
		t.Fatal("expected Close to terminate the OCR engine")
	}
}

func TestRuntimeNewDaemon(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Intake.Enabled = false
	rt, err := daemonrun.Build(context.Background(), cfg, nil, daemonrun.BuildOptions{
		OCREngine: testsupport.NewFakeOCR("text"),
		Client:    testsupport.NewFakeChat(),
		Notifier:  quietNotifier{},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer rt.Close()

	d, err := rt.NewDaemon("/etc/visionrecall/config.toml")
	if err != nil {
		t.Fatalf("NewDaemon: %v", err)
	}
	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop()

	status := d.Status(ctx)
	if !status.Running || status.IntakeEnabled {
		t.Fatalf("unexpected status %+v", status)
	}
}
