package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"visionrecall/internal/fingerprint"
	"visionrecall/internal/logging"
	"visionrecall/internal/queue"
	"visionrecall/internal/results"
	"visionrecall/internal/testsupport"
)

func TestCLIQueueCommandsViaDaemon(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	out, _, err := runCLI(t, []string{"queue", "pause"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue pause: %v", err)
	}
	requireContains(t, out, "Queue paused")

	shot := testsupport.WriteImage(t, filepath.Join(env.cfg.Paths.IntakeDir, "terminal.png"), 3)
	out, _, err = runCLI(t, []string{"process", shot}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	requireContains(t, out, "Queued 1 screenshots on the running daemon")

	out, _, err = runCLI(t, []string{"queue", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	requireContains(t, out, "terminal.png")
	requireContains(t, out, "Pending")

	out, _, err = runCLI(t, []string{"queue", "toggle"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue toggle: %v", err)
	}
	requireContains(t, out, "Queue resumed")

	waitFor(t, 5*time.Second, func() bool {
		items, err := env.store.List(ctx, queue.StatusCompleted)
		return err == nil && len(items) == 1
	})

	out, _, err = runCLI(t, []string{"queue", "status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue status: %v", err)
	}
	requireContains(t, out, "Completed")

	out, _, err = runCLI(t, []string{"queue", "remove", "999"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue remove: %v", err)
	}
	requireContains(t, out, "Not found: 999")

	out, _, err = runCLI(t, []string{"queue", "clear", "--finished"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue clear: %v", err)
	}
	requireContains(t, out, "Cleared 1 finished items")

	out, _, err = runCLI(t, []string{"status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Running (pid")
	requireContains(t, out, "System Checks")
}

func TestCLIQueueFallsBackToJournal(t *testing.T) {
	env := newCLIConfig(t)
	store := testsupport.MustOpenStore(t, env.cfg)
	testsupport.EnqueueWithStatus(t, store, "/shots/broken.png", queue.StatusFailed, "ocr: exit status 1")

	out, _, err := runCLI(t, []string{"queue", "list", "--status", "failed"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	requireContains(t, out, "broken.png")
	requireContains(t, out, "Failed")

	out, _, err = runCLI(t, []string{"queue", "retry"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue retry: %v", err)
	}
	requireContains(t, out, "Retrying 1 items")
	requireContains(t, out, "Daemon is not running")

	if _, _, err := runCLI(t, []string{"queue", "pause"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected queue pause to require a daemon")
	}
	if _, _, err := runCLI(t, []string{"queue", "retry", "abc"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected invalid id error")
	}
}

func TestCLIProcessLocalAndEntries(t *testing.T) {
	env := newCLIConfig(t)
	useFakeRuntime(t)

	dir := filepath.Join(testsupport.BaseDir(env.cfg), "batch")
	testsupport.WriteImage(t, filepath.Join(dir, "one.png"), 10)
	testsupport.WriteImage(t, filepath.Join(dir, "two.png"), 20)
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip me"), 0o644); err != nil {
		t.Fatalf("write text file: %v", err)
	}

	out, _, err := runCLI(t, []string{"process", "--local", dir}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("process --local: %v\n%s", err, out)
	}
	requireContains(t, out, "one.png")
	requireContains(t, out, "two.png")
	if strings.Count(out, "Completed") != 2 {
		t.Fatalf("expected two completed rows, got:\n%s", out)
	}

	entries, err := results.Open(env.cfg)
	if err != nil {
		t.Fatalf("results.Open: %v", err)
	}
	list, err := entries.List(context.Background(), results.ListOptions{})
	entries.Close()
	if err != nil || len(list) != 2 {
		t.Fatalf("expected 2 entries, got %d (%v)", len(list), err)
	}
	first := list[0]

	out, _, err = runCLI(t, []string{"entries", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("entries list: %v", err)
	}
	requireContains(t, out, shortID(first.ID))

	out, _, err = runCLI(t, []string{"entries", "show", first.ID}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("entries show: %v", err)
	}
	requireContains(t, out, first.Title)
	requireContains(t, out, "Release checklist")

	out, _, err = runCLI(t, []string{"entries", "tags", "set", first.ID, "release", "checklist"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("entries tags set: %v", err)
	}
	requireContains(t, out, "#release")

	out, _, err = runCLI(t, []string{"entries", "tags"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("entries tags: %v", err)
	}
	requireContains(t, out, "checklist")

	backup := filepath.Join(testsupport.BaseDir(env.cfg), "backup.json")
	out, _, err = runCLI(t, []string{"entries", "export", "-o", backup}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("entries export: %v", err)
	}
	requireContains(t, out, "Exported 2 entries")

	out, _, err = runCLI(t, []string{"entries", "delete", first.ID}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("entries delete: %v", err)
	}
	requireContains(t, out, "Deleted "+shortID(first.ID))

	if _, _, err := runCLI(t, []string{"entries", "show", first.ID}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected deleted entry to be gone")
	}

	out, _, err = runCLI(t, []string{"entries", "import", backup}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("entries import: %v", err)
	}
	requireContains(t, out, "Imported 2 entries")
}

func TestCLIProcessRejectsUnsupportedFile(t *testing.T) {
	env := newCLIConfig(t)
	path := filepath.Join(testsupport.BaseDir(env.cfg), "readme.txt")
	if err := os.WriteFile(path, []byte("text"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	_, _, err := runCLI(t, []string{"process", path}, env.socketPath, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "not a supported image") {
		t.Fatalf("expected unsupported image error, got %v", err)
	}
}

func TestCLIProcessLocalRefusedWhileDaemonRuns(t *testing.T) {
	env := setupCLITestEnv(t)
	useFakeRuntime(t)
	shot := testsupport.WriteImage(t, filepath.Join(testsupport.BaseDir(env.cfg), "x.png"), 4)
	_, _, err := runCLI(t, []string{"process", "--local", shot}, env.socketPath, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "already running") {
		t.Fatalf("expected lock error, got %v", err)
	}
}

func TestCLIFingerprintsCommands(t *testing.T) {
	env := newCLIConfig(t)

	store, err := fingerprint.Open(env.cfg.FingerprintsPath(), nil)
	if err != nil {
		t.Fatalf("fingerprint.Open: %v", err)
	}
	shot := testsupport.WriteImage(t, filepath.Join(env.cfg.Paths.IntakeDir, "a.png"), 5)
	if _, err := store.ShouldProcess(shot, true); err != nil {
		t.Fatalf("ShouldProcess: %v", err)
	}

	out, _, err := runCLI(t, []string{"fingerprints", "stats"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("fingerprints stats: %v", err)
	}
	requireContains(t, out, "File records: 1")
	requireContains(t, out, "Retention: forever")

	if _, _, err := runCLI(t, []string{"fingerprints", "prune"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected prune without retention to fail")
	}
	out, _, err = runCLI(t, []string{"fingerprints", "prune", "--days", "30"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("fingerprints prune: %v", err)
	}
	requireContains(t, out, "Pruned 0 fingerprint records")
}

func TestCLIModelsCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/models") {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{{"id": "gpt-4o"}, {"id": "gpt-4o-mini"}},
		})
	}))
	defer srv.Close()

	env := newCLIConfig(t)
	env.cfg.LLM.BaseURL = srv.URL + "/v1"
	env.cfg.LLM.VisionModel = "gpt-4o"
	writeTestConfig(t, env.configPath, env.cfg)

	out, _, err := runCLI(t, []string{"models"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("models: %v", err)
	}
	requireContains(t, out, "gpt-4o-mini")
	requireContains(t, out, "vision")
}

func TestCLILogsReadsFileWithoutDaemon(t *testing.T) {
	env := newCLIConfig(t)
	logPath := filepath.Join(env.cfg.Paths.LogDir, logging.LogFileName)
	lines := []string{
		`{"ts":"2026-01-01T00:00:00Z","level":"info","msg":"queue started","component":"workflow"}`,
		`{"ts":"2026-01-01T00:00:01Z","level":"warn","msg":"tag extraction retry","component":"stages","item_id":7}`,
		`{"ts":"2026-01-01T00:00:02Z","level":"error","msg":"vision failed","component":"stages","item_id":8}`,
	}
	if err := os.WriteFile(logPath, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	out, _, err := runCLI(t, []string{"logs", "--level", "warn"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if strings.Contains(out, "queue started") {
		t.Fatalf("info line should be filtered: %s", out)
	}
	requireContains(t, out, "tag extraction retry")

	out, _, err = runCLI(t, []string{"logs", "--item", "8"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("logs --item: %v", err)
	}
	if strings.Contains(out, "tag extraction retry") {
		t.Fatalf("item filter leaked other items: %s", out)
	}
	requireContains(t, out, "vision failed")
}

func TestCLITestNotifyWithoutTopic(t *testing.T) {
	env := newCLIConfig(t)
	out, _, err := runCLI(t, []string{"test-notify"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "ntfy topic not configured")
}

func TestCLIStopWithoutDaemon(t *testing.T) {
	env := newCLIConfig(t)
	out, _, err := runCLI(t, []string{"stop"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	requireContains(t, out, "Daemon is not running")
}

func TestCLITrashListAndPurge(t *testing.T) {
	env := newCLIConfig(t)

	out, _, err := runCLI(t, []string{"trash", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("trash list: %v", err)
	}
	requireContains(t, out, "Trash is empty")

	old := filepath.Join(env.cfg.Paths.TrashDir, "old.png")
	if err := os.WriteFile(old, make([]byte, 2048), 0o644); err != nil {
		t.Fatalf("write trash file: %v", err)
	}
	stale := time.Now().Add(-40 * 24 * time.Hour)
	if err := os.Chtimes(old, stale, stale); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	out, _, err = runCLI(t, []string{"trash", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("trash list: %v", err)
	}
	requireContains(t, out, "old.png")
	requireContains(t, out, "2.00 KiB")

	if _, _, err := runCLI(t, []string{"trash", "purge"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected purge without retention to fail")
	}
	out, _, err = runCLI(t, []string{"trash", "purge", "--days", "30"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("trash purge: %v", err)
	}
	requireContains(t, out, "Purged 1 trash entries")
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatalf("expected purged file to be gone: %v", err)
	}
}
