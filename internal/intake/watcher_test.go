package intake

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"visionrecall/internal/fingerprint"
	"visionrecall/internal/queue"
	"visionrecall/internal/testsupport"
)

type recordingEnqueuer struct {
	mu     sync.Mutex
	calls  [][]string
	notify chan struct{}
}

func (r *recordingEnqueuer) EnqueueMany(_ context.Context, paths []string) ([]*queue.Item, error) {
	r.mu.Lock()
	r.calls = append(r.calls, append([]string(nil), paths...))
	r.mu.Unlock()
	items := make([]*queue.Item, len(paths))
	for i, p := range paths {
		items[i] = &queue.Item{ID: int64(i + 1), SourcePath: p, Status: queue.StatusPending}
	}
	if r.notify != nil {
		select {
		case r.notify <- struct{}{}:
		default:
		}
	}
	return items, nil
}

func setMTime(t *testing.T, path string, at time.Time) {
	t.Helper()
	if err := os.Chtimes(path, at, at); err != nil {
		t.Fatalf("chtimes %s: %v", path, err)
	}
}

func newTestWatcher(t *testing.T, enq Enqueuer) (*Watcher, *fingerprint.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	fp, err := fingerprint.Open(cfg.FingerprintsPath(), nil)
	if err != nil {
		t.Fatalf("fingerprint.Open: %v", err)
	}
	w := NewWatcher(cfg, fp, enq, nil, nil, nil)
	if w == nil {
		t.Fatal("expected watcher when intake is enabled")
	}
	return w, fp
}

func TestScanOrdersByAgeAndFilters(t *testing.T) {
	w, _ := newTestWatcher(t, &recordingEnqueuer{})
	base := time.Now().Add(-time.Hour)

	newer := testsupport.WriteImage(t, filepath.Join(w.dir, "b.png"), 2)
	older := testsupport.WriteImage(t, filepath.Join(w.dir, "nested", "a.jpg"), 1)
	hidden := testsupport.WriteImage(t, filepath.Join(w.dir, ".hidden.png"), 3)
	hiddenDir := testsupport.WriteImage(t, filepath.Join(w.dir, ".sync", "c.png"), 4)
	fresh := testsupport.WriteImage(t, filepath.Join(w.dir, "fresh.png"), 5)
	text := filepath.Join(w.dir, "notes.txt")
	if err := os.WriteFile(text, []byte("not an image"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	setMTime(t, older, base)
	setMTime(t, newer, base.Add(time.Minute))
	setMTime(t, hidden, base)
	setMTime(t, hiddenDir, base)
	setMTime(t, text, base)
	_ = fresh

	got, err := w.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(got) != 2 || got[0] != older || got[1] != newer {
		t.Fatalf("Scan = %v, want [%s %s]", got, older, newer)
	}
}

func TestScanSkipsKnownFingerprints(t *testing.T) {
	w, fp := newTestWatcher(t, &recordingEnqueuer{})
	old := time.Now().Add(-time.Hour)
	seen := testsupport.WriteImage(t, filepath.Join(w.dir, "seen.png"), 1)
	unseen := testsupport.WriteImage(t, filepath.Join(w.dir, "unseen.png"), 2)
	setMTime(t, seen, old)
	setMTime(t, unseen, old)

	if ok, err := fp.ShouldProcess(seen, true); err != nil || !ok {
		t.Fatalf("ShouldProcess = %v, %v", ok, err)
	}

	got, err := w.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(got) != 1 || got[0] != unseen {
		t.Fatalf("Scan = %v, want only %s", got, unseen)
	}

	// A modified file is no longer known.
	setMTime(t, seen, old.Add(time.Second))
	got, err = w.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected modified file to be rescanned, got %v", got)
	}
}

func TestScanSkipsUnchangedFailedFiles(t *testing.T) {
	w, _ := newTestWatcher(t, &recordingEnqueuer{})
	store := testsupport.MustOpenStore(t, w.cfg)
	w.failures = store
	ctx := context.Background()

	old := time.Now().Add(-time.Hour)
	broken := testsupport.WriteImage(t, filepath.Join(w.dir, "broken.png"), 1)
	setMTime(t, broken, old)
	failed := testsupport.EnqueueWithStatus(t, store, broken, queue.StatusFailed, "ocr: exit 1")

	got, err := w.Scan(ctx)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("failed file was queued again: %v", got)
	}

	// An explicit retry hands the file back to intake.
	if _, err := store.RetryFailed(ctx, failed.ID); err != nil {
		t.Fatalf("RetryFailed: %v", err)
	}
	if got, err = w.Scan(ctx); err != nil || len(got) != 1 {
		t.Fatalf("Scan after retry = %v, %v", got, err)
	}

	// So does replacing the file after the failure.
	if err := store.UpdateStatus(ctx, failed.ID, queue.StatusFailed, "ocr: exit 1"); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	setMTime(t, broken, time.Now().Add(time.Minute))
	w.now = func() time.Time { return time.Now().Add(time.Hour) }
	if got, err = w.Scan(ctx); err != nil || len(got) != 1 || got[0] != broken {
		t.Fatalf("Scan after change = %v, %v", got, err)
	}
}

func TestPollEnqueuesCandidates(t *testing.T) {
	enq := &recordingEnqueuer{}
	w, _ := newTestWatcher(t, enq)
	w.now = func() time.Time { return time.Now().Add(time.Minute) }
	testsupport.WriteImage(t, filepath.Join(w.dir, "one.png"), 1)

	n, err := w.Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if n != 1 || len(enq.calls) != 1 {
		t.Fatalf("Poll = %d with calls %v", n, enq.calls)
	}

	empty := &recordingEnqueuer{}
	w2, _ := newTestWatcher(t, empty)
	if n, err := w2.Poll(context.Background()); err != nil || n != 0 || len(empty.calls) != 0 {
		t.Fatalf("empty Poll = %d, %v, calls %v", n, err, empty.calls)
	}
}

func TestWatcherStartPollsImmediately(t *testing.T) {
	enq := &recordingEnqueuer{notify: make(chan struct{}, 1)}
	w, _ := newTestWatcher(t, enq)
	w.now = func() time.Time { return time.Now().Add(time.Minute) }
	testsupport.WriteImage(t, filepath.Join(w.dir, "one.png"), 1)

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()
	if err := w.Start(context.Background()); err == nil {
		t.Fatal("expected second Start to fail")
	}
	select {
	case <-enq.notify:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not poll on start")
	}
}

func TestWatcherSkipsWhilePaused(t *testing.T) {
	enq := &recordingEnqueuer{}
	w, _ := newTestWatcher(t, enq)
	w.now = func() time.Time { return time.Now().Add(time.Minute) }
	w.isPaused = func() bool { return true }
	testsupport.WriteImage(t, filepath.Join(w.dir, "one.png"), 1)

	w.tick(context.Background())
	if len(enq.calls) != 0 {
		t.Fatalf("paused watcher enqueued %v", enq.calls)
	}
}

func TestNewWatcherHonoursConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Intake.Enabled = false
	if w := NewWatcher(cfg, nil, &recordingEnqueuer{}, nil, nil, nil); w != nil {
		t.Fatal("expected nil watcher when intake disabled")
	}

	cfg.Intake.Enabled = true
	cfg.Intake.PollIntervalSeconds = 1
	w := NewWatcher(cfg, nil, &recordingEnqueuer{}, nil, nil, nil)
	if w.Interval() != 30*time.Second {
		t.Fatalf("interval = %s, want 30s floor", w.Interval())
	}
}
