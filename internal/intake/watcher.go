package intake

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"visionrecall/internal/config"
	"visionrecall/internal/fingerprint"
	"visionrecall/internal/logging"
	"visionrecall/internal/queue"
)

// defaultSettle is how long a file must sit untouched before it is picked up.
const defaultSettle = 2 * time.Second

// Enqueuer accepts discovered screenshots.
type Enqueuer interface {
	EnqueueMany(ctx context.Context, paths []string) ([]*queue.Item, error)
}

// FailureJournal reports screenshots whose last processing attempt failed,
// with the time of that failure.
type FailureJournal interface {
	FailedPaths(ctx context.Context) (map[string]time.Time, error)
}

// Watcher polls the intake directory.
type Watcher struct {
	cfg          *config.Config
	fingerprints *fingerprint.Store
	enqueuer     Enqueuer
	failures     FailureJournal
	logger       *slog.Logger

	dir      string
	interval time.Duration
	settle   time.Duration
	now      func() time.Time
	isPaused func() bool

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewWatcher returns nil when intake polling is disabled. A file whose last
// attempt failed is not picked up again until it changes or the failed item
// is retried; failures may be nil.
func NewWatcher(cfg *config.Config, fingerprints *fingerprint.Store, enqueuer Enqueuer, failures FailureJournal, logger *slog.Logger, isPaused func() bool) *Watcher {
	if cfg == nil || enqueuer == nil || !cfg.Intake.Enabled {
		return nil
	}
	interval := time.Duration(cfg.Intake.PollIntervalSeconds) * time.Second
	if floor := time.Duration(config.MinPollInterval()) * time.Second; interval < floor {
		interval = floor
	}
	return &Watcher{
		cfg:          cfg,
		fingerprints: fingerprints,
		enqueuer:     enqueuer,
		failures:     failures,
		logger:       logging.NewComponentLogger(logger, "intake"),
		dir:          cfg.Paths.IntakeDir,
		interval:     interval,
		settle:       defaultSettle,
		now:          time.Now,
		isPaused:     isPaused,
	}
}

// Interval reports the poll period.
func (w *Watcher) Interval() time.Duration {
	if w == nil {
		return 0
	}
	return w.interval
}

// Start polls once immediately and then on every tick until Stop or ctx ends.
func (w *Watcher) Start(ctx context.Context) error {
	if w == nil {
		return errors.New("intake watcher unavailable")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return errors.New("intake watcher already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true

	w.wg.Add(1)
	go w.loop(runCtx)
	w.logger.Info("intake watcher started",
		logging.String("dir", w.dir),
		logging.Duration("interval", w.interval),
	)
	return nil
}

// Stop ends polling and waits for an in-progress scan.
func (w *Watcher) Stop() {
	if w == nil {
		return
	}
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	cancel := w.cancel
	w.running = false
	w.cancel = nil
	w.mu.Unlock()

	cancel()
	w.wg.Wait()
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()

	w.tick(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *Watcher) tick(ctx context.Context) {
	if w.isPaused != nil && w.isPaused() {
		return
	}
	if _, err := w.Poll(ctx); err != nil && ctx.Err() == nil {
		w.logger.Warn("intake scan failed; will retry",
			logging.Error(err),
			logging.String(logging.FieldEventType, "intake_scan_failed"),
			logging.String(logging.FieldErrorHint, "check that the intake directory exists and is readable"),
		)
	}
}

// Poll scans once and enqueues what it finds. It returns the number of
// items handed to the queue.
func (w *Watcher) Poll(ctx context.Context) (int, error) {
	paths, err := w.Scan(ctx)
	if err != nil {
		return 0, err
	}
	if len(paths) == 0 {
		return 0, nil
	}
	items, err := w.enqueuer.EnqueueMany(ctx, paths)
	if len(items) > 0 {
		w.logger.Info("intake screenshots queued",
			logging.String(logging.FieldEventType, "intake_enqueued"),
			logging.Int("count", len(items)),
		)
	}
	return len(items), err
}

type candidate struct {
	path  string
	mtime time.Time
}

// Scan walks the intake directory and returns candidate images, oldest first.
func (w *Watcher) Scan(ctx context.Context) ([]string, error) {
	if strings.TrimSpace(w.dir) == "" {
		return nil, errors.New("intake directory not configured")
	}
	cutoff := w.now().Add(-w.settle)
	var failed map[string]time.Time
	if w.failures != nil {
		var err error
		if failed, err = w.failures.FailedPaths(ctx); err != nil {
			return nil, fmt.Errorf("read failed items: %w", err)
		}
	}
	var found []candidate
	err := filepath.WalkDir(w.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == w.dir {
				return err
			}
			w.logger.Debug("skipping unreadable intake entry", logging.String("path", path), logging.Error(err))
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		name := d.Name()
		if strings.HasPrefix(name, ".") && path != w.dir {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() || !w.cfg.IsImage(name) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		if info.ModTime().After(cutoff) {
			return nil
		}
		if w.fingerprints != nil && w.fingerprints.Known(path, info.Size(), info.ModTime().UnixMilli()) {
			return nil
		}
		if failedAt, ok := failed[path]; ok && !info.ModTime().After(failedAt) {
			return nil
		}
		found = append(found, candidate{path: path, mtime: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(found, func(i, j int) bool {
		if found[i].mtime.Equal(found[j].mtime) {
			return found[i].path < found[j].path
		}
		return found[i].mtime.Before(found[j].mtime)
	})
	paths := make([]string, len(found))
	for i, c := range found {
		paths[i] = c.path
	}
	return paths, nil
}
