package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"visionrecall/internal/config"
	"visionrecall/internal/fingerprint"
	"visionrecall/internal/intake"
	"visionrecall/internal/kvstore"
	"visionrecall/internal/logging"
	"visionrecall/internal/notifications"
	"visionrecall/internal/queue"
	"visionrecall/internal/trash"
	"visionrecall/internal/workflow"
)

// Options carries optional collaborators.
type Options struct {
	Watcher      *intake.Watcher
	Fingerprints *fingerprint.Store
	Notifier     notifications.Service
	ConfigPath   string
}

// Daemon coordinates the background processing services and enforces single-instance execution.
type Daemon struct {
	cfg          *config.Config
	logger       *slog.Logger
	store        *queue.Store
	workflow     *workflow.Manager
	watcher      *intake.Watcher
	fingerprints *fingerprint.Store
	notifier     notifications.Service
	configPath   string

	lockPath string
	lock     *flock.Flock
	runtime  *kvstore.Store

	mu        sync.Mutex
	running   atomic.Bool
	cancel    context.CancelFunc
	startedAt time.Time
}

// Status represents daemon runtime information.
type Status struct {
	Running        bool
	PID            int
	StartedAt      time.Time
	Workflow       workflow.StatusSummary
	IntakeEnabled  bool
	IntakeDir      string
	IntakeInterval time.Duration
	QueueDBPath    string
	LockFilePath   string
	SocketPath     string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, wf *workflow.Manager, opts Options) (*Daemon, error) {
	if cfg == nil || store == nil || wf == nil {
		return nil, errors.New("daemon requires config, store, and workflow manager")
	}
	runtime, err := kvstore.Open(cfg.RuntimePath())
	if err != nil {
		return nil, fmt.Errorf("runtime store: %w", err)
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:          cfg,
		logger:       logging.NewComponentLogger(logger, "daemon"),
		store:        store,
		workflow:     wf,
		watcher:      opts.Watcher,
		fingerprints: opts.Fingerprints,
		notifier:     notifier,
		configPath:   opts.ConfigPath,
		lockPath:     lockPath,
		lock:         flock.New(lockPath),
		runtime:      runtime,
	}, nil
}

// Start acquires the daemon lock, then starts the workflow manager and the
// intake watcher.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("ensure lock directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another visionrecall daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.pruneFingerprints()
	d.purgeTrash(runCtx)
	if err := d.workflow.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start workflow: %w", err)
	}
	if d.watcher != nil {
		if err := d.watcher.Start(runCtx); err != nil {
			d.logger.Warn("intake watcher not started",
				logging.Error(err),
				logging.String(logging.FieldEventType, "intake_start_failed"),
				logging.String(logging.FieldImpact, "new screenshots must be queued manually"),
			)
		}
	}

	d.cancel = cancel
	d.startedAt = time.Now()
	d.running.Store(true)
	d.writeRuntime()
	d.logger.Info("visionrecall daemon started",
		logging.String(logging.FieldEventType, "daemon_start"),
		logging.String("lock", d.lockPath),
		logging.Bool("intake", d.watcher != nil),
	)
	return nil
}

// Stop halts intake and processing and releases the lock. An in-flight item
// returns to pending.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	d.watcher.Stop()
	d.workflow.Close()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.runtime.Remove(); err != nil {
		d.logger.Debug("remove runtime document", logging.Error(err))
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_unlock_failed"),
			logging.String(logging.FieldErrorHint, "remove "+d.lockPath+" if the next start reports a running instance"),
		)
	}
	d.running.Store(false)
	d.logger.Info("visionrecall daemon stopped", logging.String(logging.FieldEventType, "daemon_stop"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return d.store.Close()
}

// Running reports whether Start succeeded and Stop has not been called.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

func (d *Daemon) writeRuntime() {
	info := RuntimeInfo{
		PID:        os.Getpid(),
		StartedAt:  d.startedAt.UTC(),
		SocketPath: d.cfg.SocketPath(),
		ConfigPath: d.configPath,
	}
	if err := d.runtime.Save(info); err != nil {
		d.logger.Warn("failed to write runtime document",
			logging.Error(err),
			logging.String(logging.FieldEventType, "runtime_write_failed"),
			logging.String(logging.FieldImpact, "status may report the daemon as stopped"),
		)
	}
}

func (d *Daemon) purgeTrash(ctx context.Context) {
	days := d.cfg.Trash.RetentionDays
	if days <= 0 {
		return
	}
	trash.Purge(ctx, d.cfg.Paths.TrashDir, time.Duration(days)*24*time.Hour, time.Now(), d.logger)
}

func (d *Daemon) pruneFingerprints() {
	days := d.cfg.Fingerprints.RetentionDays
	if d.fingerprints == nil || days <= 0 {
		return
	}
	removed, err := d.fingerprints.Prune(time.Duration(days)*24*time.Hour, time.Now())
	if err != nil {
		d.logger.Warn("fingerprint prune failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "fingerprint_prune_failed"),
		)
		return
	}
	if removed > 0 {
		d.logger.Info("pruned stale fingerprints",
			logging.String(logging.FieldEventType, "fingerprint_prune"),
			logging.Int("removed", removed),
		)
	}
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	d.mu.Lock()
	startedAt := d.startedAt
	d.mu.Unlock()
	return Status{
		Running:        d.running.Load(),
		PID:            os.Getpid(),
		StartedAt:      startedAt,
		Workflow:       d.workflow.Status(ctx),
		IntakeEnabled:  d.watcher != nil,
		IntakeDir:      d.cfg.Paths.IntakeDir,
		IntakeInterval: d.watcher.Interval(),
		QueueDBPath:    d.cfg.QueueDBPath(),
		LockFilePath:   d.lockPath,
		SocketPath:     d.cfg.SocketPath(),
	}
}

// Enqueue validates and queues screenshots. Invalid paths are reported in
// the joined error while valid ones are still queued.
func (d *Daemon) Enqueue(ctx context.Context, paths []string) ([]*queue.Item, error) {
	valid := make([]string, 0, len(paths))
	var errs []error
	for _, p := range paths {
		abs, err := d.checkImage(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		valid = append(valid, abs)
	}
	items, err := d.workflow.EnqueueMany(ctx, valid)
	if err != nil {
		errs = append(errs, err)
	}
	if len(items) > 0 {
		d.logger.Info("screenshots queued",
			logging.String(logging.FieldEventType, "manual_enqueue"),
			logging.Int("count", len(items)),
		)
	}
	return items, errors.Join(errs...)
}

func (d *Daemon) checkImage(sourcePath string) (string, error) {
	trimmed := strings.TrimSpace(sourcePath)
	if trimmed == "" {
		return "", errors.New("source path is required")
	}
	absPath, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve source path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return "", fmt.Errorf("stat source file: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("source path %q is a directory", absPath)
	}
	if !d.cfg.IsImage(absPath) {
		return "", fmt.Errorf("unsupported file extension %q", filepath.Ext(absPath))
	}
	return absPath, nil
}

// ListQueue returns journal items filtered by optional statuses.
func (d *Daemon) ListQueue(ctx context.Context, statuses []queue.Status) ([]*queue.Item, error) {
	return d.store.List(ctx, statuses...)
}

// Pause suspends processing after the current item.
func (d *Daemon) Pause() { d.workflow.Pause() }

// Resume continues processing.
func (d *Daemon) Resume() { d.workflow.Resume() }

// StopQueue stops processing at the next checkpoint without shutting down.
func (d *Daemon) StopQueue() { d.workflow.Stop() }

// Toggle applies the single-button queue action.
func (d *Daemon) Toggle() string { return d.workflow.Toggle() }

// ClearQueue removes every queue item.
func (d *Daemon) ClearQueue(ctx context.Context) (int64, error) {
	return d.workflow.Clear(ctx)
}

// ClearTerminal removes completed, failed and skipped items from the journal.
func (d *Daemon) ClearTerminal(ctx context.Context) (int64, error) {
	return d.workflow.ClearTerminal(ctx)
}

// RemoveItem removes a single item by id or path.
func (d *Daemon) RemoveItem(ctx context.Context, ref string) (bool, error) {
	return d.workflow.Remove(ctx, ref)
}

// RetryFailed moves failed items (optionally a subset) back to pending and
// restarts processing.
func (d *Daemon) RetryFailed(ctx context.Context, ids []int64) (int64, error) {
	updated, err := d.store.RetryFailed(ctx, ids...)
	if err != nil || updated == 0 {
		return updated, err
	}
	items, err := d.store.List(ctx, queue.StatusPending)
	if err != nil {
		return updated, err
	}
	paths := make([]string, 0, len(items))
	for _, item := range items {
		paths = append(paths, item.SourcePath)
	}
	if _, err := d.workflow.EnqueueMany(ctx, paths); err != nil {
		return updated, err
	}
	return updated, nil
}

// QueueHealth returns aggregate queue diagnostics.
func (d *Daemon) QueueHealth(ctx context.Context) (queue.HealthSummary, error) {
	return d.store.Health(ctx)
}

// DatabaseHealth returns detailed database diagnostics.
func (d *Daemon) DatabaseHealth(ctx context.Context) (queue.DatabaseHealth, error) {
	return d.store.CheckHealth(ctx)
}

// TestNotification sends a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.Publish(ctx, notifications.EventTest, nil); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// LogPath returns the path to the daemon's JSON log file.
func (d *Daemon) LogPath() string {
	return filepath.Join(d.cfg.Paths.LogDir, logging.LogFileName)
}
