package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"path/filepath"
	"syscall"

	"visionrecall/internal/archive"
	"visionrecall/internal/config"
	"visionrecall/internal/daemon"
	"visionrecall/internal/filestore"
	"visionrecall/internal/fingerprint"
	"visionrecall/internal/intake"
	"visionrecall/internal/ipc"
	"visionrecall/internal/logging"
	"visionrecall/internal/notifications"
	"visionrecall/internal/pipeline"
	"visionrecall/internal/preflight"
	"visionrecall/internal/progress"
	"visionrecall/internal/queue"
	"visionrecall/internal/results"
	"visionrecall/internal/services/llm"
	"visionrecall/internal/services/tesseract"
	"visionrecall/internal/stages"
	"visionrecall/internal/workflow"
)

// BuildOptions overrides collaborators normally constructed from config.
type BuildOptions struct {
	OCREngine stages.OCREngine
	Client    stages.ChatClient
	Notifier  notifications.Service
}

// Runtime bundles the stores and services backing one visionrecall process.
type Runtime struct {
	Config       *config.Config
	Logger       *slog.Logger
	Queue        *queue.Store
	Entries      *results.Store
	Fingerprints *fingerprint.Store
	Files        *filestore.Store
	OCR          stages.OCREngine
	State        *queue.State
	Processor    *pipeline.Processor
	Library      *pipeline.Library
	Workflow     *workflow.Manager
	Notifier     notifications.Service
}

// Build opens every store and wires the processing pipeline for cfg.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts BuildOptions) (*Runtime, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	rt := &Runtime{Config: cfg, Logger: logger}
	ok := false
	defer func() {
		if !ok {
			rt.Close()
		}
	}()

	var err error
	if rt.Queue, err = queue.Open(cfg); err != nil {
		return nil, fmt.Errorf("open queue store: %w", err)
	}
	if rt.Entries, err = results.Open(cfg); err != nil {
		return nil, fmt.Errorf("open entries store: %w", err)
	}
	if rt.Fingerprints, err = fingerprint.Open(cfg.FingerprintsPath(), logger); err != nil {
		return nil, fmt.Errorf("open fingerprint store: %w", err)
	}
	rt.Files = filestore.New(cfg.Paths.TrashDir)

	ocr := opts.OCREngine
	if ocr == nil {
		engine, err := tesseract.New(cfg.TesseractBinary(), cfg.OCR.Language)
		if err != nil {
			return nil, fmt.Errorf("init tesseract: %w", err)
		}
		ocr = engine
	}
	rt.OCR = ocr
	client := opts.Client
	if client == nil {
		settings := cfg.GetLLM()
		client = llm.NewClient(llm.Config{
			Provider:       settings.Provider,
			APIKey:         settings.APIKey,
			BaseURL:        settings.BaseURL,
			Referer:        settings.Referer,
			Title:          settings.Title,
			TimeoutSeconds: settings.TimeoutSeconds,
		})
	}

	archiver, err := archive.New(ctx, cfg.Archive, logger)
	if err != nil {
		return nil, fmt.Errorf("init archive: %w", err)
	}

	rt.State = queue.NewState()
	rt.Processor, err = pipeline.New(cfg, pipeline.Dependencies{
		Files:        rt.Files,
		Fingerprints: rt.Fingerprints,
		Entries:      rt.Entries,
		Archiver:     archiver,
		OCREngine:    ocr,
		Client:       client,
		Reporter:     progress.NewReporter(rt.State),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("init pipeline: %w", err)
	}
	rt.Library = pipeline.NewLibrary(cfg, rt.Files, rt.Fingerprints, rt.Entries, logger)

	rt.Notifier = opts.Notifier
	if rt.Notifier == nil {
		rt.Notifier = notifications.NewService(cfg)
	}
	rt.Workflow = workflow.NewManagerWithNotifier(cfg, rt.Queue, rt.State, rt.Processor, logger, rt.Notifier)

	ok = true
	return rt, nil
}

// Close stops the workflow, terminates the OCR engine and releases the
// database handles. It is safe on a partially built runtime.
func (r *Runtime) Close() {
	if r == nil {
		return
	}
	if r.Workflow != nil {
		r.Workflow.Close()
	}
	if r.OCR != nil {
		if err := r.OCR.Terminate(); err != nil {
			r.Logger.Warn("failed to terminate OCR engine", logging.Error(err))
		}
	}
	if r.Entries != nil {
		_ = r.Entries.Close()
	}
	if r.Queue != nil {
		_ = r.Queue.Close()
	}
}

// NewDaemon wraps the runtime in a daemon with folder intake enabled per config.
func (r *Runtime) NewDaemon(configPath string) (*daemon.Daemon, error) {
	watcher := intake.NewWatcher(r.Config, r.Fingerprints, r.Workflow, r.Queue, r.Logger, r.State.IsPaused)
	return daemon.New(r.Config, r.Queue, r.Logger, r.Workflow, daemon.Options{
		Watcher:      watcher,
		Fingerprints: r.Fingerprints,
		Notifier:     r.Notifier,
		ConfigPath:   configPath,
	})
}

// Options configures daemon process runtime behavior.
type Options struct {
	ConfigPath string
	LogLevel   string
}

// Run starts the visionrecall daemon and blocks until SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return errors.New("config is required")
	}
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logPath := filepath.Join(cfg.Paths.LogDir, logging.LogFileName)
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "visionrecall*.log", Exclude: []string{logPath}},
	)

	logPreflight(signalCtx, logger, cfg)

	rt, err := Build(signalCtx, cfg, logger, BuildOptions{})
	if err != nil {
		logger.Error("build runtime", logging.Error(err))
		return err
	}
	defer rt.Close()

	d, err := rt.NewDaemon(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check for another running instance and queue database access"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("visionrecall daemon shutting down")
	return nil
}

func logPreflight(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	for _, result := range preflight.RunAll(ctx, cfg) {
		if result.Passed {
			logger.Debug("preflight check passed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail),
			)
			continue
		}
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldImpact, "items may fail until the check passes"),
		)
	}
}
