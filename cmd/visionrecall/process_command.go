package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"visionrecall/internal/config"
	"visionrecall/internal/daemonrun"
	"visionrecall/internal/ipc"
	"visionrecall/internal/logging"
	"visionrecall/internal/queue"
)

// runtimeOptions is swapped in tests to replace tesseract and the LLM client.
var runtimeOptions daemonrun.BuildOptions

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var local bool

	cmd := &cobra.Command{
		Use:   "process <file|dir>...",
		Short: "Process screenshots now",
		Long: "Queue screenshots on the running daemon, or process them in the foreground\n" +
			"when no daemon answers (or --local is set). Directories contribute their\n" +
			"top-level images.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			paths, err := collectImages(cfg, args)
			if err != nil {
				return err
			}
			if len(paths) == 0 {
				return errors.New("no images found in the given paths")
			}

			if !local {
				if client, dialErr := ipc.Dial(ctx.socketPath()); dialErr == nil {
					defer client.Close()
					return enqueueRemote(cmd, ctx, client, paths)
				}
			}
			return processLocal(cmd, ctx, cfg, paths)
		},
	}
	cmd.Flags().BoolVar(&local, "local", false, "Process in this process even if a daemon is running")
	return cmd
}

func collectImages(cfg *config.Config, args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		path, err := config.ExpandPath(arg)
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("inspect %q: %w", arg, err)
		}
		if !info.IsDir() {
			if !cfg.IsImage(path) {
				return nil, fmt.Errorf("%s is not a supported image", arg)
			}
			paths = append(paths, path)
			continue
		}
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, fmt.Errorf("read %q: %w", arg, err)
		}
		var found []string
		for _, entry := range entries {
			if entry.IsDir() || !cfg.IsImage(entry.Name()) {
				continue
			}
			found = append(found, filepath.Join(path, entry.Name()))
		}
		sort.Strings(found)
		paths = append(paths, found...)
	}
	return paths, nil
}

func enqueueRemote(cmd *cobra.Command, ctx *commandContext, client *ipc.Client, paths []string) error {
	resp, err := client.Enqueue(paths)
	if err != nil {
		return err
	}
	if ctx.JSONMode() {
		return writeJSON(cmd, resp)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Queued %d screenshots on the running daemon\n", len(resp.Items))
	for _, msg := range resp.Errors {
		fmt.Fprintf(out, "  rejected: %s\n", msg)
	}
	if len(resp.Items) == 0 && len(resp.Errors) > 0 {
		return errors.New("no screenshots were queued")
	}
	return nil
}

func processLocal(cmd *cobra.Command, ctx *commandContext, cfg *config.Config, paths []string) error {
	lock := flock.New(cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire daemon lock: %w", err)
	}
	if !locked {
		return errors.New("another visionrecall daemon instance is already running; use `visionrecall process` without --local")
	}
	defer func() { _ = lock.Unlock() }()

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	runCtx := cmd.Context()
	if runCtx == nil {
		runCtx = context.Background()
	}
	rt, err := daemonrun.Build(runCtx, cfg, logger, runtimeOptions)
	if err != nil {
		return err
	}
	defer rt.Close()

	out := cmd.OutOrStdout()
	if !ctx.JSONMode() && shouldColorize(out) {
		cancel := rt.State.Subscribe(progressPrinter(out))
		defer cancel()
	}

	if err := rt.Workflow.Start(runCtx); err != nil {
		return err
	}
	items, enqueueErr := rt.Workflow.EnqueueMany(runCtx, paths)
	if err := rt.Workflow.Wait(runCtx); err != nil {
		return err
	}

	final := make([]ipc.QueueItem, 0, len(items))
	failed := 0
	for _, item := range items {
		current, err := rt.Queue.GetByID(runCtx, item.ID)
		if err != nil {
			return err
		}
		if current == nil {
			continue
		}
		if current.Status == queue.StatusFailed {
			failed++
		}
		final = append(final, ipc.FromQueueItem(current))
	}

	if ctx.JSONMode() {
		if err := writeJSON(cmd, final); err != nil {
			return err
		}
	} else if len(final) > 0 {
		rows := make([][]string, 0, len(final))
		for _, item := range final {
			rows = append(rows, []string{strconv.FormatInt(item.ID, 10), item.FileName, titleCase(item.Status), item.ErrorMessage})
		}
		fmt.Fprint(out, renderTableWidth(
			[]string{"ID", "File", "Status", "Error"},
			rows,
			[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
			terminalWidth(out),
		))
	}

	if enqueueErr != nil {
		return enqueueErr
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d screenshots failed", failed, len(final))
	}
	return nil
}

// progressPrinter rewrites a single status line as the current item advances.
func progressPrinter(out io.Writer) func(queue.ProcessingStatus) {
	var mu sync.Mutex
	var last string
	return func(status queue.ProcessingStatus) {
		if !status.IsProcessing || status.CurrentItem == "" {
			return
		}
		line := fmt.Sprintf("%s %3d%% %s", status.CurrentItem, status.Progress, status.Message)
		mu.Lock()
		defer mu.Unlock()
		if line == last {
			return
		}
		last = line
		fmt.Fprintf(out, "\r\x1b[2K%s", line)
		if status.Progress >= 100 {
			fmt.Fprintln(out)
		}
	}
}
