package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"visionrecall/internal/daemonctl"
	"visionrecall/internal/daemonrun"
	"visionrecall/internal/queue"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	var detach bool
	var startLogLevel string
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Run the intake watcher and processing queue",
		Long: "Run the daemon in the foreground until interrupted. With --detach a background\n" +
			"daemon is launched instead and the command returns once its socket answers.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !detach {
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
					ConfigPath: ctx.configPath,
					LogLevel:   startLogLevel,
				})
			}

			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			result, err := daemonctl.EnsureStarted(
				ctx.socketPath(),
				exe,
				daemonLaunchOptions(ctx, startLogLevel),
				10*time.Second,
			)
			if err != nil {
				return err
			}
			switch result.State {
			case daemonctl.StartStateStarted:
				fmt.Fprintf(stdout, "Daemon started (pid %d)\n", result.PID)
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintf(stdout, "Daemon already running (pid %d)\n", result.PID)
			}
			return nil
		},
	}
	startCmd.Flags().BoolVarP(&detach, "detach", "d", false, "Launch the daemon in the background")
	startCmd.Flags().StringVar(&startLogLevel, "log-level", "", "Override logging.level for this run")

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Terminate a running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(ctx.configValue(), 10*time.Second)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.ForcedKill {
				fmt.Fprintf(stdout, "Daemon did not exit in time; killed pid %d\n", result.PID)
				return nil
			}
			fmt.Fprintf(stdout, "Daemon stopped (pid %d)\n", result.PID)
			return nil
		},
	}

	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart a background daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			result, err := daemonctl.Restart(ctx.configValue(), exe, daemonLaunchOptions(ctx, ""), 10*time.Second, 10*time.Second)
			if err != nil {
				return err
			}
			if result.WasRunning {
				fmt.Fprintln(stdout, "Daemon stopped")
			}
			fmt.Fprintf(stdout, "Daemon restarted (pid %d)\n", result.Start.PID)
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, dependency and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := daemonctl.BuildStatusSnapshot(cmd.Context(), ctx.socketPath(), ctx.configValue())
			if err != nil {
				return err
			}
			if ctx.JSONMode() {
				return writeJSON(cmd, snap)
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)
			status := snap.Status

			for _, line := range renderSectionHeader("Daemon", colorize) {
				fmt.Fprintln(stdout, line)
			}
			if status.Running {
				fmt.Fprintln(stdout, renderStatusLine("VisionRecall", statusOK, fmt.Sprintf("Running (pid %d)", status.PID), colorize))
				fmt.Fprintln(stdout, renderStatusLine("Queue", queueStateKind(status.IsPaused, status.IsStopped), queueStateLabel(status.IsProcessing, status.IsPaused, status.IsStopped), colorize))
				if status.CurrentItem != "" {
					fmt.Fprintln(stdout, renderStatusLine("Current", statusInfo, fmt.Sprintf("%s %d%% %s", status.CurrentItem, status.Progress, status.Message), colorize))
				}
				if status.IntakeEnabled {
					fmt.Fprintln(stdout, renderStatusLine("Intake", statusOK, fmt.Sprintf("%s every %s", status.IntakeDir, status.IntakeInterval), colorize))
				} else {
					fmt.Fprintln(stdout, renderStatusLine("Intake", statusInfo, "disabled", colorize))
				}
				if status.LastError != "" {
					fmt.Fprintln(stdout, renderStatusLine("Last error", statusWarn, status.LastError, colorize))
				}
			} else {
				fmt.Fprintln(stdout, renderStatusLine("VisionRecall", statusError, "Not running", colorize))
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("System Checks", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, line := range checkLines(snap.Checks, colorize) {
				fmt.Fprintln(stdout, line)
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Queue Status", colorize) {
				fmt.Fprintln(stdout, line)
			}
			rows := buildQueueStatusRows(snap.QueueStats)
			if len(rows) == 0 {
				fmt.Fprintln(stdout, "Queue is empty")
				return nil
			}
			fmt.Fprint(stdout, renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
			return nil
		},
	}

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd}
}

func newDaemonRunCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	cmd := &cobra.Command{
		Use:    "daemon",
		Short:  "Run the visionrecall daemon (internal)",
		Hidden: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				ConfigPath: ctx.configPath,
				LogLevel:   logLevel,
			})
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level for this run")
	return cmd
}

// buildQueueStatusRows orders counts by lifecycle and drops empty statuses.
func buildQueueStatusRows(stats map[string]int) [][]string {
	known := make(map[string]bool)
	var rows [][]string
	for _, status := range queue.AllStatuses() {
		key := string(status)
		known[key] = true
		if count := stats[key]; count > 0 {
			rows = append(rows, []string{titleCase(key), fmt.Sprintf("%d", count)})
		}
	}
	var extra []string
	for key, count := range stats {
		if !known[key] && count > 0 {
			extra = append(extra, key)
		}
	}
	sort.Strings(extra)
	for _, key := range extra {
		rows = append(rows, []string{titleCase(key), fmt.Sprintf("%d", stats[key])})
	}
	return rows
}

func titleCase(value string) string {
	if value == "" {
		return value
	}
	return strings.ToUpper(value[:1]) + value[1:]
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}

func daemonLaunchOptions(ctx *commandContext, logLevel string) daemonctl.LaunchOptions {
	opts := daemonctl.LaunchOptions{LogLevel: logLevel}
	if ctx.configFlag != nil {
		if config := strings.TrimSpace(*ctx.configFlag); config != "" {
			opts.ConfigPath = config
		}
	}
	return opts
}
