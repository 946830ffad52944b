package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"visionrecall/internal/config"
	"visionrecall/internal/daemon"
	"visionrecall/internal/ipc"
	"visionrecall/internal/preflight"
	"visionrecall/internal/queue"
)

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	ConfigPath string
	LogLevel   string
}

type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
)

// StartResult captures daemon start orchestration state.
type StartResult struct {
	State    StartState
	Launched bool
	PID      int
}

// Launch starts a detached visionrecall daemon process.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return fmt.Errorf("resolve executable: executable path is empty")
	}

	args := []string{"daemon"}
	if cfg := strings.TrimSpace(opts.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		args = append(args, "--log-level", level)
	}

	proc := exec.Command(executablePath, args...)
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// WaitForClient waits for IPC socket availability and returns a connected client.
func WaitForClient(socketPath string, timeout time.Duration) (*ipc.Client, error) {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		client, err := ipc.Dial(socketPath)
		if err == nil {
			return client, nil
		}
		lastErr = err
		time.Sleep(200 * time.Millisecond)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timeout waiting for daemon")
	}
	return nil, fmt.Errorf("daemon failed to start: %w", lastErr)
}

// EnsureStarted launches the daemon unless one already answers on socketPath.
func EnsureStarted(socketPath, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	if client, err := ipc.Dial(socketPath); err == nil {
		defer client.Close()
		status, statusErr := client.Status()
		if statusErr != nil {
			return StartResult{}, statusErr
		}
		return StartResult{State: StartStateAlreadyRunning, PID: status.PID}, nil
	}

	if err := Launch(executablePath, opts); err != nil {
		return StartResult{}, err
	}
	client, err := WaitForClient(socketPath, waitTimeout)
	if err != nil {
		return StartResult{}, err
	}
	defer client.Close()
	result := StartResult{State: StartStateStarted, Launched: true}
	if status, err := client.Status(); err == nil {
		result.PID = status.PID
	}
	return result, nil
}

// WaitForShutdown waits for daemon IPC to disappear.
func WaitForShutdown(socketPath string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		client, err := ipc.Dial(socketPath)
		if err != nil {
			if isDaemonUnavailable(err) {
				return nil
			}
		} else {
			_ = client.Close()
		}
		time.Sleep(200 * time.Millisecond)
	}
	return errors.New("daemon did not stop: timeout waiting for shutdown")
}

// ErrDaemonNotRunning indicates no live daemon was found.
var ErrDaemonNotRunning = errors.New("daemon not running")

// StopResult captures daemon termination outcome.
type StopResult struct {
	PID        int
	ForcedKill bool
}

// RestartResult captures stop/start outcomes for daemon restart.
type RestartResult struct {
	WasRunning bool
	Stop       StopResult
	Start      StartResult
}

// StopAndTerminate sends SIGTERM to the daemon recorded in the runtime
// document and escalates to SIGKILL when it outlives gracePeriod.
func StopAndTerminate(cfg *config.Config, gracePeriod time.Duration) (StopResult, error) {
	if cfg == nil {
		return StopResult{}, errors.New("configuration not available")
	}
	info, ok, err := daemon.ReadRuntime(cfg)
	if err != nil {
		return StopResult{}, err
	}
	if !ok || !info.Alive() {
		return StopResult{}, ErrDaemonNotRunning
	}
	if info.PID == os.Getpid() {
		return StopResult{}, fmt.Errorf("refusing to signal current process (pid %d)", info.PID)
	}

	result := StopResult{PID: info.PID}
	if err := syscall.Kill(info.PID, syscall.SIGTERM); err != nil {
		return result, fmt.Errorf("signal daemon process %d: %w", info.PID, err)
	}

	socketPath := info.SocketPath
	if socketPath == "" {
		socketPath = cfg.SocketPath()
	}
	if err := WaitForShutdown(socketPath, gracePeriod); err == nil && !info.Alive() {
		return result, nil
	}
	if !info.Alive() {
		return result, nil
	}

	if err := syscall.Kill(info.PID, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return result, fmt.Errorf("kill daemon process %d: %w", info.PID, err)
	}
	_ = os.Remove(socketPath)
	_ = os.Remove(cfg.RuntimePath())
	result.ForcedKill = true
	return result, nil
}

// Restart stops the daemon if running, then ensures it is started.
func Restart(cfg *config.Config, executablePath string, opts LaunchOptions, stopGracePeriod, startWaitTimeout time.Duration) (RestartResult, error) {
	stopResult, stopErr := StopAndTerminate(cfg, stopGracePeriod)
	if stopErr != nil && !errors.Is(stopErr, ErrDaemonNotRunning) {
		return RestartResult{}, stopErr
	}

	startResult, err := EnsureStarted(cfg.SocketPath(), executablePath, opts, startWaitTimeout)
	if err != nil {
		return RestartResult{}, err
	}

	return RestartResult{
		WasRunning: stopErr == nil,
		Stop:       stopResult,
		Start:      startResult,
	}, nil
}

// Snapshot is the status view rendered by the CLI.
type Snapshot struct {
	Status     *ipc.StatusResponse
	QueueStats map[string]int
	Checks     []preflight.Result
}

// BuildStatusSnapshot collects daemon status and falls back to the journal
// for queue counts when no daemon answers. Preflight checks always run locally.
func BuildStatusSnapshot(ctx context.Context, socketPath string, cfg *config.Config) (*Snapshot, error) {
	if cfg == nil {
		return nil, errors.New("configuration not available")
	}
	snap := &Snapshot{Status: &ipc.StatusResponse{}}

	if client, err := ipc.Dial(socketPath); err == nil {
		if resp, statusErr := client.Status(); statusErr == nil && resp != nil {
			snap.Status = resp
		}
		_ = client.Close()
	}

	snap.QueueStats = make(map[string]int, len(snap.Status.QueueStats))
	for k, v := range snap.Status.QueueStats {
		snap.QueueStats[k] = v
	}

	if !snap.Status.Running {
		queryCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()

		store, openErr := queue.Open(cfg)
		if openErr == nil {
			stats, statsErr := store.Stats(queryCtx)
			_ = store.Close()
			if statsErr == nil {
				for status, count := range stats {
					snap.QueueStats[string(status)] = count
				}
			}
		}
	}

	snap.Checks = preflight.RunAll(ctx, cfg)
	return snap, nil
}

func isDaemonUnavailable(err error) bool {
	return os.IsNotExist(err) ||
		errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, syscall.ENOENT) ||
		errors.Is(err, syscall.ECONNREFUSED)
}
