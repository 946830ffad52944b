package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"visionrecall/internal/config"
	"visionrecall/internal/daemon"
	"visionrecall/internal/daemonrun"
	"visionrecall/internal/ipc"
	"visionrecall/internal/notifications"
	"visionrecall/internal/queue"
	"visionrecall/internal/testsupport"
	"visionrecall/internal/workflow"
)

type quietNotifier struct{}

func (quietNotifier) Publish(context.Context, notifications.Event, notifications.Payload) error {
	return nil
}

type cliTestEnv struct {
	cfg        *config.Config
	store      *queue.Store
	daemon     *daemon.Daemon
	socketPath string
	configPath string
}

// newCLIConfig writes a config rooted in temp dirs and returns it with a
// short socket path that is not yet served.
func newCLIConfig(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	sockDir, err := os.MkdirTemp("", "vr")
	if err != nil {
		t.Fatalf("mkdir temp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(sockDir) })

	return &cliTestEnv{
		cfg:        cfg,
		socketPath: filepath.Join(sockDir, "vr.sock"),
		configPath: configPath,
	}
}

// setupCLITestEnv serves a started daemon backed by fake OCR and LLM
// collaborators on the env socket.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	env := newCLIConfig(t)
	h := testsupport.NewHarness(t, env.cfg)
	env.store = testsupport.MustOpenStore(t, env.cfg)
	mgr := workflow.NewManagerWithNotifier(env.cfg, env.store, h.State, h.Processor, nil, quietNotifier{})

	d, err := daemon.New(env.cfg, env.store, nil, mgr, daemon.Options{Fingerprints: h.Fingerprints, Notifier: quietNotifier{}})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		cancel()
		t.Fatalf("daemon.Start: %v", err)
	}

	srv, err := ipc.NewServer(ctx, env.socketPath, d, nil)
	if err != nil {
		cancel()
		d.Stop()
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	env.daemon = d

	t.Cleanup(func() {
		cancel()
		srv.Close()
		d.Stop()
	})
	return env
}

func useFakeRuntime(t *testing.T) {
	t.Helper()
	previous := runtimeOptions
	runtimeOptions = daemonrun.BuildOptions{
		OCREngine: testsupport.NewFakeOCR("Release checklist: tag build, update changelog"),
		Client:    testsupport.NewFakeChat(),
		Notifier:  quietNotifier{},
	}
	t.Cleanup(func() { runtimeOptions = previous })
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--socket", socket}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func waitFor(t *testing.T, duration time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", duration)
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
