package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"visionrecall/internal/preflight"
	"visionrecall/internal/testsupport"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("VisionRecall", statusError, "Not running", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "VisionRecall:", "[ERROR] Not running")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("VisionRecall", statusOK, "Running", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestCheckLines(t *testing.T) {
	lines := checkLines([]preflight.Result{
		{Name: "Tesseract", Passed: true, Detail: "tesseract 5.3.4"},
		{Name: "LLM API", Passed: false, Detail: "auth failed (invalid API key)"},
	}, false)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "[OK] tesseract 5.3.4") {
		t.Fatalf("unexpected first line %q", lines[0])
	}
	if !strings.Contains(lines[1], "[ERROR] auth failed") {
		t.Fatalf("unexpected second line %q", lines[1])
	}
	if !strings.Contains(lines[2], "Failing checks") || !strings.Contains(lines[2], "LLM API") {
		t.Fatalf("unexpected summary line %q", lines[2])
	}
}

func TestBuildQueueStatusRowsOrdersByLifecycle(t *testing.T) {
	rows := buildQueueStatusRows(map[string]int{"failed": 2, "pending": 1, "completed": 0, "legacy": 1})
	want := [][]string{{"Pending", "1"}, {"Failed", "2"}, {"Legacy", "1"}}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("rows = %v, want %v", rows, want)
	}
}

func TestQueueStateLabel(t *testing.T) {
	tests := []struct {
		processing, paused, stopped bool
		want                        string
	}{
		{false, false, false, "Idle"},
		{true, false, false, "Processing"},
		{true, true, false, "Paused"},
		{false, true, true, "Stopped"},
	}
	for _, tt := range tests {
		if got := queueStateLabel(tt.processing, tt.paused, tt.stopped); got != tt.want {
			t.Errorf("queueStateLabel(%v,%v,%v) = %q, want %q", tt.processing, tt.paused, tt.stopped, got, tt.want)
		}
	}
}

func TestCollectImages(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	dir := t.TempDir()
	testsupport.WriteImage(t, filepath.Join(dir, "b.png"), 1)
	testsupport.WriteImage(t, filepath.Join(dir, "a.png"), 2)
	if err := os.WriteFile(filepath.Join(dir, "c.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	paths, err := collectImages(cfg, []string{dir})
	if err != nil {
		t.Fatalf("collectImages: %v", err)
	}
	want := []string{filepath.Join(dir, "a.png"), filepath.Join(dir, "b.png")}
	if !reflect.DeepEqual(paths, want) {
		t.Fatalf("paths = %v, want %v", paths, want)
	}

	if _, err := collectImages(cfg, []string{filepath.Join(dir, "missing.png")}); err == nil {
		t.Fatal("expected error for missing path")
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatalf("expected non-file writer to disable color")
	}
	if terminalWidth(io.Discard) != 0 {
		t.Fatalf("expected zero width for non-terminal writer")
	}
}
