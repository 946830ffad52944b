package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"visionrecall/internal/config"
	"visionrecall/internal/deps"
	"visionrecall/internal/services/llm"
	"visionrecall/internal/services/tesseract"
)

// MinFreeBytes is the free space required under the storage directory.
const MinFreeBytes = 100 << 20

// CheckLLM verifies that the LLM API is reachable and the key is valid.
// It uses a 30-second timeout and a single attempt (no retries).
func CheckLLM(ctx context.Context, name string, cfg config.LLMConfig) Result {
	if cfg.APIKey == "" && cfg.Provider != config.ProviderOllama {
		return Result{Name: name, Detail: "API key missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client := llm.NewClient(llm.Config{
		Provider: cfg.Provider,
		APIKey:   cfg.APIKey,
		BaseURL:  cfg.BaseURL,
		Referer:  cfg.Referer,
		Title:    cfg.Title,
	}, llm.WithRetryMaxAttempts(1))

	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeLLMError(err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s reachable (%s)", cfg.Provider, cfg.BaseURL)}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFreeSpace verifies the filesystem holding path has at least minBytes available.
func CheckFreeSpace(name, path string, minBytes uint64) Result {
	var fs unix.Statfs_t
	if err := unix.Statfs(path, &fs); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	free := uint64(fs.Bavail) * uint64(fs.Bsize)
	detail := fmt.Sprintf("%s free", formatBytes(free))
	if free < minBytes {
		return Result{Name: name, Detail: fmt.Sprintf("%s (need %s)", detail, formatBytes(minBytes))}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckTesseract verifies the OCR binary is installed and carries every
// language in the configured "+"-joined language string.
func CheckTesseract(ctx context.Context, binary, language string) Result {
	const name = "Tesseract"
	status := deps.CheckBinaries([]deps.Requirement{deps.Tesseract(binary)})[0]
	if !status.Available {
		return Result{Name: name, Detail: status.Detail}
	}
	engine, err := tesseract.New(status.Command, language)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	installed, err := engine.Languages(checkCtx)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	have := make(map[string]struct{}, len(installed))
	for _, l := range installed {
		have[l] = struct{}{}
	}
	var missing []string
	for _, l := range strings.Split(language, "+") {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		if _, ok := have[l]; !ok {
			missing = append(missing, l)
		}
	}
	if len(missing) > 0 {
		return Result{Name: name, Detail: fmt.Sprintf("language data missing: %s", strings.Join(missing, ", "))}
	}
	detail := status.Version
	if detail == "" {
		detail = status.Command
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s)", detail, language)}
}

// summarizeLLMError produces a human-readable summary for LLM health check failures.
func summarizeLLMError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (LLM API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (LLM API unreachable)"
	}
	if code, ok := llm.StatusCode(err); ok && (code == 401 || code == 403) {
		return "auth failed (invalid API key)"
	}
	return err.Error()
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
