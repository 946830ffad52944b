package tesseract

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
)

// ErrTerminated is returned by Recognize after Terminate.
var ErrTerminated = errors.New("tesseract engine terminated")

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, stdin io.Reader) ([]byte, error)
}

// Option configures the engine.
type Option func(*Engine)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(e *Engine) {
		if exec != nil {
			e.exec = exec
		}
	}
}

// Engine wraps tesseract invocations for a single configured language.
type Engine struct {
	binary string
	exec   Executor

	mu        sync.Mutex
	language  string
	ready     bool
	installed map[string]struct{}
}

// New constructs an engine. The language is validated lazily on first use.
func New(binary, language string, opts ...Option) (*Engine, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("tesseract binary required")
	}
	e := &Engine{
		binary:   binary,
		exec:     commandExecutor{},
		language: strings.TrimSpace(language),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Language returns the currently configured language.
func (e *Engine) Language() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.language
}

// Reinitialize switches the engine to language. The installed language list
// is re-read so newly added traineddata files are picked up.
func (e *Engine) Reinitialize(ctx context.Context, language string) error {
	language = strings.TrimSpace(language)
	if language == "" {
		return errors.New("tesseract language required")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ready = false
	e.installed = nil
	e.language = language
	return e.initLocked(ctx)
}

// Recognize runs OCR over the image bytes and returns the raw text.
func (e *Engine) Recognize(ctx context.Context, image []byte) (string, error) {
	if len(image) == 0 {
		return "", errors.New("tesseract: empty image")
	}
	e.mu.Lock()
	if !e.ready {
		if e.installed != nil && e.language == "" {
			e.mu.Unlock()
			return "", ErrTerminated
		}
		if err := e.initLocked(ctx); err != nil {
			e.mu.Unlock()
			return "", err
		}
	}
	language := e.language
	e.mu.Unlock()

	out, err := e.exec.Run(ctx, e.binary, []string{"stdin", "stdout", "-l", language}, bytes.NewReader(image))
	if err != nil {
		return "", fmt.Errorf("tesseract recognize (%s): %w", language, err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Terminate releases the engine. Recognize fails until Reinitialize.
func (e *Engine) Terminate() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ready = false
	e.language = ""
	e.installed = map[string]struct{}{}
	return nil
}

// Languages lists the languages installed for the tesseract binary.
func (e *Engine) Languages(ctx context.Context) ([]string, error) {
	out, err := e.exec.Run(ctx, e.binary, []string{"--list-langs"}, nil)
	if err != nil {
		return nil, fmt.Errorf("tesseract list languages: %w", err)
	}
	return parseLanguages(out), nil
}

func (e *Engine) initLocked(ctx context.Context) error {
	if e.language == "" {
		return errors.New("tesseract language required")
	}
	langs, err := e.Languages(ctx)
	if err != nil {
		return err
	}
	e.installed = make(map[string]struct{}, len(langs))
	for _, l := range langs {
		e.installed[l] = struct{}{}
	}
	for _, part := range strings.Split(e.language, "+") {
		if _, ok := e.installed[part]; !ok {
			return fmt.Errorf("tesseract language %q is not installed", part)
		}
	}
	e.ready = true
	return nil
}

// parseLanguages reads `tesseract --list-langs` output, skipping the header.
func parseLanguages(out []byte) []string {
	var langs []string
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(strings.ToLower(line), "list of available languages") {
			continue
		}
		langs = append(langs, line)
	}
	return langs
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, stdin io.Reader) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	if stdin != nil {
		cmd.Stdin = stdin
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	// --list-langs historically writes to stderr.
	if stdout.Len() == 0 && len(args) > 0 && args[0] == "--list-langs" {
		return stderr.Bytes(), nil
	}
	return stdout.Bytes(), nil
}
