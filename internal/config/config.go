package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration. Empty sub-directories are derived
// from ParentDir during normalization.
type Paths struct {
	ParentDir  string `toml:"parent_dir"`
	IntakeDir  string `toml:"intake_dir"`
	StorageDir string `toml:"storage_dir"`
	NotesDir   string `toml:"notes_dir"`
	TempDir    string `toml:"temp_dir"`
	TrashDir   string `toml:"trash_dir"`
	StateDir   string `toml:"state_dir"`
	LogDir     string `toml:"log_dir"`
}

// LLM contains the OpenAI-compatible endpoint used for vision, notes, and tags.
type LLM struct {
	Provider       string `toml:"provider"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	VisionModel    string `toml:"vision_model"`
	NotesModel     string `toml:"notes_model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MaxTokens      int    `toml:"max_tokens"`
}

// OCR contains tesseract settings.
type OCR struct {
	Binary   string `toml:"binary"`
	Language string `toml:"language"`
	// TranslatePrompts asks the LLM to answer in the OCR language and enables
	// language specific OCR cleanup.
	TranslatePrompts bool `toml:"translate_prompts"`
}

// Prompts overrides the built-in LLM instructions.
type Prompts struct {
	Vision            string `toml:"vision"`
	Notes             string `toml:"notes"`
	CategoryDetection bool   `toml:"category_detection"`
}

// Queue contains processing loop knobs.
type Queue struct {
	InterItemDelayMS    int  `toml:"inter_item_delay_ms"`
	TagAttempts         int  `toml:"tag_attempts"`
	StageTimeoutSeconds int  `toml:"stage_timeout_seconds"`
	DuplicateCheck      bool `toml:"duplicate_check"`
}

// Intake contains configuration for the watched intake directory.
type Intake struct {
	Enabled             bool     `toml:"enabled"`
	PollIntervalSeconds int      `toml:"poll_interval_seconds"`
	Extensions          []string `toml:"extensions"`
}

// Notes contains markdown note rendering options.
type Notes struct {
	IncludeMetadata bool   `toml:"include_metadata"`
	TruncateOCR     int    `toml:"truncate_ocr"`
	TruncateVision  int    `toml:"truncate_vision"`
	TagPrefix       string `toml:"tag_prefix"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Queue          bool   `toml:"queue"`
	Errors         bool   `toml:"errors"`
}

// Archive contains the optional encrypted S3 copy of processed screenshots.
type Archive struct {
	Enabled      bool   `toml:"enabled"`
	Bucket       string `toml:"bucket"`
	Region       string `toml:"region"`
	Prefix       string `toml:"prefix"`
	Endpoint     string `toml:"endpoint"`
	AccessKey    string `toml:"access_key"`
	SecretKey    string `toml:"secret_key"`
	AgeRecipient string `toml:"age_recipient"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Fingerprints controls retention of dedup records.
type Fingerprints struct {
	RetentionDays int `toml:"retention_days"`
}

// Trash controls how long trashed screenshots and metadata are kept.
type Trash struct {
	RetentionDays int `toml:"retention_days"`
}

// Config encapsulates all configuration values for VisionRecall.
//
// Configuration sections by subsystem:
//   - Paths: intake, storage, notes, state, and log directories
//   - LLM: OpenAI-compatible endpoint, models, and token budget
//   - OCR: tesseract binary and language
//   - Prompts: vision/notes instructions and category detection
//   - Queue: inter-item delay, tag retries, stage timeout, duplicate check
//   - Intake: directory polling
//   - Notes: markdown metadata block and tag prefix
//   - Notifications: ntfy push notification settings
//   - Archive: optional age-encrypted S3 copies
//   - Logging: log format, level, and retention
//   - Fingerprints: dedup record retention
//   - Trash: trashed file retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	LLM           LLM           `toml:"llm"`
	OCR           OCR           `toml:"ocr"`
	Prompts       Prompts       `toml:"prompts"`
	Queue         Queue         `toml:"queue"`
	Intake        Intake        `toml:"intake"`
	Notes         Notes         `toml:"notes"`
	Notifications Notifications `toml:"notifications"`
	Archive       Archive       `toml:"archive"`
	Logging       Logging       `toml:"logging"`
	Fingerprints  Fingerprints  `toml:"fingerprints"`
	Trash         Trash         `toml:"trash"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/visionrecall/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("visionrecall.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates every directory the pipeline writes to.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{
		c.Paths.IntakeDir,
		c.Paths.StorageDir,
		c.Paths.NotesDir,
		c.Paths.TempDir,
		c.Paths.TrashDir,
		c.Paths.StateDir,
		c.Paths.LogDir,
	} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// QueueDBPath returns the sqlite file backing the queue journal.
func (c *Config) QueueDBPath() string {
	return filepath.Join(c.Paths.StateDir, "queue.db")
}

// EntriesDBPath returns the sqlite file backing result entries.
func (c *Config) EntriesDBPath() string {
	return filepath.Join(c.Paths.StateDir, "entries.db")
}

// FingerprintsPath returns the JSON blob holding dedup records.
func (c *Config) FingerprintsPath() string {
	return filepath.Join(c.Paths.StateDir, "fingerprints.json")
}

// RuntimePath returns the JSON blob holding settings changed at runtime.
func (c *Config) RuntimePath() string {
	return filepath.Join(c.Paths.StateDir, "runtime.json")
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "visionrecall.lock")
}

// SocketPath returns the daemon control socket.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.StateDir, "visionrecall.sock")
}

// TesseractBinary returns the OCR executable name.
func (c *Config) TesseractBinary() string {
	if bin := strings.TrimSpace(c.OCR.Binary); bin != "" {
		return bin
	}
	return defaultTesseractBinary
}

// IsImage reports whether the file name carries one of the intake extensions.
func (c *Config) IsImage(name string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if ext == "" {
		return false
	}
	for _, allowed := range c.Intake.Extensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func defaultStateDir() string {
	if base, ok := os.LookupEnv("XDG_DATA_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "visionrecall")
	}
	return "~/.local/share/visionrecall"
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// LLMConfig contains the resolved LLM connection settings.
type LLMConfig struct {
	Provider       string
	APIKey         string
	BaseURL        string
	VisionModel    string
	NotesModel     string
	Referer        string
	Title          string
	TimeoutSeconds int
	MaxTokens      int
}

// GetLLM returns the LLM connection settings.
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		Provider:       strings.TrimSpace(c.LLM.Provider),
		APIKey:         strings.TrimSpace(c.LLM.APIKey),
		BaseURL:        strings.TrimSpace(c.LLM.BaseURL),
		VisionModel:    strings.TrimSpace(c.LLM.VisionModel),
		NotesModel:     strings.TrimSpace(c.LLM.NotesModel),
		Referer:        strings.TrimSpace(c.LLM.Referer),
		Title:          strings.TrimSpace(c.LLM.Title),
		TimeoutSeconds: c.LLM.TimeoutSeconds,
		MaxTokens:      c.LLM.MaxTokens,
	}
}
