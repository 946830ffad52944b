package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLLM()
	c.normalizeOCR()
	c.normalizeQueue()
	c.normalizeIntake()
	c.normalizeNotes()
	c.normalizeArchive()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.ParentDir) == "" {
		c.Paths.ParentDir = defaultParentDir
	}
	if c.Paths.ParentDir, err = expandPath(c.Paths.ParentDir); err != nil {
		return fmt.Errorf("paths.parent_dir: %w", err)
	}

	derived := []struct {
		key    string
		value  *string
		subdir string
	}{
		{"paths.intake_dir", &c.Paths.IntakeDir, defaultIntakeSubdir},
		{"paths.storage_dir", &c.Paths.StorageDir, defaultStorageSubdir},
		{"paths.notes_dir", &c.Paths.NotesDir, defaultNotesSubdir},
		{"paths.temp_dir", &c.Paths.TempDir, defaultTempSubdir},
	}
	for _, d := range derived {
		if strings.TrimSpace(*d.value) == "" {
			*d.value = filepath.Join(c.Paths.ParentDir, d.subdir)
		}
		if *d.value, err = expandPath(*d.value); err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
	}

	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir()
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.StateDir, "logs")
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.TrashDir) == "" {
		c.Paths.TrashDir = filepath.Join(c.Paths.StateDir, "trash")
	}
	if c.Paths.TrashDir, err = expandPath(c.Paths.TrashDir); err != nil {
		return fmt.Errorf("paths.trash_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLLM() {
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	if c.LLM.Provider == "" {
		c.LLM.Provider = defaultProvider
	}
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" && c.LLM.Provider == ProviderOpenAI {
		if value, ok := os.LookupEnv("VISIONRECALL_LLM_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}
	c.LLM.BaseURL = strings.TrimRight(strings.TrimSpace(c.LLM.BaseURL), "/")
	if c.LLM.BaseURL == "" {
		switch c.LLM.Provider {
		case ProviderOllama:
			c.LLM.BaseURL = defaultOllamaBaseURL
			if host, ok := os.LookupEnv("OLLAMA_HOST"); ok && strings.TrimSpace(host) != "" {
				c.LLM.BaseURL = strings.TrimRight(strings.TrimSpace(host), "/") + "/v1"
			}
		default:
			c.LLM.BaseURL = defaultOpenAIBaseURL
		}
	}
	c.LLM.VisionModel = strings.TrimSpace(c.LLM.VisionModel)
	if c.LLM.VisionModel == "" {
		c.LLM.VisionModel = defaultModel
	}
	c.LLM.NotesModel = strings.TrimSpace(c.LLM.NotesModel)
	if c.LLM.NotesModel == "" {
		c.LLM.NotesModel = c.LLM.VisionModel
	}
	c.LLM.Referer = strings.TrimSpace(c.LLM.Referer)
	if c.LLM.Referer == "" {
		c.LLM.Referer = defaultReferer
	}
	c.LLM.Title = strings.TrimSpace(c.LLM.Title)
	if c.LLM.Title == "" {
		c.LLM.Title = defaultTitle
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = defaultMaxTokens
	}
}

func (c *Config) normalizeOCR() {
	c.OCR.Binary = strings.TrimSpace(c.OCR.Binary)
	if c.OCR.Binary == "" {
		c.OCR.Binary = defaultTesseractBinary
	}
	c.OCR.Language = strings.ToLower(strings.TrimSpace(c.OCR.Language))
	if c.OCR.Language == "" {
		c.OCR.Language = defaultOCRLanguage
	}
}

func (c *Config) normalizeQueue() {
	if c.Queue.InterItemDelayMS < 0 {
		c.Queue.InterItemDelayMS = 0
	}
	if c.Queue.TagAttempts == 0 {
		c.Queue.TagAttempts = defaultTagAttempts
	}
	if c.Queue.StageTimeoutSeconds < 0 {
		c.Queue.StageTimeoutSeconds = 0
	}
}

func (c *Config) normalizeIntake() {
	if c.Intake.PollIntervalSeconds == 0 {
		c.Intake.PollIntervalSeconds = defaultPollIntervalSeconds
	}
	exts := make([]string, 0, len(c.Intake.Extensions))
	seen := make(map[string]struct{}, len(c.Intake.Extensions))
	for _, ext := range c.Intake.Extensions {
		normalized := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		exts = append(exts, normalized)
	}
	if len(exts) == 0 {
		exts = append(exts, defaultExtensions...)
	}
	c.Intake.Extensions = exts
}

func (c *Config) normalizeNotes() {
	c.Notes.TagPrefix = strings.Trim(strings.TrimSpace(c.Notes.TagPrefix), "#/")
	if c.Notes.TagPrefix == "" {
		c.Notes.TagPrefix = defaultTagPrefix
	}
	if c.Notes.TruncateOCR <= 0 {
		c.Notes.TruncateOCR = defaultTruncate
	}
	if c.Notes.TruncateVision <= 0 {
		c.Notes.TruncateVision = defaultTruncate
	}
}

func (c *Config) normalizeArchive() {
	c.Archive.Bucket = strings.TrimSpace(c.Archive.Bucket)
	c.Archive.Region = strings.TrimSpace(c.Archive.Region)
	c.Archive.Endpoint = strings.TrimSpace(c.Archive.Endpoint)
	c.Archive.Prefix = strings.Trim(strings.TrimSpace(c.Archive.Prefix), "/")
	c.Archive.AgeRecipient = strings.TrimSpace(c.Archive.AgeRecipient)
	if c.Archive.AccessKey == "" {
		if value, ok := os.LookupEnv("AWS_ACCESS_KEY_ID"); ok {
			c.Archive.AccessKey = strings.TrimSpace(value)
		}
	}
	if c.Archive.SecretKey == "" {
		if value, ok := os.LookupEnv("AWS_SECRET_ACCESS_KEY"); ok {
			c.Archive.SecretKey = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
