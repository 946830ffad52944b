package config

const (
	defaultParentDir             = "~/VisionRecall"
	defaultIntakeSubdir          = "Intake"
	defaultStorageSubdir         = "Screenshots"
	defaultNotesSubdir           = "Notes"
	defaultTempSubdir            = "Temp"
	defaultProvider              = ProviderOpenAI
	defaultOpenAIBaseURL         = "https://api.openai.com/v1"
	defaultOllamaBaseURL         = "http://localhost:11434/v1"
	defaultModel                 = "gpt-4o-mini"
	defaultReferer               = "https://visionrecall.com"
	defaultTitle                 = "Vision Recall"
	defaultLLMTimeoutSeconds     = 120
	defaultMaxTokens             = 500
	defaultTesseractBinary       = "tesseract"
	defaultOCRLanguage           = "eng"
	defaultInterItemDelayMS      = 500
	defaultTagAttempts           = 3
	defaultPollIntervalSeconds   = 300
	minPollIntervalSeconds       = 30
	defaultTruncate              = 500
	defaultTagPrefix             = "VisionRecall"
	defaultNotifyRequestTimeout  = 10
	defaultArchivePrefix         = "visionrecall"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultLogRetentionDays      = 30
	defaultFingerprintRetainDays = 0
)

// Supported LLM providers.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

var defaultExtensions = []string{"png", "jpg", "jpeg", "gif", "webp"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			ParentDir: defaultParentDir,
			StateDir:  defaultStateDir(),
		},
		LLM: LLM{
			Provider:       defaultProvider,
			VisionModel:    defaultModel,
			NotesModel:     defaultModel,
			Referer:        defaultReferer,
			Title:          defaultTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
			MaxTokens:      defaultMaxTokens,
		},
		OCR: OCR{
			Binary:   defaultTesseractBinary,
			Language: defaultOCRLanguage,
		},
		Prompts: Prompts{
			CategoryDetection: true,
		},
		Queue: Queue{
			InterItemDelayMS: defaultInterItemDelayMS,
			TagAttempts:      defaultTagAttempts,
			DuplicateCheck:   true,
		},
		Intake: Intake{
			Enabled:             true,
			PollIntervalSeconds: defaultPollIntervalSeconds,
			Extensions:          append([]string(nil), defaultExtensions...),
		},
		Notes: Notes{
			IncludeMetadata: true,
			TruncateOCR:     defaultTruncate,
			TruncateVision:  defaultTruncate,
			TagPrefix:       defaultTagPrefix,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Queue:          true,
			Errors:         true,
		},
		Archive: Archive{
			Prefix: defaultArchivePrefix,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		Fingerprints: Fingerprints{
			RetentionDays: defaultFingerprintRetainDays,
		},
	}
}
