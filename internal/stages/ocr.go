package stages

import (
	"context"
	"log/slog"
	"strings"

	"visionrecall/internal/language"
	"visionrecall/internal/logging"
	"visionrecall/internal/services"
)

// OCREngine is the subset of the tesseract engine used by the OCR stage.
type OCREngine interface {
	Language() string
	Reinitialize(ctx context.Context, language string) error
	Recognize(ctx context.Context, image []byte) (string, error)
	Terminate() error
}

// OCR extracts text from screenshot bytes.
type OCR struct {
	engine    OCREngine
	language  string
	translate bool
	logger    *slog.Logger
}

// NewOCR builds the OCR stage for the configured language.
func NewOCR(engine OCREngine, configuredLanguage string, translate bool, logger *slog.Logger) *OCR {
	return &OCR{
		engine:    engine,
		language:  configuredLanguage,
		translate: translate,
		logger:    logging.NewComponentLogger(logger, "ocr"),
	}
}

// Language reports the tesseract language the stage runs with.
func (s *OCR) Language() string {
	return language.OCRLanguage(s.language, s.translate)
}

// Extract runs OCR and returns cleaned text. Output that fails validation is
// returned as an empty string rather than an error.
func (s *OCR) Extract(ctx context.Context, image []byte) (string, error) {
	if s.engine == nil {
		return "", services.Wrap(services.ErrConfiguration, "ocr", "extract", "OCR engine not initialized", nil)
	}
	want := s.Language()
	if current := s.engine.Language(); current != want {
		s.logger.Info("reinitializing OCR engine",
			logging.String("from", current),
			logging.String("to", want),
		)
		if err := s.engine.Reinitialize(ctx, want); err != nil {
			return "", services.Wrap(services.ErrExternalTool, "ocr", "reinitialize", "language "+want, err)
		}
	}

	raw, err := s.engine.Recognize(ctx, image)
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "ocr", "recognize", "", err)
	}

	cleaned := language.CleanOCR(raw, want)
	valid := language.ValidateOCR(strings.TrimSpace(cleaned))
	if valid == "" && strings.TrimSpace(raw) != "" {
		s.logger.Debug("OCR text rejected by validation",
			logging.Int("raw_length", len([]rune(raw))),
		)
	}
	return valid, nil
}
