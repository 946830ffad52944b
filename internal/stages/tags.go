package stages

import (
	"context"
	"log/slog"
	"strings"

	"visionrecall/internal/language"
	"visionrecall/internal/logging"
	"visionrecall/internal/services"
	"visionrecall/internal/services/llm"
	"visionrecall/internal/stage"
)

const (
	// DefaultTitle is used when no title could be generated.
	DefaultTitle      = "Untitled"
	tagsMaxTokens     = 140
	defaultTagAttempt = 3
)

// TitleAndTags is the structured output of the tag stage.
type TitleAndTags struct {
	Title string   `json:"title"`
	Tags  []string `json:"tags"`
}

// DefaultTitleAndTags is returned when every attempt fails.
func DefaultTitleAndTags() TitleAndTags {
	return TitleAndTags{Title: DefaultTitle, Tags: []string{}}
}

var titleAndTagsSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"title": map[string]any{"type": "string"},
		"tags": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
	},
	"required":             []string{"title", "tags"},
	"additionalProperties": false,
}

// Tagger suggests a title and up to five tags for generated notes.
type Tagger struct {
	Client    ChatClient
	Model     string
	Attempts  int
	Language  string
	Translate bool
	Logger    *slog.Logger
	// Stopper is consulted between attempts.
	Stopper stage.Stopper
}

// Generate retries the suggestion until it yields tags. It never fails for
// model or parse errors; only cancellation is reported as an error.
func (s *Tagger) Generate(ctx context.Context, notes string) (TitleAndTags, error) {
	if strings.TrimSpace(notes) == "" {
		return DefaultTitleAndTags(), nil
	}
	logger := logging.NewComponentLogger(s.Logger, "tags")
	attempts := s.Attempts
	if attempts <= 0 {
		attempts = defaultTagAttempt
	}
	for i := 1; i <= attempts; i++ {
		if err := ctx.Err(); err != nil {
			return DefaultTitleAndTags(), services.WrapContext(services.ErrExternalTool, "tags", "generate", err)
		}
		result, err := s.suggest(ctx, notes)
		if stopErr := stage.Checkpoint(ctx, s.Stopper, "tags"); services.IsStopped(stopErr) {
			return DefaultTitleAndTags(), stopErr
		}
		if err != nil {
			if ctx.Err() != nil {
				return DefaultTitleAndTags(), services.WrapContext(services.ErrExternalTool, "tags", "generate", ctx.Err())
			}
			logger.Debug("tag suggestion failed",
				logging.Int("attempt", i),
				logging.Int("max_attempts", attempts),
				logging.Error(err),
			)
			continue
		}
		if result.Title == "" || len(result.Tags) == 0 {
			logger.Debug("tag suggestion empty",
				logging.Int("attempt", i),
				logging.Int("max_attempts", attempts),
			)
			continue
		}
		return result, nil
	}
	logger.Warn("tag generation exhausted retries",
		logging.String(logging.FieldEventType, "tags_default"),
		logging.String(logging.FieldErrorHint, "check the notes model supports structured output"),
		logging.String(logging.FieldImpact, "note saved as Untitled without tags"),
		logging.Int("attempts", attempts),
	)
	return DefaultTitleAndTags(), nil
}

// Prompt builds the user message for the tag model.
func (s *Tagger) Prompt(notes string) string {
	return "Please suggest exactly 5 relevant tags or keywords to categorize the following notes as well as a title for the notes. " +
		"Return ONLY a JSON object with the following properties: tags (array of strings), title (string). " +
		"Example format: { title: 'Title of the notes', tags: ['tag1', 'tag2', 'tag3', 'tag4', 'tag5'] }" +
		language.PromptModifier(s.Language, s.Translate, false) +
		"\n\nNotes:\n" + notes
}

func (s *Tagger) suggest(ctx context.Context, notes string) (TitleAndTags, error) {
	content, err := s.Client.ChatCompletion(ctx, llm.Request{
		Model:          s.Model,
		Messages:       []llm.Message{llm.UserText(s.Prompt(notes))},
		MaxTokens:      tagsMaxTokens,
		ResponseFormat: llm.JSONSchemaFormat("titleAndTags", titleAndTagsSchema),
	})
	if err != nil {
		return TitleAndTags{}, err
	}
	return ParseTitleAndTags(content), nil
}
