package stages

import (
	"context"
	"strings"

	"visionrecall/internal/language"
	"visionrecall/internal/services"
	"visionrecall/internal/services/llm"
)

// DefaultVisionPrompt is sent with the image when no override is configured.
const DefaultVisionPrompt = "Analyze this screenshot and describe its content and identify the type of screenshot if possible."

const visionMaxTokens = 300

// Vision describes a screenshot with a vision-capable model.
type Vision struct {
	Client    ChatClient
	Model     string
	Prompt    string
	Language  string
	Translate bool
}

// Analyze sends the prompt and inline image and returns the model's text.
func (s *Vision) Analyze(ctx context.Context, image []byte) (string, error) {
	if len(image) == 0 {
		return "", services.Wrap(services.ErrValidation, "vision", "analyze", "image is empty", nil)
	}
	prompt := strings.TrimSpace(s.Prompt)
	if prompt == "" {
		prompt = DefaultVisionPrompt
	}
	prompt += language.PromptModifier(s.Language, s.Translate, true)

	content, err := s.Client.ChatCompletion(ctx, llm.Request{
		Model:     s.Model,
		Messages:  []llm.Message{llm.UserWithImage(prompt, image)},
		MaxTokens: visionMaxTokens,
	})
	if err != nil {
		return "", services.WrapContext(services.ErrExternalTool, "vision", "chat completion", err)
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return "", services.Wrap(services.ErrExternalTool, "vision", "chat completion", "empty response", nil)
	}
	return content, nil
}
