package stages

import (
	"context"
	"strings"

	"visionrecall/internal/language"
	"visionrecall/internal/services"
	"visionrecall/internal/services/llm"
)

// DefaultNotesPrompt is the base summarization instruction.
const DefaultNotesPrompt = "The following OCR text and vision analysis are from a screenshot. Summarize and synthesize the text and vision analysis and identify key information."

// Category maps a keyword found in the vision analysis to a dedicated prompt.
type Category struct {
	Keyword string
	Prompt  string
}

func genericCategoryPrompt(source string) string {
	return "The following text and vision analysis is from " + source + ". Summarize the main topic and key information/arguments."
}

// Categories are matched in order; the first keyword found wins.
var Categories = []Category{
	{"youtube comment", "The following text is from a YouTube comment. Summarize key findings, experiences, or opinions, focusing on actionable takeaways."},
	{"web page", genericCategoryPrompt("a web page screenshot")},
	{"email", genericCategoryPrompt("an email screenshot")},
	{"reddit comment", genericCategoryPrompt("a Reddit comment")},
	{"tweet", genericCategoryPrompt("a Twitter comment or Tweet")},
	{"instagram comment", genericCategoryPrompt("an Instagram comment")},
	{"tiktok comment", genericCategoryPrompt("a TikTok comment")},
	{"discord message", genericCategoryPrompt("a Discord message")},
	{"telegram message", genericCategoryPrompt("a Telegram message")},
}

// DetectCategory returns the first category whose keyword appears in the
// lowercased vision analysis.
func DetectCategory(vision string) (Category, bool) {
	lower := strings.ToLower(vision)
	for _, c := range Categories {
		if strings.Contains(lower, c.Keyword) {
			return c, true
		}
	}
	return Category{}, false
}

// Notes turns OCR text and vision analysis into a written summary.
type Notes struct {
	Client            ChatClient
	Model             string
	Prompt            string
	CategoryDetection bool
	MaxTokens         int
	Language          string
	Translate         bool
}

// BuildPrompt assembles the full user message for the notes model.
func (s *Notes) BuildPrompt(ocrText, vision string) string {
	prompt := strings.TrimSpace(s.Prompt)
	if prompt == "" {
		prompt = DefaultNotesPrompt
	}
	if s.CategoryDetection {
		if c, ok := DetectCategory(vision); ok {
			prompt = c.Prompt
		}
	}
	var b strings.Builder
	b.WriteString(prompt)
	b.WriteString(language.PromptModifier(s.Language, s.Translate, true))
	b.WriteString("\n\nOCR text:\n")
	b.WriteString(ocrText)
	b.WriteString("\n\nVision analysis:\n")
	b.WriteString(vision)
	return b.String()
}

// Generate calls the notes model.
func (s *Notes) Generate(ctx context.Context, ocrText, vision string) (string, error) {
	content, err := s.Client.ChatCompletion(ctx, llm.Request{
		Model:     s.Model,
		Messages:  []llm.Message{llm.UserText(s.BuildPrompt(ocrText, vision))},
		MaxTokens: s.MaxTokens,
	})
	if err != nil {
		return "", services.WrapContext(services.ErrExternalTool, "notes", "chat completion", err)
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return "", services.Wrap(services.ErrExternalTool, "notes", "chat completion", "empty response", nil)
	}
	return content, nil
}
