package stages

import (
	"context"
	"errors"
	"strings"
	"testing"

	"visionrecall/internal/services"
	"visionrecall/internal/services/llm"
	"visionrecall/internal/stage"
)

type fakeChat struct {
	replies   []string
	errs      []error
	requests  []llm.Request
	onRequest func()
}

func (f *fakeChat) ChatCompletion(_ context.Context, req llm.Request) (string, error) {
	idx := len(f.requests)
	f.requests = append(f.requests, req)
	if f.onRequest != nil {
		f.onRequest()
	}
	var err error
	if idx < len(f.errs) {
		err = f.errs[idx]
	}
	if err != nil {
		return "", err
	}
	if idx < len(f.replies) {
		return f.replies[idx], nil
	}
	if len(f.replies) > 0 {
		return f.replies[len(f.replies)-1], nil
	}
	return "", nil
}

type fakeEngine struct {
	lang       string
	text       string
	err        error
	reinitWith []string
}

func (f *fakeEngine) Language() string { return f.lang }

func (f *fakeEngine) Reinitialize(_ context.Context, lang string) error {
	f.reinitWith = append(f.reinitWith, lang)
	f.lang = lang
	return nil
}

func (f *fakeEngine) Terminate() error { return nil }

func (f *fakeEngine) Recognize(context.Context, []byte) (string, error) {
	return f.text, f.err
}

func TestOCRRejectsShortText(t *testing.T) {
	engine := &fakeEngine{lang: "eng", text: "abc"}
	got, err := NewOCR(engine, "eng", false, nil).Extract(context.Background(), []byte("img"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "" {
		t.Fatalf("expected empty OCR text for short input, got %q", got)
	}
}

func TestOCRReinitializesOnLanguageChange(t *testing.T) {
	engine := &fakeEngine{lang: "eng", text: "Bonjour tout le monde"}
	got, err := NewOCR(engine, "fra", true, nil).Extract(context.Background(), []byte("img"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(engine.reinitWith) != 1 || engine.reinitWith[0] != "fra" {
		t.Fatalf("expected reinitialize to fra, got %v", engine.reinitWith)
	}
	if got != "Bonjour tout le monde" {
		t.Fatalf("unexpected OCR text %q", got)
	}

	engine2 := &fakeEngine{lang: "eng", text: "Hello there world"}
	if _, err := NewOCR(engine2, "fra", false, nil).Extract(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(engine2.reinitWith) != 0 {
		t.Fatalf("expected no reinitialize without translation, got %v", engine2.reinitWith)
	}
}

func TestOCREngineErrorIsExternal(t *testing.T) {
	engine := &fakeEngine{lang: "eng", err: errors.New("tesseract crashed")}
	_, err := NewOCR(engine, "eng", false, nil).Extract(context.Background(), []byte("img"))
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
}

func TestVisionRequestShape(t *testing.T) {
	chat := &fakeChat{replies: []string{"  A web page showing a recipe.  "}}
	v := &Vision{Client: chat, Model: "gpt-4o-mini"}
	got, err := v.Analyze(context.Background(), []byte("\x89PNG\r\n\x1a\n"))
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if got != "A web page showing a recipe." {
		t.Fatalf("unexpected analysis %q", got)
	}
	req := chat.requests[0]
	if req.MaxTokens != 300 || req.Model != "gpt-4o-mini" {
		t.Fatalf("unexpected request: %#v", req)
	}
	parts, ok := req.Messages[0].Content.([]llm.ContentPart)
	if !ok || len(parts) != 2 {
		t.Fatalf("expected text and image parts, got %#v", req.Messages[0].Content)
	}
	if parts[0].Text != DefaultVisionPrompt {
		t.Fatalf("unexpected prompt %q", parts[0].Text)
	}
	if parts[1].ImageURL == nil || parts[1].ImageURL.Detail != "high" || !strings.HasPrefix(parts[1].ImageURL.URL, "data:image/png;base64,") {
		t.Fatalf("unexpected image part %#v", parts[1])
	}
}

func TestVisionEmptyResponseFails(t *testing.T) {
	v := &Vision{Client: &fakeChat{replies: []string{"   "}}, Model: "m"}
	if _, err := v.Analyze(context.Background(), []byte("img")); !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
}

func TestDetectCategoryFirstMatchWins(t *testing.T) {
	tests := []struct {
		vision  string
		keyword string
		ok      bool
	}{
		{"This is a YouTube comment on a web page", "youtube comment", true},
		{"A screenshot of a Web Page with an email link", "web page", true},
		{"A Discord message thread", "discord message", true},
		{"A photo of a cat", "", false},
	}
	for _, tc := range tests {
		c, ok := DetectCategory(tc.vision)
		if ok != tc.ok || c.Keyword != tc.keyword {
			t.Fatalf("DetectCategory(%q) = %q,%v want %q,%v", tc.vision, c.Keyword, ok, tc.keyword, tc.ok)
		}
	}
}

func TestNotesPromptUsesCategoryAndSections(t *testing.T) {
	n := &Notes{Prompt: "Base prompt.", CategoryDetection: true}
	prompt := n.BuildPrompt("ocr body", "A tweet about Go")
	if !strings.HasPrefix(prompt, "The following text and vision analysis is from a Twitter comment or Tweet.") {
		t.Fatalf("expected tweet prompt, got %q", prompt)
	}
	if !strings.HasSuffix(prompt, "\n\nOCR text:\nocr body\n\nVision analysis:\nA tweet about Go") {
		t.Fatalf("unexpected prompt tail %q", prompt)
	}

	n.CategoryDetection = false
	if prompt := n.BuildPrompt("", "A tweet"); !strings.HasPrefix(prompt, "Base prompt.") {
		t.Fatalf("expected base prompt without detection, got %q", prompt)
	}

	translated := (&Notes{Language: "deu", Translate: true}).BuildPrompt("x", "y")
	if !strings.Contains(translated, "Generate the response in the following language: German (Deutsch)") {
		t.Fatalf("expected language modifier, got %q", translated)
	}
}

func TestNotesGenerateUsesMaxTokens(t *testing.T) {
	chat := &fakeChat{replies: []string{"summary"}}
	n := &Notes{Client: chat, Model: "notes-model", MaxTokens: 777}
	got, err := n.Generate(context.Background(), "ocr", "vision")
	if err != nil || got != "summary" {
		t.Fatalf("Generate = %q, %v", got, err)
	}
	if chat.requests[0].MaxTokens != 777 || chat.requests[0].Model != "notes-model" {
		t.Fatalf("unexpected request %#v", chat.requests[0])
	}
}

func TestTaggerStrictSchemaRequest(t *testing.T) {
	chat := &fakeChat{replies: []string{`{"title":"Go Tips","tags":["golang","concurrency tips"]}`}}
	tagger := &Tagger{Client: chat, Model: "m", Attempts: 3}
	got, err := tagger.Generate(context.Background(), "some notes")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if got.Title != "Go Tips" || len(got.Tags) != 2 || got.Tags[1] != "concurrency tips" {
		t.Fatalf("unexpected result %#v", got)
	}
	req := chat.requests[0]
	if req.MaxTokens != 140 || req.ResponseFormat == nil || req.ResponseFormat.JSONSchema.Name != "titleAndTags" {
		t.Fatalf("unexpected request %#v", req)
	}
}

func TestTaggerRetriesThenDefaults(t *testing.T) {
	chat := &fakeChat{replies: []string{`{"title":"Only Title","tags":[]}`}}
	tagger := &Tagger{Client: chat, Model: "m", Attempts: 3}
	got, err := tagger.Generate(context.Background(), "notes")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(chat.requests) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(chat.requests))
	}
	if got.Title != "Untitled" || len(got.Tags) != 0 {
		t.Fatalf("expected default, got %#v", got)
	}
}

func TestTaggerRecoversAfterError(t *testing.T) {
	chat := &fakeChat{
		errs:    []error{errors.New("503")},
		replies: []string{"", `{"title":"T","tags":["a"]}`},
	}
	got, err := (&Tagger{Client: chat, Model: "m", Attempts: 2}).Generate(context.Background(), "notes")
	if err != nil || got.Title != "T" {
		t.Fatalf("Generate = %#v, %v", got, err)
	}
}

func TestTaggerCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := (&Tagger{Client: &fakeChat{}, Model: "m"}).Generate(ctx, "notes")
	if !services.IsStopped(err) {
		t.Fatalf("expected stop error, got %v", err)
	}
}

func TestTaggerStopsBetweenAttempts(t *testing.T) {
	stopped := false
	chat := &fakeChat{replies: []string{`{"title":"","tags":[]}`}}
	tagger := &Tagger{
		Client:   chat,
		Model:    "m",
		Attempts: 3,
		Stopper:  stage.StopperFunc(func() bool { return stopped }),
	}
	chat.onRequest = func() { stopped = true }
	_, err := tagger.Generate(context.Background(), "notes")
	if !services.IsStopped(err) {
		t.Fatalf("expected stop error, got %v", err)
	}
	if len(chat.requests) != 1 {
		t.Fatalf("expected a single attempt after stop, got %d", len(chat.requests))
	}
}

func TestTaggerStopAfterFailedAttempt(t *testing.T) {
	stopped := false
	chat := &fakeChat{errs: []error{errors.New("503")}}
	chat.onRequest = func() { stopped = true }
	tagger := &Tagger{Client: chat, Model: "m", Attempts: 3, Stopper: stage.StopperFunc(func() bool { return stopped })}
	if _, err := tagger.Generate(context.Background(), "notes"); !services.IsStopped(err) {
		t.Fatalf("expected stop error, got %v", err)
	}
	if len(chat.requests) != 1 {
		t.Fatalf("expected no retry after stop, got %d requests", len(chat.requests))
	}
}

func TestParseTitleAndTagsChain(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		title string
		tags  []string
	}{
		{
			name:  "strict",
			raw:   `{"title":"Budget","tags":["finance","q3"]}`,
			title: "Budget",
			tags:  []string{"finance", "q3"},
		},
		{
			name:  "fenced with bare keys and trailing commas",
			raw:   "Here you go:\n```json\n{\n  title: \"Budget Review\",\n  tags: [\"finance\", \"budget\",],\n}\n```",
			title: "Budget Review",
			tags:  []string{"finance", "budget"},
		},
		{
			name:  "escaped quotes",
			raw:   `{\"title\": \"Escaped\", \"tags\": [\"one\"]}`,
			title: "Escaped",
			tags:  []string{"one"},
		},
		{
			name:  "regex fallback",
			raw:   `title: "Recovered Title", tags are alpha; beta`,
			title: "Recovered Title",
			tags:  []string{"title: Recovered Title", "tags are alpha", "beta"},
		},
		{
			name:  "missing title",
			raw:   `{"tags":["x"]}`,
			title: "Untitled",
			tags:  []string{"x"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseTitleAndTags(tc.raw)
			if got.Title != tc.title {
				t.Fatalf("title = %q, want %q", got.Title, tc.title)
			}
			if strings.Join(got.Tags, "|") != strings.Join(tc.tags, "|") {
				t.Fatalf("tags = %q, want %q", got.Tags, tc.tags)
			}
		})
	}
}

func TestSanitizeTags(t *testing.T) {
	got := SanitizeTags([]string{" [alpha] ", "be  ta", "", "*gamma*", "d", "e", "f"})
	want := []string{"alpha", "be ta", "gamma", "d", "e"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("SanitizeTags = %q, want %q", got, want)
	}
	if got := SanitizeTags(`["x","y"]`); len(got) != 2 || got[0] != "x" {
		t.Fatalf("expected string tags, got %q", got)
	}
}

func TestFormatAndSanitizeTag(t *testing.T) {
	if got := FormatTags([]string{"machine learning", "go"}); got != "#machine_learning, #go" {
		t.Fatalf("FormatTags = %q", got)
	}
	if got, ok := SanitizeTag("Budget Review (Q3)!"); !ok || got != "Budget_Review_Q3" {
		t.Fatalf("SanitizeTag = %q, %v", got, ok)
	}
	if _, ok := SanitizeTag("2024"); ok {
		t.Fatal("expected all-digit tag to be rejected")
	}
}
