package testsupport

import (
	"context"
	"sync"

	"visionrecall/internal/services/llm"
)

// Request kinds recognised by FakeChat.
const (
	KindVision = "vision"
	KindNotes  = "notes"
	KindTags   = "tags"
)

// RequestKind classifies a chat request the way the pipeline issues them:
// structured output means tags, an inline image means vision, anything else
// is the notes call.
func RequestKind(req llm.Request) string {
	if req.ResponseFormat != nil {
		return KindTags
	}
	for _, msg := range req.Messages {
		if parts, ok := msg.Content.([]llm.ContentPart); ok {
			for _, part := range parts {
				if part.ImageURL != nil {
					return KindVision
				}
			}
		}
	}
	return KindNotes
}

// FakeChat answers pipeline LLM calls with canned replies.
type FakeChat struct {
	Vision string
	Notes  string
	Tags   string

	VisionErr error
	NotesErr  error
	TagsErr   error

	// Hook runs before every reply. A non-nil error is returned to the caller.
	Hook func(ctx context.Context, kind string) error

	mu    sync.Mutex
	calls map[string]int
}

// NewFakeChat returns a FakeChat with replies that pass every stage.
func NewFakeChat() *FakeChat {
	return &FakeChat{
		Vision: "A screenshot of a terminal window showing build output.",
		Notes:  "The build finished with two warnings about deprecated flags.",
		Tags:   `{"title":"Build Output","tags":["build","terminal","ci"]}`,
	}
}

// ChatCompletion implements the pipeline chat client.
func (f *FakeChat) ChatCompletion(ctx context.Context, req llm.Request) (string, error) {
	kind := RequestKind(req)
	f.mu.Lock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[kind]++
	hook := f.Hook
	f.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, kind); err != nil {
			return "", err
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	switch kind {
	case KindVision:
		return f.Vision, f.VisionErr
	case KindTags:
		return f.Tags, f.TagsErr
	default:
		return f.Notes, f.NotesErr
	}
}

// Calls returns how many requests of kind were made.
func (f *FakeChat) Calls(kind string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[kind]
}

// SetVision replaces the vision reply.
func (f *FakeChat) SetVision(reply string, err error) {
	f.mu.Lock()
	f.Vision, f.VisionErr = reply, err
	f.mu.Unlock()
}

// FakeOCR is an in-memory OCR engine.
type FakeOCR struct {
	mu         sync.Mutex
	lang       string
	terminated bool
	Text       string
	Err        error
}

// NewFakeOCR returns an engine that recognizes text in English.
func NewFakeOCR(text string) *FakeOCR {
	return &FakeOCR{lang: "eng", Text: text}
}

// Language implements the OCR engine.
func (f *FakeOCR) Language() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lang
}

// Reinitialize implements the OCR engine.
func (f *FakeOCR) Reinitialize(_ context.Context, lang string) error {
	f.mu.Lock()
	f.lang = lang
	f.mu.Unlock()
	return nil
}

// Terminate implements the OCR engine.
func (f *FakeOCR) Terminate() error {
	f.mu.Lock()
	f.terminated = true
	f.mu.Unlock()
	return nil
}

// Terminated reports whether Terminate was called.
func (f *FakeOCR) Terminated() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.terminated
}

// Recognize implements the OCR engine.
func (f *FakeOCR) Recognize(ctx context.Context, _ []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Text, f.Err
}
