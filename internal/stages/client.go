package stages

import (
	"context"

	"visionrecall/internal/services/llm"
)

// ChatClient sends one chat completion and returns the assistant text.
type ChatClient interface {
	ChatCompletion(ctx context.Context, req llm.Request) (string, error)
}
