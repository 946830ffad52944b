package llm

import (
	"encoding/base64"
	"net/http"
)

// Request describes a single chat completion call.
type Request struct {
	Model          string
	Messages       []Message
	MaxTokens      int
	Temperature    *float64
	ResponseFormat *ResponseFormat
}

// Message is a chat message. Content is either a string or a slice of parts.
type Message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// ContentPart is one element of a multipart message.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL references an inline or remote image.
type ImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

// ResponseFormat constrains the model output.
type ResponseFormat struct {
	Type       string      `json:"type"`
	JSONSchema *JSONSchema `json:"json_schema,omitempty"`
}

// JSONSchema names a schema for structured output.
type JSONSchema struct {
	Name   string         `json:"name"`
	Strict bool           `json:"strict,omitempty"`
	Schema map[string]any `json:"schema"`
}

// UserText builds a plain text user message.
func UserText(text string) Message {
	return Message{Role: "user", Content: text}
}

// SystemText builds a system message.
func SystemText(text string) Message {
	return Message{Role: "system", Content: text}
}

// UserWithImage builds a user message carrying a prompt and an inline image
// encoded as a base64 data URL with high detail.
func UserWithImage(prompt string, image []byte) Message {
	return Message{
		Role: "user",
		Content: []ContentPart{
			{Type: "text", Text: prompt},
			{Type: "image_url", ImageURL: &ImageURL{URL: DataURL(image), Detail: "high"}},
		},
	}
}

// DataURL encodes image bytes as a data URL. The media type is sniffed and
// falls back to image/png.
func DataURL(image []byte) string {
	mediaType := http.DetectContentType(image)
	if len(mediaType) < 6 || mediaType[:6] != "image/" {
		mediaType = "image/png"
	}
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(image)
}

// JSONSchemaFormat builds a strict json_schema response format.
func JSONSchemaFormat(name string, schema map[string]any) *ResponseFormat {
	return &ResponseFormat{
		Type:       "json_schema",
		JSONSchema: &JSONSchema{Name: name, Strict: true, Schema: schema},
	}
}
