// Package llm provides an OpenAI-compatible chat client for screenshot analysis.
//
// This package is used by:
//   - Vision stage: describe a screenshot sent inline as a base64 data URL
//   - Notes stage: summarize OCR text and the vision description
//   - Tags stage: request a {title, tags} object through a JSON schema
//
// # Providers
//
// Any endpoint speaking the /chat/completions protocol works. The openai
// provider sends a Bearer token; the ollama provider talks to the local
// OpenAI-compatible endpoint and lists models through /api/tags. When the base
// URL points at OpenRouter the HTTP-Referer and X-Title headers are added.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.ChatCompletion: send messages, receive the first choice's text.
// Client.ListModels: enumerate models offered by the endpoint.
// Client.HealthCheck: verify the endpoint answers.
//
// # Retry Behaviour
//
// The client retries on HTTP 408/429/5xx errors, empty completions, and network
// timeouts with exponential backoff (base 1s, max 10s, up to 3 attempts by
// default). Context cancellation aborts retries immediately.
package llm
