package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func writeCompletion(t *testing.T, w http.ResponseWriter, content string) {
	t.Helper()
	payload := map[string]any{
		"choices": []any{
			map[string]any{
				"message":       map[string]any{"content": content},
				"finish_reason": "stop",
			},
		},
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func TestChatCompletionSendsBearerAndPath(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("unexpected authorization %q", got)
		}
		if r.Header.Get("HTTP-Referer") != "" {
			t.Errorf("referer header should only be sent to openrouter")
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["model"] != "gpt-4o-mini" {
			t.Errorf("unexpected model %v", body["model"])
		}
		if body["max_tokens"] != float64(300) {
			t.Errorf("unexpected max_tokens %v", body["max_tokens"])
		}
		writeCompletion(t, w, "  a screenshot of a web page  ")
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "secret", BaseURL: server.URL + "/v1/", Referer: "https://example.com", Title: "demo"})
	got, err := client.ChatCompletion(context.Background(), Request{
		Model:     "gpt-4o-mini",
		Messages:  []Message{UserText("describe")},
		MaxTokens: 300,
	})
	if err != nil {
		t.Fatalf("ChatCompletion returned error: %v", err)
	}
	if got != "a screenshot of a web page" {
		t.Fatalf("unexpected content %q", got)
	}
}

func TestChatCompletionImagePartsAndOpenRouterHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("HTTP-Referer") != "https://visionrecall.com" {
			t.Errorf("missing referer header")
		}
		if r.Header.Get("X-Title") != "Vision Recall" {
			t.Errorf("missing title header")
		}
		var body struct {
			Messages []struct {
				Role    string        `json:"role"`
				Content []ContentPart `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if len(body.Messages) != 1 || len(body.Messages[0].Content) != 2 {
			t.Errorf("unexpected messages %+v", body.Messages)
			return
		}
		image := body.Messages[0].Content[1]
		if image.Type != "image_url" || image.ImageURL == nil {
			t.Errorf("expected image part, got %+v", image)
			return
		}
		if !strings.HasPrefix(image.ImageURL.URL, "data:image/png;base64,") {
			t.Errorf("unexpected data url %q", image.ImageURL.URL)
		}
		if image.ImageURL.Detail != "high" {
			t.Errorf("unexpected detail %q", image.ImageURL.Detail)
		}
		writeCompletion(t, w, "ok")
	}))
	defer server.Close()

	// Path segment makes the base URL look like an OpenRouter endpoint.
	client := NewClient(Config{
		APIKey:  "k",
		BaseURL: server.URL + "/openrouter/api/v1",
		Referer: "https://visionrecall.com",
		Title:   "Vision Recall",
	})
	png := []byte("\x89PNG\r\n\x1a\n0000")
	if _, err := client.ChatCompletion(context.Background(), Request{
		Model:    "m",
		Messages: []Message{UserWithImage("what is this", png)},
	}); err != nil {
		t.Fatalf("ChatCompletion returned error: %v", err)
	}
}

func TestChatCompletionRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeCompletion(t, w, "done")
	}))
	defer server.Close()

	var slept []time.Duration
	client := NewClient(
		Config{APIKey: "k", BaseURL: server.URL},
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }),
	)
	got, err := client.ChatCompletion(context.Background(), Request{Model: "m", Messages: []Message{UserText("hi")}})
	if err != nil {
		t.Fatalf("ChatCompletion returned error: %v", err)
	}
	if got != "done" || calls.Load() != 2 {
		t.Fatalf("expected success on second call, got %q after %d calls", got, calls.Load())
	}
	if len(slept) != 1 || slept[0] != defaultRetryBaseDelay {
		t.Fatalf("unexpected sleeps %v", slept)
	}
}

func TestChatCompletionDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key"}}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "bad", BaseURL: server.URL}, WithSleeper(func(time.Duration) {}))
	_, err := client.ChatCompletion(context.Background(), Request{Model: "m", Messages: []Message{UserText("hi")}})
	if err == nil {
		t.Fatal("expected error")
	}
	if code, ok := StatusCode(err); !ok || code != http.StatusUnauthorized {
		t.Fatalf("expected 401 status, got %d (%v)", code, ok)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single call, got %d", calls.Load())
	}
}

func TestChatCompletionRequiresKeyForOpenAI(t *testing.T) {
	client := NewClient(Config{Provider: ProviderOpenAI})
	if _, err := client.ChatCompletion(context.Background(), Request{Model: "m", Messages: []Message{UserText("x")}}); err == nil {
		t.Fatal("expected missing key error")
	}
}

func TestChatCompletionReadsToolCallArguments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"","tool_calls":[{"function":{"name":"f","arguments":"{\"title\":\"x\"}"}}]}}]}`))
	}))
	defer server.Close()

	client := NewClient(Config{Provider: ProviderOllama, BaseURL: server.URL})
	got, err := client.ChatCompletion(context.Background(), Request{Model: "llava", Messages: []Message{UserText("x")}})
	if err != nil {
		t.Fatalf("ChatCompletion returned error: %v", err)
	}
	if got != `{"title":"x"}` {
		t.Fatalf("unexpected content %q", got)
	}
}

func TestListModelsOpenAI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"data":[{"id":"gpt-4o"},{"id":"gpt-4o-mini"},{"id":" "}]}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "k", BaseURL: server.URL + "/v1"})
	models, err := client.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels returned error: %v", err)
	}
	if strings.Join(models, ",") != "gpt-4o,gpt-4o-mini" {
		t.Fatalf("unexpected models %v", models)
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestListModelsOllama(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "" {
			t.Errorf("ollama requests should not carry a key")
		}
		_, _ = w.Write([]byte(`{"models":[{"name":"llava:latest"},{"name":"bakllava"}]}`))
	}))
	defer server.Close()

	client := NewClient(Config{Provider: ProviderOllama, BaseURL: server.URL + "/v1"})
	models, err := client.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels returned error: %v", err)
	}
	if strings.Join(models, ",") != "bakllava,llava:latest" {
		t.Fatalf("unexpected models %v", models)
	}
}

func TestHealthCheckFailsWithoutModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "k", BaseURL: server.URL})
	if err := client.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected health check to fail")
	}
}

func TestDecodeLLMJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "plain", input: `{"title":"A"}`, want: "A"},
		{name: "fenced", input: "```json\n{\"title\":\"B\"}\n```", want: "B"},
		{name: "prose", input: "Sure! Here you go: {\"title\":\"C\"} hope it helps", want: "C"},
		{name: "empty", input: "   ", wantErr: true},
		{name: "garbage", input: "no json here", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var out struct {
				Title string `json:"title"`
			}
			err := DecodeLLMJSON(tc.input, &out)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeLLMJSON returned error: %v", err)
			}
			if out.Title != tc.want {
				t.Fatalf("got %q, want %q", out.Title, tc.want)
			}
		})
	}
}

func TestDataURLFallsBackToPNG(t *testing.T) {
	got := DataURL([]byte("not an image"))
	if !strings.HasPrefix(got, "data:image/png;base64,") {
		t.Fatalf("unexpected data url %q", got)
	}
	jpeg := DataURL([]byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00"))
	if !strings.HasPrefix(jpeg, "data:image/jpeg;base64,") {
		t.Fatalf("unexpected jpeg data url %q", jpeg)
	}
}
