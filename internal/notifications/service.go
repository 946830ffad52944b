package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"visionrecall/internal/config"
)

const userAgent = "VisionRecall-Go/0.1.0"

// Event identifies a notification type.
type Event string

const (
	EventQueueStarted   Event = "queue_started"
	EventQueueCompleted Event = "queue_completed"
	EventItemCompleted  Event = "item_completed"
	EventError          Event = "error"
	EventTest           Event = "test"
)

// Payload carries event specific values.
type Payload map[string]any

// Service publishes events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		queue:    cfg.Notifications.Queue,
		errors:   cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	queue    bool
	errors   bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, data Payload) error {
	if n.suppressed(event) {
		return nil
	}
	msg, ok := format(event, data)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) suppressed(event Event) bool {
	switch event {
	case EventQueueStarted, EventQueueCompleted, EventItemCompleted:
		return !n.queue
	case EventError:
		return !n.errors
	default:
		return false
	}
}

func format(event Event, data Payload) (payload, bool) {
	switch event {
	case EventQueueStarted:
		return payload{
			title:   "VisionRecall - Queue Started",
			message: fmt.Sprintf("Started processing %d screenshots", intValue(data, "count")),
			tags:    []string{"visionrecall", "queue", "started"},
		}, true
	case EventQueueCompleted:
		return queueCompleted(data), true
	case EventItemCompleted:
		title := stringValue(data, "title")
		if title == "" {
			title = "Untitled"
		}
		message := "📝 Note created: " + title
		if tags := stringValue(data, "tags"); tags != "" {
			message += "\n" + tags
		}
		return payload{
			title:   "VisionRecall - Note Created",
			message: message,
			tags:    []string{"visionrecall", "note", "completed"},
		}, true
	case EventError:
		var b strings.Builder
		b.WriteString("❌ Error")
		if label := stringValue(data, "context"); label != "" {
			b.WriteString(" with ")
			b.WriteString(label)
		}
		b.WriteString(": ")
		if err, ok := data["error"].(error); ok && err != nil {
			b.WriteString(strings.TrimSpace(err.Error()))
		} else if msg := stringValue(data, "error"); msg != "" {
			b.WriteString(msg)
		} else {
			b.WriteString("unknown")
		}
		return payload{
			title:    "VisionRecall - Error",
			message:  b.String(),
			tags:     []string{"visionrecall", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return payload{
			title:    "VisionRecall - Test",
			message:  "🧪 Notification system test",
			tags:     []string{"visionrecall", "test"},
			priority: "low",
		}, true
	default:
		return payload{}, false
	}
}

func queueCompleted(data Payload) payload {
	processed := intValue(data, "processed")
	failed := intValue(data, "failed")
	skipped := intValue(data, "skipped")
	duration, _ := data["duration"].(time.Duration)
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	durationText := duration.String()

	title := "VisionRecall - Queue Complete"
	message := fmt.Sprintf("Queue complete: %d screenshots processed in %s", processed, durationText)
	if failed > 0 {
		title = "VisionRecall - Queue Complete (with errors)"
		message = fmt.Sprintf("Queue complete: %d succeeded, %d failed in %s", processed, failed, durationText)
	}
	if skipped > 0 {
		message += fmt.Sprintf(" (%d duplicates skipped)", skipped)
	}
	return payload{
		title:   title,
		message: message,
		tags:    []string{"visionrecall", "queue", "completed"},
	}
}

func stringValue(data Payload, key string) string {
	if data == nil {
		return ""
	}
	switch v := data[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func intValue(data Payload, key string) int {
	if data == nil {
		return 0
	}
	switch v := data[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	default:
		return 0
	}
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
