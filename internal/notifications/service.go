package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"storyteller/internal/config"
)

const userAgent = "Storyteller-Go/0.1.0"

// Event identifies a notification-worthy milestone.
type Event string

const (
	EventStoryReady        Event = "story_ready"
	EventStoryFailed       Event = "story_failed"
	EventDownloadCompleted Event = "download_completed"
	EventTest              Event = "test"
)

// Payload carries event-specific values keyed by name.
type Payload map[string]any

// Service publishes events to the user.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
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
		enabled: map[Event]bool{
			EventStoryReady:        cfg.Notifications.StoryReady,
			EventStoryFailed:       cfg.Notifications.StoryFailed,
			EventDownloadCompleted: cfg.Notifications.StoryReady,
			EventTest:              true,
		},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	enabled  map[Event]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if n == nil || !n.enabled[event] {
		return nil
	}
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventStoryReady:
		title := payloadString(payload, "title")
		if title == "" {
			title = payloadString(payload, "theme")
		}
		body := fmt.Sprintf("📖 Your story is ready: %s", fallback(title, "Untitled story"))
		if duration := payloadString(payload, "duration"); duration != "" {
			body = fmt.Sprintf("%s (%s)", body, duration)
		}
		return message{
			title:    "Storyteller - Story Ready",
			body:     body,
			tags:     []string{"storyteller", "story", "ready"},
			priority: "high",
		}, true
	case EventStoryFailed:
		reason := fallback(payloadString(payload, "error"), "unknown error")
		body := fmt.Sprintf("❌ Story failed: %s", reason)
		if theme := payloadString(payload, "theme"); theme != "" {
			body = fmt.Sprintf("❌ Story about %s failed: %s", theme, reason)
		}
		return message{
			title:    "Storyteller - Story Failed",
			body:     body,
			tags:     []string{"storyteller", "story", "failed"},
			priority: "high",
		}, true
	case EventDownloadCompleted:
		return message{
			title: "Storyteller - Downloaded",
			body:  fmt.Sprintf("💾 Saved: %s", payloadString(payload, "path")),
			tags:  []string{"storyteller", "download", "completed"},
		}, true
	case EventTest:
		return message{
			title:    "Storyteller - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"storyteller", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func payloadString(payload Payload, key string) string {
	if payload == nil {
		return ""
	}
	value, ok := payload[key]
	if !ok || value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	case error:
		return strings.TrimSpace(v.Error())
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func fallback(value, def string) string {
	if value == "" {
		return def
	}
	return value
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" {
		req.Header.Set("Priority", msg.priority)
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
