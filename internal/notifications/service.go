package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"framecast/internal/config"
)

const userAgent = "Framecast-Go/0.1.0"

// Event names a notification type.
type Event string

const (
	EventManifestPassed    Event = "manifest_passed"
	EventQualityGateFailed Event = "quality_gate_failed"
	EventPipelineCompleted Event = "pipeline_completed"
	EventPipelineFailed    Event = "pipeline_failed"
	EventError             Event = "error"
	EventTest              Event = "test"
)

// Payload carries event-specific fields.
type Payload map[string]any

// Service publishes pipeline events.
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
		enabled: map[Event]bool{
			EventManifestPassed:    cfg.Notifications.QualityGate,
			EventQualityGateFailed: cfg.Notifications.QualityGate,
			EventPipelineCompleted: cfg.Notifications.Pipeline,
			EventPipelineFailed:    cfg.Notifications.Pipeline,
			EventError:             cfg.Notifications.Errors,
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
	project := payloadString(payload, "projectId")
	switch event {
	case EventManifestPassed:
		return message{
			title: "Framecast - Ready to Render",
			body:  fmt.Sprintf("✅ %s passed the quality gate", project),
			tags:  []string{"framecast", "manifest", "passed"},
		}, true
	case EventQualityGateFailed:
		var b strings.Builder
		fmt.Fprintf(&b, "🚧 %s failed the quality gate", project)
		for _, issue := range payloadStrings(payload, "issues") {
			b.WriteString("\n- ")
			b.WriteString(issue)
		}
		return message{
			title:    "Framecast - Quality Gate Failed",
			body:     b.String(),
			tags:     []string{"framecast", "manifest", "failed"},
			priority: "high",
		}, true
	case EventPipelineCompleted:
		body := fmt.Sprintf("🎬 Pipeline complete: %s", project)
		if d, ok := payload["duration"].(time.Duration); ok && d > 0 {
			body = fmt.Sprintf("%s in %s", body, d.Round(time.Second))
		}
		return message{
			title: "Framecast - Pipeline Complete",
			body:  body,
			tags:  []string{"framecast", "pipeline", "completed"},
		}, true
	case EventPipelineFailed:
		body := fmt.Sprintf("Pipeline failed: %s", project)
		if stage := payloadString(payload, "stage"); stage != "" {
			body = fmt.Sprintf("%s at %s", body, stage)
		}
		return message{
			title:    "Framecast - Pipeline Failed",
			body:     body,
			tags:     []string{"framecast", "pipeline", "failed"},
			priority: "high",
		}, true
	case EventError:
		var b strings.Builder
		b.WriteString("❌ Error")
		if label := payloadString(payload, "context"); label != "" {
			b.WriteString(" with ")
			b.WriteString(label)
		}
		if err, ok := payload["error"].(error); ok && err != nil {
			b.WriteString(": ")
			b.WriteString(err.Error())
		}
		return message{
			title:    "Framecast - Error",
			body:     b.String(),
			tags:     []string{"framecast", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "Framecast - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"framecast", "test"},
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
	switch v := payload[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	default:
		return ""
	}
}

func payloadStrings(payload Payload, key string) []string {
	if payload == nil {
		return nil
	}
	values, _ := payload[key].([]string)
	return values
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.body))
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

// NewNoop returns a service that drops every event.
func NewNoop() Service { return noopService{} }
