package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"framecast/internal/config"
	"framecast/internal/notifications"
)

type captured struct {
	title    string
	body     string
	tags     string
	priority string
}

func newCaptureServer(t *testing.T) (*httptest.Server, *[]captured) {
	t.Helper()
	var got []captured
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got = append(got, captured{
			title:    r.Header.Get("Title"),
			body:     string(body),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
		})
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventPipelineCompleted, notifications.Payload{"projectId": "p"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectBody     string
		expectTags     string
		expectPriority string
	}{
		{
			name:  "quality gate failed",
			event: notifications.EventQualityGateFailed,
			payload: notifications.Payload{
				"projectId": "reef-01",
				"issues":    []string{"scene 3 has only 1 visual, minimum 2 required"},
			},
			expectTitle:    "Framecast - Quality Gate Failed",
			expectBody:     "🚧 reef-01 failed the quality gate\n- scene 3 has only 1 visual, minimum 2 required",
			expectTags:     "framecast,manifest,failed",
			expectPriority: "high",
		},
		{
			name:        "manifest passed",
			event:       notifications.EventManifestPassed,
			payload:     notifications.Payload{"projectId": "reef-01"},
			expectTitle: "Framecast - Ready to Render",
			expectBody:  "✅ reef-01 passed the quality gate",
			expectTags:  "framecast,manifest,passed",
		},
		{
			name:           "pipeline failed",
			event:          notifications.EventPipelineFailed,
			payload:        notifications.Payload{"projectId": "reef-01", "stage": "audio"},
			expectTitle:    "Framecast - Pipeline Failed",
			expectBody:     "Pipeline failed: reef-01 at audio",
			expectTags:     "framecast,pipeline,failed",
			expectPriority: "high",
		},
		{
			name:           "error",
			event:          notifications.EventError,
			payload:        notifications.Payload{"context": "scene.generate", "error": errors.New("boom")},
			expectTitle:    "Framecast - Error",
			expectBody:     "❌ Error with scene.generate: boom",
			expectTags:     "framecast,error,alert",
			expectPriority: "high",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv, got := newCaptureServer(t)
			cfg := config.Default()
			cfg.Notifications.NtfyTopic = srv.URL
			cfg.Notifications.QualityGate = true
			cfg.Notifications.Pipeline = true
			cfg.Notifications.Errors = true
			svc := notifications.NewService(&cfg)

			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("Publish: %v", err)
			}
			if len(*got) != 1 {
				t.Fatalf("expected 1 request, got %d", len(*got))
			}
			req := (*got)[0]
			if req.title != tc.expectTitle || req.body != tc.expectBody || req.tags != tc.expectTags || req.priority != tc.expectPriority {
				t.Fatalf("unexpected request %+v", req)
			}
		})
	}
}

func TestDisabledEventFamilyIsSkipped(t *testing.T) {
	srv, got := newCaptureServer(t)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	cfg.Notifications.Pipeline = false
	svc := notifications.NewService(&cfg)

	if err := svc.Publish(context.Background(), notifications.EventPipelineCompleted, notifications.Payload{"projectId": "p"}); err != nil {
		t.Fatal(err)
	}
	if len(*got) != 0 {
		t.Fatalf("expected no request, got %d", len(*got))
	}
}

func TestNtfyErrorStatusIsReported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "topic closed", http.StatusForbidden)
	}))
	defer srv.Close()
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	svc := notifications.NewService(&cfg)

	err := svc.Publish(context.Background(), notifications.EventTest, nil)
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected 403 error, got %v", err)
	}
}
