package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"framecast/internal/config"
	"framecast/internal/manifest"
	"framecast/internal/notifications"
	"framecast/internal/pipeline"
	"framecast/internal/queue"
	"framecast/internal/services"
	"framecast/internal/stage"
	"framecast/internal/stagedoc"
	"framecast/internal/testsupport"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingNotifier) has(event notifications.Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e == event {
			return true
		}
	}
	return false
}

func openRuntime(t *testing.T, cfg *config.Config) (*pipeline.Runtime, *recordingNotifier) {
	t.Helper()
	notifier := &recordingNotifier{}
	rt, err := pipeline.Open(context.Background(), cfg, notifier, nil)
	if err != nil {
		t.Fatalf("pipeline.Open: %v", err)
	}
	if err := rt.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })
	return rt, notifier
}

func allowPlaceholders() manifest.Overrides {
	yes := true
	return manifest.Overrides{AllowPlaceholders: &yes}
}

func waitForOperation(t *testing.T, rt *pipeline.Runtime, id string) *queue.Operation {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		op, err := rt.Coordinator.Operation(context.Background(), id)
		if err != nil {
			t.Fatalf("Operation: %v", err)
		}
		if op.Status.Terminal() {
			return op
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("operation %s did not finish", id)
	return nil
}

func TestRunCompletesAndPublishes(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	rt, notifier := openRuntime(t, cfg)

	result, err := rt.Coordinator.Run(context.Background(), pipeline.RunRequest{
		ProjectID: "reef-doc",
		Topic:     "coral reef ecosystems",
		Policy:    allowPlaceholders(),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Status != pipeline.RunCompleted {
		t.Fatalf("status = %s", result.Status)
	}
	if len(result.Steps) != 7 {
		t.Fatalf("expected 7 steps, got %d: %+v", len(result.Steps), result.Steps)
	}
	for _, step := range result.Steps {
		if step.Status != pipeline.StepSucceeded {
			t.Fatalf("step %s = %s (%s)", step.Step, step.Status, step.Message)
		}
	}
	if result.Manifest == nil || !result.Manifest.ReadyForRendering {
		t.Fatalf("expected passing manifest, got %+v", result.Manifest)
	}
	if result.Publish == nil {
		t.Fatal("expected publish result")
	}
	receipt := filepath.Join(cfg.PublishDir(), "reef-doc", pipeline.ReceiptName)
	if _, err := os.Stat(receipt); err != nil {
		t.Fatalf("expected publish receipt: %v", err)
	}
	if !notifier.has(notifications.EventPipelineCompleted) {
		t.Fatal("expected completion notification")
	}
}

func TestRunStopsAtFailedGate(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	rt, notifier := openRuntime(t, cfg)

	result, err := rt.Coordinator.Run(context.Background(), pipeline.RunRequest{
		ProjectID: "reef-doc",
		Topic:     "coral reef ecosystems",
	})
	if !errors.Is(err, services.ErrQualityGate) {
		t.Fatalf("expected quality gate error, got %v", err)
	}
	if result.Status != pipeline.RunGateFailed || result.Manifest == nil || len(result.Manifest.Issues) == 0 {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Publish != nil {
		t.Fatal("publish must not run after a failed gate")
	}
	for _, step := range result.Steps {
		if step.Step == "publish" {
			t.Fatal("publish step must not be attempted")
		}
	}
	if _, err := os.Stat(filepath.Join(cfg.PublishDir(), "reef-doc")); !os.IsNotExist(err) {
		t.Fatalf("no publish output expected, stat err = %v", err)
	}
	if !notifier.has(notifications.EventQualityGateFailed) || !notifier.has(notifications.EventPipelineFailed) {
		t.Fatalf("expected gate and pipeline failure notifications, got %v", notifier.events)
	}
}

func TestRequiredFailureAbortsRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	rt, _ := openRuntime(t, cfg)

	result, err := rt.Coordinator.Run(context.Background(), pipeline.RunRequest{ProjectID: "p1"})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error from topic, got %v", err)
	}
	if result.Status != pipeline.RunFailed || len(result.Steps) != 1 || result.Steps[0].Step != "topic" {
		t.Fatalf("run should stop after the topic phase: %+v", result)
	}
	if _, err := rt.Contexts.Head(context.Background(), "p1", stagedoc.StageScene); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("scene must not run, got %v", err)
	}
}

type failingAdapter struct {
	st       stagedoc.StageType
	requires []stagedoc.StageType
}

func (f failingAdapter) Stage() stagedoc.StageType { return f.st }
func (f failingAdapter) Requires() []stagedoc.StageType { return f.requires }
func (f failingAdapter) HealthCheck(context.Context) stage.Health { return stage.Unhealthy(f.st.String(), "down") }
func (f failingAdapter) Generate(context.Context, stage.Request, stage.Upstream) (stagedoc.Payload, error) {
	return nil, services.Wrap(services.ErrFatal, f.st.String(), "generate", "collaborator unavailable", nil)
}

func TestOptionalFailureContinuesToGate(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	rt, _ := openRuntime(t, cfg)

	adapters := []stage.Adapter{}
	for _, a := range rt.Adapters.All() {
		if a.Stage() == stagedoc.StageMedia {
			a = failingAdapter{st: stagedoc.StageMedia, requires: []stagedoc.StageType{stagedoc.StageScene}}
		}
		adapters = append(adapters, a)
	}
	set, err := stage.NewSet(adapters...)
	if err != nil {
		t.Fatal(err)
	}
	coordinator := pipeline.NewCoordinator(pipeline.Deps{
		Harness:   rt.Harness,
		Adapters:  set,
		Store:     rt.Contexts,
		Gate:      rt.Gate,
		Publisher: pipeline.LocalPublisher{Dir: cfg.PublishDir()},
		Executor:  rt.Executor,
	}, pipeline.Options{Optional: []string{"media"}}, nil)

	result, err := coordinator.Run(context.Background(), pipeline.RunRequest{
		ProjectID: "p1",
		Topic:     "volcanoes",
		Policy:    allowPlaceholders(),
	})
	if !errors.Is(err, services.ErrQualityGate) {
		t.Fatalf("expected the gate to report missing media, got %v", err)
	}
	var media, assembly *pipeline.StepResult
	for i := range result.Steps {
		switch result.Steps[i].Step {
		case "media":
			media = &result.Steps[i]
		case "assembly":
			assembly = &result.Steps[i]
		}
	}
	if media == nil || media.Status != pipeline.StepFailed || media.Required {
		t.Fatalf("media should be an optional failure: %+v", media)
	}
	if assembly == nil || assembly.Status != pipeline.StepSucceeded {
		t.Fatalf("assembly should run without media: %+v", assembly)
	}
	found := false
	for _, issue := range result.Manifest.Issues {
		if issue == stage.MissingContextIssue(stagedoc.StageMedia) {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected missing media issue, got %v", result.Manifest.Issues)
	}
}

func TestAsyncRunReturnsOperation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	rt, _ := openRuntime(t, cfg)

	result, err := rt.Coordinator.Run(context.Background(), pipeline.RunRequest{
		ProjectID: "p1",
		Topic:     "tidal pools",
		Policy:    allowPlaceholders(),
		Async:     true,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Status != pipeline.RunAccepted || result.OperationID == "" || len(result.Steps) != 0 {
		t.Fatalf("expected accepted run, got %+v", result)
	}

	op := waitForOperation(t, rt, result.OperationID)
	if op.Status != queue.StatusSucceeded || op.Kind != pipeline.RunOperation {
		t.Fatalf("unexpected operation %+v", op)
	}
	var final pipeline.RunResult
	if err := json.Unmarshal(op.Result, &final); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if final.Status != pipeline.RunCompleted || len(final.Steps) != 7 {
		t.Fatalf("unexpected async result %+v", final)
	}
}

type steppingClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.step)
	return c.now
}

func TestRunHandsOffWhenBudgetRunsShort(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	rt, _ := openRuntime(t, cfg)
	clock := &steppingClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), step: 10 * time.Second}

	coordinator := pipeline.NewCoordinator(pipeline.Deps{
		Harness:   rt.Harness,
		Adapters:  rt.Adapters,
		Store:     rt.Contexts,
		Gate:      rt.Gate,
		Publisher: pipeline.LocalPublisher{Dir: cfg.PublishDir()},
		Executor:  rt.Executor,
	}, pipeline.Options{Budget: 25 * time.Second, Margin: 5 * time.Second, Now: clock.Now}, nil)

	result, err := coordinator.Run(context.Background(), pipeline.RunRequest{
		ProjectID: "p1",
		Topic:     "glaciers",
		Policy:    allowPlaceholders(),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Status != pipeline.RunAccepted || result.OperationID == "" {
		t.Fatalf("expected handoff, got %+v", result)
	}
	if len(result.Steps) != 1 || result.Steps[0].Step != "topic" {
		t.Fatalf("expected only the topic phase to run synchronously, got %+v", result.Steps)
	}

	op := waitForOperation(t, rt, result.OperationID)
	if op.Status != queue.StatusSucceeded {
		t.Fatalf("async remainder failed: %+v", op)
	}
	var final pipeline.RunResult
	if err := json.Unmarshal(op.Result, &final); err != nil {
		t.Fatal(err)
	}
	if len(final.Steps) != 7 || final.Steps[0].Step != "topic" {
		t.Fatalf("async result should include the synchronous steps: %+v", final.Steps)
	}
}

func TestRunStageReturnsResult(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	rt, _ := openRuntime(t, cfg)

	outcome, err := rt.Coordinator.RunStage(context.Background(), stagedoc.StageTopic, stage.Request{
		ProjectID: "p1",
		Options:   stage.Options{"topic": "deep sea vents"},
	})
	if err != nil {
		t.Fatalf("RunStage: %v", err)
	}
	if outcome.Result == nil || outcome.Result.Stage != stagedoc.StageTopic || outcome.Operation != nil {
		t.Fatalf("unexpected outcome %+v", outcome)
	}

	_, err = rt.Coordinator.RunStage(context.Background(), stagedoc.StageScene, stage.Request{ProjectID: "missing-topic"})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found for missing upstream, got %v", err)
	}
}

type blockingAdapter struct {
	release chan struct{}
}

func (b blockingAdapter) Stage() stagedoc.StageType { return stagedoc.StageTopic }
func (b blockingAdapter) Requires() []stagedoc.StageType { return nil }
func (b blockingAdapter) HealthCheck(context.Context) stage.Health { return stage.Healthy("topic") }
func (b blockingAdapter) Generate(ctx context.Context, _ stage.Request, _ stage.Upstream) (stagedoc.Payload, error) {
	select {
	case <-b.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return stagedoc.Topic{Topic: "slow", Keywords: []string{"slow"}, TargetDurationSeconds: 60}, nil
}

func TestRunStageAcceptsSlowWork(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	rt, _ := openRuntime(t, cfg)
	release := make(chan struct{})
	set, err := stage.NewSet(blockingAdapter{release: release})
	if err != nil {
		t.Fatal(err)
	}
	coordinator := pipeline.NewCoordinator(pipeline.Deps{
		Harness:  rt.Harness,
		Adapters: set,
		Store:    rt.Contexts,
		Gate:     rt.Gate,
		Executor: rt.Executor,
	}, pipeline.Options{Budget: 20 * time.Millisecond, Margin: 10 * time.Millisecond}, nil)

	outcome, err := coordinator.RunStage(context.Background(), stagedoc.StageTopic, stage.Request{ProjectID: "p1"})
	if err != nil {
		t.Fatalf("RunStage: %v", err)
	}
	if outcome.Operation == nil || outcome.Result != nil {
		t.Fatalf("expected accepted operation, got %+v", outcome)
	}
	close(release)

	op := waitForOperation(t, rt, outcome.Operation.ID)
	if op.Status != queue.StatusSucceeded || op.Kind != "topic.generate" {
		t.Fatalf("unexpected operation %+v", op)
	}
}

func TestRunRejectsBadProjectID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	rt, _ := openRuntime(t, cfg)
	if _, err := rt.Coordinator.Run(context.Background(), pipeline.RunRequest{ProjectID: "../escape"}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
