package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"framecast/internal/pipeline"
	"framecast/internal/queue"
	"framecast/internal/services"
	"framecast/internal/testsupport"
)

func startExecutor(t *testing.T, workers int) (*pipeline.Executor, *queue.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenQueue(t, cfg)
	exec := pipeline.NewExecutor(store, workers, nil)
	if err := exec.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(exec.Stop)
	return exec, store
}

func waitDone(t *testing.T, h *pipeline.Handle) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("work did not finish")
	}
}

func TestExecutorRecordsResult(t *testing.T) {
	exec, store := startExecutor(t, 2)

	h, err := exec.Submit(context.Background(), "demo.generate", "p1", map[string]any{"n": 1},
		func(_ context.Context, progress func(string)) (any, error) {
			progress("halfway")
			return map[string]int{"scenes": 4}, nil
		})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if h.Operation.Status != queue.StatusPending {
		t.Fatalf("new operation status = %s", h.Operation.Status)
	}
	waitDone(t, h)

	op, err := store.Get(context.Background(), h.Operation.ID)
	if err != nil {
		t.Fatal(err)
	}
	if op.Status != queue.StatusSucceeded || op.CompletedAt.IsZero() {
		t.Fatalf("unexpected operation %+v", op)
	}
	var out map[string]int
	if err := json.Unmarshal(op.Result, &out); err != nil || out["scenes"] != 4 {
		t.Fatalf("result = %s (%v)", op.Result, err)
	}
}

func TestExecutorRecordsFailureKind(t *testing.T) {
	exec, store := startExecutor(t, 1)

	h, err := exec.Submit(context.Background(), "demo.generate", "p1", nil,
		func(context.Context, func(string)) (any, error) {
			return nil, services.Wrap(services.ErrValidation, "demo", "generate", "bad input", nil)
		})
	if err != nil {
		t.Fatal(err)
	}
	waitDone(t, h)
	if _, err := h.Result(); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("handle error = %v", err)
	}

	op, err := store.Get(context.Background(), h.Operation.ID)
	if err != nil {
		t.Fatal(err)
	}
	if op.Status != queue.StatusFailed || op.ErrorKind != string(services.KindValidation) {
		t.Fatalf("unexpected operation %+v", op)
	}
}

func TestExecutorRecoversPanics(t *testing.T) {
	exec, store := startExecutor(t, 1)

	h, err := exec.Submit(context.Background(), "demo.generate", "p1", nil,
		func(context.Context, func(string)) (any, error) {
			panic("boom")
		})
	if err != nil {
		t.Fatal(err)
	}
	waitDone(t, h)
	op, err := store.Get(context.Background(), h.Operation.ID)
	if err != nil {
		t.Fatal(err)
	}
	if op.Status != queue.StatusFailed {
		t.Fatalf("panicking work should fail the operation, got %s", op.Status)
	}

	// The worker survives and keeps serving.
	next, err := exec.Submit(context.Background(), "demo.generate", "p1", nil,
		func(context.Context, func(string)) (any, error) { return "ok", nil })
	if err != nil {
		t.Fatal(err)
	}
	waitDone(t, next)
	if v, err := next.Result(); err != nil || v != "ok" {
		t.Fatalf("result = %v, %v", v, err)
	}
}

func TestExecutorWorkOutlivesRequestContext(t *testing.T) {
	exec, _ := startExecutor(t, 1)

	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})
	h, err := exec.Submit(ctx, "demo.generate", "p1", nil,
		func(ctx context.Context, _ func(string)) (any, error) {
			select {
			case <-release:
				return "done", nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		})
	if err != nil {
		t.Fatal(err)
	}
	cancel()
	close(release)
	waitDone(t, h)
	if v, err := h.Result(); err != nil || v != "done" {
		t.Fatalf("work should ignore request cancellation: %v, %v", v, err)
	}
}

func TestExecutorStopCancelsWork(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenQueue(t, cfg)
	exec := pipeline.NewExecutor(store, 1, nil)
	if err := exec.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	started := make(chan struct{})
	h, err := exec.Submit(context.Background(), "demo.generate", "p1", nil,
		func(ctx context.Context, _ func(string)) (any, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		})
	if err != nil {
		t.Fatal(err)
	}
	<-started
	exec.Stop()
	waitDone(t, h)
	if _, err := h.Result(); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestExecutorStopFailsBacklog(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenQueue(t, cfg)
	exec := pipeline.NewExecutor(store, 1, nil)
	if err := exec.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	started := make(chan struct{})
	busy, err := exec.Submit(context.Background(), "demo.generate", "p1", nil,
		func(ctx context.Context, _ func(string)) (any, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		})
	if err != nil {
		t.Fatal(err)
	}
	<-started

	var queued []*pipeline.Handle
	for range 3 {
		h, err := exec.Submit(context.Background(), "demo.generate", "p1", nil,
			func(context.Context, func(string)) (any, error) {
				t.Error("queued work ran after Stop")
				return nil, nil
			})
		if err != nil {
			t.Fatal(err)
		}
		queued = append(queued, h)
	}

	exec.Stop()
	waitDone(t, busy)
	for _, h := range queued {
		waitDone(t, h)
		if _, err := h.Result(); !errors.Is(err, services.ErrTransient) {
			t.Fatalf("queued handle error = %v", err)
		}
		op, err := store.Get(context.Background(), h.Operation.ID)
		if err != nil {
			t.Fatal(err)
		}
		if op.Status != queue.StatusFailed || !strings.Contains(op.ErrorMessage, queue.DaemonStopReason) {
			t.Fatalf("unexpected abandoned operation %+v", op)
		}
	}
}

func TestExecutorRejectsSubmitWhenStopped(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenQueue(t, cfg)
	exec := pipeline.NewExecutor(store, 1, nil)

	work := func(context.Context, func(string)) (any, error) { return "ok", nil }
	if _, err := exec.Submit(context.Background(), "demo.generate", "p1", nil, work); !errors.Is(err, services.ErrTransient) {
		t.Fatalf("Submit before Start: %v", err)
	}
	if err := exec.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	exec.Stop()
	if _, err := exec.Submit(context.Background(), "demo.generate", "p1", nil, work); !errors.Is(err, services.ErrTransient) {
		t.Fatalf("Submit after Stop: %v", err)
	}

	ops, err := store.List(context.Background(), "p1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(ops) != 0 {
		t.Fatalf("rejected submissions left %d operations", len(ops))
	}
}
