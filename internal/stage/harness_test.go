package stage_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"framecast/internal/contextstore"
	"framecast/internal/retry"
	"framecast/internal/services"
	"framecast/internal/stage"
	"framecast/internal/stagedoc"
	"framecast/internal/stagedoc/stagedoctest"
)

type memoryStore struct {
	docs map[stagedoc.StageType]stagedoc.Payload
}

func newMemoryStore() *memoryStore {
	return &memoryStore{docs: map[stagedoc.StageType]stagedoc.Payload{}}
}

func (m *memoryStore) Store(_ context.Context, projectID string, payload stagedoc.Payload) (contextstore.Head, error) {
	m.docs[payload.StageType()] = payload
	return contextstore.Head{ProjectID: projectID, StageType: payload.StageType(), StorageTier: stagedoc.TierInline}, nil
}

func (m *memoryStore) Retrieve(_ context.Context, projectID string, st stagedoc.StageType) (stagedoc.Document, error) {
	payload, ok := m.docs[st]
	if !ok {
		return stagedoc.Document{}, services.Wrap(services.ErrNotFound, st.String(), "retrieve", "missing", nil)
	}
	return stagedoc.Document{ProjectID: projectID, StageType: st, Payload: payload}, nil
}

type fakeAdapter struct {
	stage    stagedoc.StageType
	requires []stagedoc.StageType
	generate func(context.Context, stage.Request, stage.Upstream) (stagedoc.Payload, error)
	calls    int
}

func (f *fakeAdapter) Stage() stagedoc.StageType      { return f.stage }
func (f *fakeAdapter) Requires() []stagedoc.StageType { return f.requires }

func (f *fakeAdapter) HealthCheck(context.Context) stage.Health {
	return stage.Healthy(f.stage.String())
}

func (f *fakeAdapter) Generate(ctx context.Context, req stage.Request, up stage.Upstream) (stagedoc.Payload, error) {
	f.calls++
	return f.generate(ctx, req, up)
}

func fastRetry() retry.Policy {
	return retry.Policy{MaxAttempts: 3}.WithSleeper(func(context.Context, time.Duration) error { return nil })
}

func TestRunStoresPayloadAndSummarizes(t *testing.T) {
	store := newMemoryStore()
	store.docs[stagedoc.StageTopic] = stagedoctest.Topic("reefs")
	adapter := &fakeAdapter{
		stage:    stagedoc.StageScene,
		requires: []stagedoc.StageType{stagedoc.StageTopic},
		generate: func(_ context.Context, _ stage.Request, up stage.Upstream) (stagedoc.Payload, error) {
			topic, ok := up.Topic()
			if !ok || topic.Topic != "reefs" {
				t.Fatalf("upstream topic not provided: %+v", topic)
			}
			return stagedoctest.Script(3), nil
		},
	}
	h := stage.NewHarness(store, fastRetry(), nil, nil)

	result, err := h.Run(context.Background(), adapter, stage.Request{ProjectID: "p1"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Stage != stagedoc.StageScene || result.Summary["sceneCount"] != 3 {
		t.Fatalf("unexpected result %+v", result)
	}
	if _, ok := store.docs[stagedoc.StageScene]; !ok {
		t.Fatal("expected scene payload to be stored")
	}
}

func TestRunReportsMissingUpstream(t *testing.T) {
	adapter := &fakeAdapter{
		stage:    stagedoc.StageAudio,
		requires: []stagedoc.StageType{stagedoc.StageScene},
	}
	h := stage.NewHarness(newMemoryStore(), fastRetry(), nil, nil)

	_, err := h.Run(context.Background(), adapter, stage.Request{ProjectID: "p1"})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if !strings.Contains(err.Error(), "scene context missing: run scene.generate first") {
		t.Fatalf("expected actionable message, got %q", err.Error())
	}
	if adapter.calls != 0 {
		t.Fatal("Generate must not run without upstream documents")
	}
}

func TestRunRetriesTransientGenerateFailures(t *testing.T) {
	attempts := 0
	adapter := &fakeAdapter{
		stage: stagedoc.StageTopic,
		generate: func(context.Context, stage.Request, stage.Upstream) (stagedoc.Payload, error) {
			attempts++
			if attempts < 3 {
				return nil, services.Wrap(services.ErrTransient, "topic", "generate", "model busy", nil)
			}
			return stagedoctest.Topic("tides"), nil
		},
	}
	h := stage.NewHarness(newMemoryStore(), fastRetry(), nil, nil)

	if _, err := h.Run(context.Background(), adapter, stage.Request{ProjectID: "p1"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestRunDoesNotRetryValidation(t *testing.T) {
	adapter := &fakeAdapter{
		stage: stagedoc.StageTopic,
		generate: func(context.Context, stage.Request, stage.Upstream) (stagedoc.Payload, error) {
			return nil, services.Wrap(services.ErrValidation, "topic", "generate", "topic option required", nil)
		},
	}
	h := stage.NewHarness(newMemoryStore(), fastRetry(), nil, nil)

	_, err := h.Run(context.Background(), adapter, stage.Request{ProjectID: "p1"})
	if services.KindOf(err) != services.KindValidation {
		t.Fatalf("expected validation, got %v", err)
	}
	if adapter.calls != 1 {
		t.Fatalf("expected one call, got %d", adapter.calls)
	}
}

func TestRunRejectsMismatchedPayload(t *testing.T) {
	adapter := &fakeAdapter{
		stage: stagedoc.StageMedia,
		generate: func(context.Context, stage.Request, stage.Upstream) (stagedoc.Payload, error) {
			return stagedoctest.Topic("wrong"), nil
		},
	}
	h := stage.NewHarness(newMemoryStore(), fastRetry(), nil, nil)
	_, err := h.Run(context.Background(), adapter, stage.Request{ProjectID: "p1"})
	if services.KindOf(err) != services.KindFatal {
		t.Fatalf("expected fatal, got %v", err)
	}
}

func TestRunRejectsBadProjectID(t *testing.T) {
	h := stage.NewHarness(newMemoryStore(), fastRetry(), nil, nil)
	_, err := h.Run(context.Background(), &fakeAdapter{stage: stagedoc.StageTopic}, stage.Request{ProjectID: "a/b"})
	if services.KindOf(err) != services.KindValidation {
		t.Fatalf("expected validation, got %v", err)
	}
}

func TestOptionsAccessors(t *testing.T) {
	opts := stage.Options{
		"voice":    " warm ",
		"duration": float64(90),
		"scenes":   4,
		"strict":   true,
		"keywords": []any{"a", " ", "b"},
	}
	if opts.String("voice", "x") != "warm" || opts.String("missing", "x") != "x" {
		t.Fatal("String accessor")
	}
	if opts.Float("duration", 0) != 90 || opts.Int("scenes", 0) != 4 {
		t.Fatal("numeric accessors")
	}
	if !opts.Bool("strict", false) || opts.Bool("missing", true) != true {
		t.Fatal("Bool accessor")
	}
	if got := opts.Strings("keywords"); len(got) != 2 || got[1] != "b" {
		t.Fatalf("Strings accessor = %v", got)
	}
}

func TestSetOrdersAdaptersAndRejectsDuplicates(t *testing.T) {
	set, err := stage.NewSet(
		&fakeAdapter{stage: stagedoc.StageAudio},
		&fakeAdapter{stage: stagedoc.StageTopic},
	)
	if err != nil {
		t.Fatal(err)
	}
	all := set.All()
	if all[0].Stage() != stagedoc.StageTopic || all[1].Stage() != stagedoc.StageAudio {
		t.Fatalf("unexpected order %v, %v", all[0].Stage(), all[1].Stage())
	}
	if _, err := stage.NewSet(&fakeAdapter{stage: stagedoc.StageTopic}, &fakeAdapter{stage: stagedoc.StageTopic}); err == nil {
		t.Fatal("expected duplicate error")
	}
	health := stage.CheckAll(context.Background(), all)
	if len(health) != 2 || !health[0].Ready {
		t.Fatalf("unexpected health %+v", health)
	}
}

type optionalAdapter struct {
	fakeAdapter
	optional []stagedoc.StageType
}

func (o *optionalAdapter) Optional() []stagedoc.StageType { return o.optional }

func TestRunLoadsOptionalUpstreamWhenPresent(t *testing.T) {
	store := newMemoryStore()
	script := stagedoctest.Script(2)
	store.docs[stagedoc.StageScene] = script
	store.docs[stagedoc.StageAudio] = stagedoctest.Audio(script)

	var sawMedia bool
	adapter := &optionalAdapter{
		fakeAdapter: fakeAdapter{
			stage:    stagedoc.StageAssembly,
			requires: []stagedoc.StageType{stagedoc.StageScene, stagedoc.StageAudio},
			generate: func(_ context.Context, _ stage.Request, up stage.Upstream) (stagedoc.Payload, error) {
				_, sawMedia = up.Media()
				return stagedoc.Assembly{
					OutputURI:       "file:///out.mp4",
					DurationSeconds: 15,
					Timeline:        []stagedoc.TimelineEntry{{SceneIndex: 1, StartSeconds: 0, EndSeconds: 15}},
				}, nil
			},
		},
		optional: []stagedoc.StageType{stagedoc.StageMedia},
	}
	h := stage.NewHarness(store, fastRetry(), nil, nil)

	if _, err := h.Run(context.Background(), adapter, stage.Request{ProjectID: "p1"}); err != nil {
		t.Fatalf("Run without optional media: %v", err)
	}
	if sawMedia {
		t.Fatal("media should be absent")
	}

	store.docs[stagedoc.StageMedia] = stagedoctest.Media(2, 2)
	if _, err := h.Run(context.Background(), adapter, stage.Request{ProjectID: "p1"}); err != nil {
		t.Fatal(err)
	}
	if !sawMedia {
		t.Fatal("expected optional media to be loaded")
	}
}
