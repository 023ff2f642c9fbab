package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"framecast/internal/config"
	"framecast/internal/logging"
	"framecast/internal/manifest"
	"framecast/internal/notifications"
	"framecast/internal/queue"
	"framecast/internal/services"
	"framecast/internal/stage"
	"framecast/internal/stagedoc"
	"framecast/internal/textutil"
)

// RunOperation is the operation kind recorded for asynchronous runs.
const RunOperation = "pipeline.run"

// RunStatus is the outcome of a run request.
type RunStatus string

const (
	RunCompleted  RunStatus = "completed"
	RunAccepted   RunStatus = "processing"
	RunFailed     RunStatus = "failed"
	RunGateFailed RunStatus = "gate_failed"
)

// Step outcomes.
const (
	StepSucceeded = "succeeded"
	StepFailed    = "failed"
	StepSkipped   = "skipped"
)

// RunRequest starts a pipeline run. Options are keyed by stage name; Topic is
// shorthand for the topic stage's "topic" option.
type RunRequest struct {
	ProjectID string                   `json:"projectId"`
	Topic     string                   `json:"topic,omitempty"`
	Options   map[string]stage.Options `json:"options,omitempty"`
	Policy    manifest.Overrides       `json:"policy"`
	Async     bool                     `json:"async,omitempty"`
}

// StepResult records one step of a run.
type StepResult struct {
	Step       string         `json:"step"`
	Required   bool           `json:"required"`
	Status     string         `json:"status"`
	Summary    map[string]any `json:"summary,omitempty"`
	ErrorKind  string         `json:"errorKind,omitempty"`
	Message    string         `json:"message,omitempty"`
	DurationMS int64          `json:"durationMs"`
}

// RunResult reports a run. OperationID is set when the run was handed to the
// executor.
type RunResult struct {
	ProjectID   string             `json:"projectId"`
	Status      RunStatus          `json:"status"`
	OperationID string             `json:"operationId,omitempty"`
	Steps       []StepResult       `json:"steps"`
	Manifest    *manifest.Manifest `json:"manifest,omitempty"`
	Publish     *PublishResult     `json:"publish,omitempty"`
	DurationMS  int64              `json:"durationMs"`
}

// StageOutcome is the result of RunStage: either the finished stage result
// or the operation still running.
type StageOutcome struct {
	Result    *stage.Result
	Operation *queue.Operation
}

// Deps are the collaborators a Coordinator drives.
type Deps struct {
	Harness   *stage.Harness
	Adapters  *stage.Set
	Store     stage.ContextStore
	Gate      *manifest.Service
	Publisher Publisher
	Executor  *Executor
	Notifier  notifications.Service
}

// Options tune timing and failure policy.
type Options struct {
	// Budget is the synchronous time budget; zero disables handoff.
	Budget time.Duration
	Margin time.Duration
	// Optional lists step names whose failure does not abort a run.
	Optional []string
	Now      func() time.Time
}

// OptionsFromConfig reads the [pipeline] section.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Budget:   cfg.SyncBudget(),
		Margin:   cfg.SafetyMargin(),
		Optional: append([]string(nil), cfg.Pipeline.OptionalStages...),
	}
}

// Coordinator runs projects through the phases.
type Coordinator struct {
	deps     Deps
	budget   time.Duration
	margin   time.Duration
	optional map[string]bool
	now      func() time.Time
	logger   *slog.Logger
}

// NewCoordinator wires a coordinator.
func NewCoordinator(deps Deps, opts Options, logger *slog.Logger) *Coordinator {
	if deps.Notifier == nil {
		deps.Notifier = notifications.NewNoop()
	}
	optional := make(map[string]bool, len(opts.Optional))
	for _, name := range opts.Optional {
		optional[name] = true
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Coordinator{
		deps:     deps,
		budget:   opts.Budget,
		margin:   opts.Margin,
		optional: optional,
		now:      now,
		logger:   logging.NewComponentLogger(logger, "pipeline"),
	}
}

// Required reports whether a failure of step aborts the run. The manifest
// gate is always required.
func (c *Coordinator) Required(step Step) bool {
	if step.Kind == StepManifest {
		return true
	}
	return !c.optional[step.Name]
}

// Health reports every adapter's readiness.
func (c *Coordinator) Health(ctx context.Context) []stage.Health {
	if c.deps.Adapters == nil {
		return nil
	}
	return stage.CheckAll(ctx, c.deps.Adapters.All())
}

// Operation polls an asynchronous operation.
func (c *Coordinator) Operation(ctx context.Context, id string) (*queue.Operation, error) {
	return c.deps.Executor.Operation(ctx, id)
}

// Run executes every phase for req.ProjectID. When the synchronous budget
// runs short (or req.Async is set) the remaining phases move to the executor
// and the result carries the operation id with status processing.
func (c *Coordinator) Run(ctx context.Context, req RunRequest) (RunResult, error) {
	if err := textutil.ValidateProjectID(req.ProjectID); err != nil {
		return RunResult{}, services.Wrap(services.ErrValidation, "pipeline", "run", "", err)
	}
	req = normalizeRequest(req)
	started := c.now()
	ctx = services.WithProjectID(ctx, req.ProjectID)
	logger := logging.WithContext(ctx, c.logger)

	result := RunResult{ProjectID: req.ProjectID, Steps: []StepResult{}}
	phases := Phases()
	for i := range phases {
		if req.Async || c.shortOnBudget(started) {
			return c.handOff(ctx, req, phases, i, result, started)
		}
		logger.Debug("phase started",
			logging.Int("phase", i+1),
			logging.String("steps", phases[i].String()),
		)
		if err := c.runPhase(ctx, req, phases[i], &result); err != nil {
			return c.finish(ctx, &result, started, err)
		}
	}
	return c.finish(ctx, &result, started, nil)
}

func normalizeRequest(req RunRequest) RunRequest {
	options := make(map[string]stage.Options, len(req.Options)+1)
	for name, opts := range req.Options {
		options[name] = opts
	}
	if req.Topic != "" {
		topicOpts := stage.Options{}
		for k, v := range options[stagedoc.StageTopic.String()] {
			topicOpts[k] = v
		}
		topicOpts["topic"] = req.Topic
		options[stagedoc.StageTopic.String()] = topicOpts
	}
	req.Options = options
	return req
}

func (c *Coordinator) shortOnBudget(started time.Time) bool {
	if c.budget <= 0 {
		return false
	}
	remaining := c.budget - c.now().Sub(started)
	return remaining < c.margin
}

func (c *Coordinator) handOff(ctx context.Context, req RunRequest, phases []Phase, from int, partial RunResult, started time.Time) (RunResult, error) {
	if c.deps.Executor == nil {
		return RunResult{}, services.Wrap(services.ErrConfiguration, "pipeline", "handoff", "no executor configured", nil)
	}
	remaining := phases[from:]
	base := partial
	base.Steps = append([]StepResult(nil), partial.Steps...)
	handle, err := c.deps.Executor.Submit(ctx, RunOperation, req.ProjectID, req, func(ctx context.Context, progress func(string)) (any, error) {
		result := base
		asyncStart := c.now()
		for i, phase := range remaining {
			progress(fmt.Sprintf("phase %d/%d: %s", from+i+1, len(phases), phase))
			if err := c.runPhase(ctx, req, phase, &result); err != nil {
				out, finishErr := c.finish(ctx, &result, asyncStart, err)
				return out, finishErr
			}
		}
		return c.finish(ctx, &result, asyncStart, nil)
	})
	if err != nil {
		return RunResult{}, err
	}
	partial.Status = RunAccepted
	partial.OperationID = handle.Operation.ID
	partial.DurationMS = c.now().Sub(started).Milliseconds()
	logging.WithContext(ctx, c.logger).Info("pipeline handed off",
		logging.String(logging.FieldEventType, "pipeline_handoff"),
		logging.String(logging.FieldOperationID, handle.Operation.ID),
		logging.Int("remaining_phases", len(remaining)),
	)
	return partial, nil
}

func (c *Coordinator) finish(ctx context.Context, result *RunResult, started time.Time, runErr error) (RunResult, error) {
	result.DurationMS = c.now().Sub(started).Milliseconds()
	logger := logging.WithContext(ctx, c.logger)
	duration := time.Duration(result.DurationMS) * time.Millisecond

	if runErr == nil {
		result.Status = RunCompleted
		logger.Info("pipeline completed",
			logging.String(logging.FieldEventType, "pipeline_complete"),
			logging.Duration("duration", duration),
		)
		c.notify(ctx, notifications.EventPipelineCompleted, notifications.Payload{
			"projectId": result.ProjectID,
			"duration":  duration,
		})
		return *result, nil
	}

	result.Status = RunFailed
	if errors.Is(runErr, services.ErrQualityGate) {
		result.Status = RunGateFailed
	}
	failedStep := ""
	for _, step := range result.Steps {
		if step.Status == StepFailed && step.Required {
			failedStep = step.Step
			break
		}
	}
	logging.ErrorWithContext(logger, "pipeline failed", "pipeline_failure",
		logging.String("failed_step", failedStep),
		logging.String(logging.FieldErrorKind, string(services.KindOf(runErr))),
		logging.Error(runErr),
	)
	c.notify(ctx, notifications.EventPipelineFailed, notifications.Payload{
		"projectId": result.ProjectID,
		"stage":     failedStep,
	})
	return *result, runErr
}

func (c *Coordinator) notify(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if err := c.deps.Notifier.Publish(ctx, event, payload); err != nil {
		c.logger.Debug("pipeline notification failed", logging.Error(err))
	}
}

// runPhase runs the steps of phase concurrently and returns the first
// required failure in step order.
func (c *Coordinator) runPhase(ctx context.Context, req RunRequest, phase Phase, result *RunResult) error {
	outcomes := make([]StepResult, len(phase))
	errs := make([]error, len(phase))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i, step := range phase {
		wg.Add(1)
		go func() {
			defer wg.Done()
			started := c.now()
			summary, err := c.runStep(ctx, req, step, result, &mu)
			outcome := StepResult{
				Step:       step.Name,
				Required:   c.Required(step),
				Status:     StepSucceeded,
				Summary:    summary,
				DurationMS: c.now().Sub(started).Milliseconds(),
			}
			if err != nil {
				details := services.DetailsOf(err)
				outcome.Status = StepFailed
				outcome.ErrorKind = string(details.Kind)
				outcome.Message = details.Message
			}
			outcomes[i], errs[i] = outcome, err
		}()
	}
	wg.Wait()

	var firstRequired error
	for i, outcome := range outcomes {
		result.Steps = append(result.Steps, outcome)
		if errs[i] == nil {
			continue
		}
		if outcome.Required {
			if firstRequired == nil {
				firstRequired = errs[i]
			}
			continue
		}
		logging.WithContext(ctx, c.logger).Warn("optional step failed; continuing",
			logging.String("step", outcome.Step),
			logging.String(logging.FieldErrorKind, outcome.ErrorKind),
			logging.String(logging.FieldErrorHint, "the manifest gate reports any resulting gap"),
			logging.Error(errs[i]),
		)
	}
	return firstRequired
}

func (c *Coordinator) runStep(ctx context.Context, req RunRequest, step Step, result *RunResult, mu *sync.Mutex) (map[string]any, error) {
	switch step.Kind {
	case StepStage:
		adapter, ok := c.deps.Adapters.Get(step.Stage)
		if !ok {
			return nil, services.Wrap(services.ErrConfiguration, "pipeline", step.Name, "no adapter registered", nil)
		}
		res, err := c.deps.Harness.Run(ctx, adapter, stage.Request{ProjectID: req.ProjectID, Options: req.Options[step.Name]})
		if err != nil {
			return nil, err
		}
		return res.Summary, nil

	case StepManifest:
		m, err := c.deps.Gate.Build(ctx, req.ProjectID, req.Policy)
		if m.ProjectID != "" {
			mu.Lock()
			result.Manifest = &m
			mu.Unlock()
		}
		if err != nil {
			return nil, err
		}
		return map[string]any{"readyForRendering": m.ReadyForRendering, "issueCount": len(m.Issues)}, nil

	case StepPublish:
		mu.Lock()
		m := result.Manifest
		mu.Unlock()
		// The gate phase aborts on failure, so this guards direct misuse.
		if m == nil || !m.ReadyForRendering {
			return nil, services.Wrap(services.ErrQualityGate, "pipeline", "publish", "manifest has not passed", nil)
		}
		doc, err := c.deps.Store.Retrieve(ctx, req.ProjectID, stagedoc.StageAssembly)
		if err != nil {
			return nil, err
		}
		assembly, ok := doc.Payload.(stagedoc.Assembly)
		if !ok {
			return nil, services.Wrap(services.ErrFatal, "pipeline", "publish", "assembly document has unexpected payload", nil)
		}
		published, err := c.deps.Publisher.Publish(ctx, PublishRequest{ProjectID: req.ProjectID, Assembly: assembly, Manifest: *m})
		if err != nil {
			return nil, err
		}
		mu.Lock()
		result.Publish = &published
		mu.Unlock()
		return map[string]any{"publishedUri": published.PublishedURI, "copied": published.Copied}, nil
	}
	return nil, services.Wrap(services.ErrFatal, "pipeline", step.Name, "unknown step kind", nil)
}

// RunStage runs one stage through the executor and waits up to the budget
// minus the safety margin. If the stage is still running then, the outcome
// carries the operation to poll instead of a result.
func (c *Coordinator) RunStage(ctx context.Context, st stagedoc.StageType, req stage.Request) (StageOutcome, error) {
	adapter, ok := c.deps.Adapters.Get(st)
	if !ok {
		return StageOutcome{}, services.Wrap(services.ErrValidation, "pipeline", "stage",
			fmt.Sprintf("unknown stage %q", st), nil)
	}
	if err := textutil.ValidateProjectID(req.ProjectID); err != nil {
		return StageOutcome{}, services.Wrap(services.ErrValidation, st.String(), "generate", "", err)
	}
	if c.deps.Executor == nil {
		res, err := c.deps.Harness.Run(ctx, adapter, req)
		if err != nil {
			return StageOutcome{}, err
		}
		return StageOutcome{Result: &res}, nil
	}

	ctx = services.WithProjectID(ctx, req.ProjectID)
	handle, err := c.deps.Executor.Submit(ctx, stage.GenerateOperation(st), req.ProjectID, req.Options,
		func(ctx context.Context, _ func(string)) (any, error) {
			res, err := c.deps.Harness.Run(ctx, adapter, req)
			if err != nil {
				return nil, err
			}
			return res, nil
		})
	if err != nil {
		return StageOutcome{}, err
	}

	var timeout <-chan time.Time
	if c.budget > 0 {
		timer := time.NewTimer(max(c.budget-c.margin, 0))
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case <-handle.Done():
		value, err := handle.Result()
		if err != nil {
			return StageOutcome{}, err
		}
		res, _ := value.(stage.Result)
		return StageOutcome{Result: &res}, nil
	case <-timeout:
		return StageOutcome{Operation: handle.Operation}, nil
	case <-ctx.Done():
		return StageOutcome{Operation: handle.Operation}, ctx.Err()
	}
}
