package stage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"framecast/internal/contextstore"
	"framecast/internal/logging"
	"framecast/internal/notifications"
	"framecast/internal/retry"
	"framecast/internal/services"
	"framecast/internal/stagedoc"
	"framecast/internal/textutil"
)

// ContextStore is the persistence surface the harness needs.
type ContextStore interface {
	Store(ctx context.Context, projectID string, payload stagedoc.Payload) (contextstore.Head, error)
	Retrieve(ctx context.Context, projectID string, stage stagedoc.StageType) (stagedoc.Document, error)
}

// Result reports a completed stage run.
type Result struct {
	ProjectID string             `json:"projectId"`
	Stage     stagedoc.StageType `json:"stage"`
	Head      contextstore.Head  `json:"head"`
	Summary   map[string]any     `json:"summary"`
	Duration  time.Duration      `json:"duration"`
}

// Harness runs adapters against the context store.
type Harness struct {
	store    ContextStore
	retry    retry.Policy
	logger   *slog.Logger
	notifier notifications.Service
	now      func() time.Time
}

// NewHarness builds a harness. A nil notifier disables error notifications.
func NewHarness(store ContextStore, policy retry.Policy, notifier notifications.Service, logger *slog.Logger) *Harness {
	if notifier == nil {
		notifier = notifications.NewNoop()
	}
	return &Harness{
		store:    store,
		retry:    policy,
		logger:   logging.NewComponentLogger(logger, "stage"),
		notifier: notifier,
		now:      time.Now,
	}
}

// Run loads the adapter's upstream documents, generates its payload, and
// stores it. The stored head is returned as part of the result.
func (h *Harness) Run(ctx context.Context, adapter Adapter, req Request) (Result, error) {
	if adapter == nil {
		return Result{}, services.Wrap(services.ErrConfiguration, "stage", "run", "adapter unavailable", nil)
	}
	stageName := adapter.Stage().String()
	if err := textutil.ValidateProjectID(req.ProjectID); err != nil {
		return Result{}, services.Wrap(services.ErrValidation, stageName, "run", "", err)
	}

	stageCtx := services.WithStage(services.WithProjectID(ctx, req.ProjectID), stageName)
	logger := logging.WithContext(stageCtx, h.logger)
	started := h.now()

	logger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.Int("option_count", len(req.Options)),
	)

	upstream, err := h.loadUpstream(stageCtx, adapter, req.ProjectID)
	if err != nil {
		return Result{}, h.fail(stageCtx, logger, stageName, err)
	}

	var payload stagedoc.Payload
	err = h.retry.Do(stageCtx, func(ctx context.Context) error {
		var genErr error
		payload, genErr = adapter.Generate(ctx, req, upstream)
		return genErr
	})
	if err != nil {
		return Result{}, h.fail(stageCtx, logger, stageName, err)
	}
	if payload == nil || payload.StageType() != adapter.Stage() {
		err := services.Wrap(services.ErrFatal, stageName, "generate",
			fmt.Sprintf("adapter returned %s payload", payloadStage(payload)), nil)
		return Result{}, h.fail(stageCtx, logger, stageName, err)
	}

	head, err := h.store.Store(stageCtx, req.ProjectID, payload)
	if err != nil {
		return Result{}, h.fail(stageCtx, logger, stageName, err)
	}

	result := Result{
		ProjectID: req.ProjectID,
		Stage:     adapter.Stage(),
		Head:      head,
		Summary:   stagedoc.Summary(payload),
		Duration:  h.now().Sub(started),
	}
	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("storage_tier", string(head.StorageTier)),
		logging.Int("size_bytes", head.SizeBytes),
		logging.Bool("compressed", head.Compressed),
		logging.Duration("duration", result.Duration),
	)
	return result, nil
}

func (h *Harness) loadUpstream(ctx context.Context, adapter Adapter, projectID string) (Upstream, error) {
	required := adapter.Requires()
	docs := make([]stagedoc.Document, 0, len(required))
	for _, dep := range required {
		doc, err := h.store.Retrieve(ctx, projectID, dep)
		if errors.Is(err, services.ErrNotFound) {
			return Upstream{}, services.Wrap(services.ErrNotFound, adapter.Stage().String(), "load upstream",
				MissingContextIssue(dep), err)
		}
		if err != nil {
			return Upstream{}, err
		}
		docs = append(docs, doc)
	}
	if opt, ok := adapter.(OptionalInputs); ok {
		for _, dep := range opt.Optional() {
			doc, err := h.store.Retrieve(ctx, projectID, dep)
			if errors.Is(err, services.ErrNotFound) {
				continue
			}
			if err != nil {
				return Upstream{}, err
			}
			docs = append(docs, doc)
		}
	}
	return NewUpstream(docs...), nil
}

// MissingContextIssue is the actionable message for an absent upstream document.
func MissingContextIssue(stage stagedoc.StageType) string {
	return fmt.Sprintf("%s context missing: run %s first", stage, GenerateOperation(stage))
}

// GenerateOperation names the API operation that produces stage's document.
func GenerateOperation(stage stagedoc.StageType) string {
	return stage.String() + ".generate"
}

func (h *Harness) fail(ctx context.Context, logger *slog.Logger, stageName string, err error) error {
	details := services.DetailsOf(err)
	message := strings.TrimSpace(details.Message)
	if message == "" {
		message = "stage failed"
	}
	logging.ErrorWithContext(logger, "stage failed", "stage_failure",
		logging.String(logging.FieldErrorKind, string(details.Kind)),
		logging.String(logging.FieldErrorHint, hintFor(details.Kind)),
		logging.String("error_message", message),
		logging.Error(err),
	)
	// Validation and not-found failures are answered to the caller directly.
	if details.Kind == services.KindFatal || details.Kind == services.KindTransient {
		if notifyErr := h.notifier.Publish(ctx, notifications.EventError, notifications.Payload{
			"error":   err,
			"context": GenerateOperation(stagedoc.StageType(stageName)),
		}); notifyErr != nil {
			logger.Debug("stage error notification failed", logging.Error(notifyErr))
		}
	}
	return err
}

func hintFor(kind services.ErrorKind) string {
	switch kind {
	case services.KindValidation:
		return "fix the stage input or adapter output and rerun"
	case services.KindNotFound:
		return "run the missing upstream stage first"
	case services.KindTransient:
		return "retry later; the failure may clear on its own"
	case services.KindConfiguration:
		return "check config.toml"
	default:
		return "check logs for details"
	}
}

func payloadStage(p stagedoc.Payload) string {
	if p == nil {
		return "no"
	}
	return "a " + p.StageType().String()
}
