package manifest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"framecast/internal/logging"
	"framecast/internal/schema"
	"framecast/internal/services"
	"framecast/internal/stage"
	"framecast/internal/stagedoc"
	"framecast/internal/textutil"
)

// Reader retrieves the current document for a project and stage.
type Reader interface {
	Retrieve(ctx context.Context, projectID string, stage stagedoc.StageType) (stagedoc.Document, error)
}

// collected lists the stages a manifest reads, in reporting order.
var collected = []stagedoc.StageType{
	stagedoc.StageTopic,
	stagedoc.StageScene,
	stagedoc.StageMedia,
	stagedoc.StageAudio,
}

// Builder computes manifests from stored documents.
type Builder struct {
	store    Reader
	registry *schema.Registry
	logger   *slog.Logger
	now      func() time.Time
}

// NewBuilder constructs a Builder. registry re-validates every document read.
func NewBuilder(store Reader, registry *schema.Registry, logger *slog.Logger) *Builder {
	if registry == nil {
		registry = schema.NewRegistry(schema.DefaultLimits())
	}
	return &Builder{
		store:    store,
		registry: registry,
		logger:   logging.NewComponentLogger(logger, "manifest"),
		now:      time.Now,
	}
}

// Build runs the gate for projectID. A failed gate is not an error: the
// returned manifest is FAILED and GateError reports it. Errors are returned
// only when documents cannot be read at all.
func (b *Builder) Build(ctx context.Context, projectID string, policy Policy) (Manifest, error) {
	if err := textutil.ValidateProjectID(projectID); err != nil {
		return Manifest{}, services.Wrap(services.ErrValidation, "manifest", "build", "", err)
	}
	if err := policy.Validate(); err != nil {
		return Manifest{}, err
	}
	ctx = services.WithStage(services.WithProjectID(ctx, projectID), "manifest")
	logger := logging.WithContext(ctx, b.logger)

	logger.Debug("manifest state", logging.String("state", string(StateCollecting)))
	snapshot, inputs, issues, err := b.collect(ctx, projectID)
	if err != nil {
		return Manifest{}, err
	}

	logger.Debug("manifest state", logging.String("state", string(StateValidating)))
	kpis, details := ComputeKPIs(inputs, policy)
	issues = append(issues, Evaluate(kpis, details, policy)...)

	m := Manifest{
		ProjectID:         projectID,
		KPIs:              kpis,
		Issues:            issues,
		ReadyForRendering: len(issues) == 0,
		Policy:            policy,
		Snapshot:          snapshot,
		BuiltAt:           b.now().UTC(),
	}
	if m.ReadyForRendering {
		m.State = StatePassed
		logger.Info("quality gate passed",
			logging.String(logging.FieldEventType, "quality_gate"),
			logging.String("state", string(m.State)),
			logging.Int("scene_count", len(details.Scenes)),
		)
	} else {
		m.State = StateFailed
		logger.Warn("quality gate failed",
			logging.String(logging.FieldEventType, "quality_gate"),
			logging.String("state", string(m.State)),
			logging.Int("issue_count", len(issues)),
			logging.Strings("issues", issues),
			logging.String(logging.FieldErrorHint, "relax the policy or rerun the named stage"),
			logging.Alert("quality_gate"),
		)
	}
	return m, nil
}

func (b *Builder) collect(ctx context.Context, projectID string) (Snapshot, Inputs, []string, error) {
	snapshot := Snapshot{}
	issues := []string{}
	var inputs Inputs
	for _, st := range collected {
		doc, err := b.store.Retrieve(ctx, projectID, st)
		switch {
		case errors.Is(err, services.ErrNotFound):
			issues = append(issues, stage.MissingContextIssue(st))
			continue
		case errors.Is(err, services.ErrValidation):
			issues = append(issues, fmt.Sprintf("%s context unreadable: %v", st, err))
			continue
		case err != nil:
			return nil, Inputs{}, nil, err
		}
		snapshot[st] = doc
		for _, v := range b.registry.Check(doc.Payload, doc.SchemaVersion) {
			issues = append(issues, fmt.Sprintf("%s context invalid: %s", st, v))
		}
		switch payload := doc.Payload.(type) {
		case stagedoc.Script:
			inputs.Script = &payload
		case stagedoc.Media:
			inputs.Media = &payload
		case stagedoc.Audio:
			inputs.Audio = &payload
		}
	}
	return snapshot, inputs, issues, nil
}
