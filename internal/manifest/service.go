package manifest

import (
	"context"
	"log/slog"

	"framecast/internal/logging"
	"framecast/internal/notifications"
)

// Service builds, persists, and announces manifests.
type Service struct {
	builder  *Builder
	repo     *Repository
	presets  *Presets
	notifier notifications.Service
	logger   *slog.Logger
}

// NewService wires the gate. presets resolves caller policy overrides; a nil
// notifier disables notifications.
func NewService(builder *Builder, repo *Repository, presets *Presets, notifier notifications.Service, logger *slog.Logger) *Service {
	if presets == nil {
		presets = &Presets{base: DefaultPolicy(), entries: map[string]Policy{}}
	}
	if notifier == nil {
		notifier = notifications.NewNoop()
	}
	return &Service{
		builder:  builder,
		repo:     repo,
		presets:  presets,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "manifest"),
	}
}

// Policy resolves overrides against the configured presets.
func (s *Service) Policy(o Overrides) (Policy, error) {
	return s.presets.Resolve(o)
}

// Build evaluates the gate and saves the manifest. The manifest is returned
// together with GateError when the gate fails.
func (s *Service) Build(ctx context.Context, projectID string, o Overrides) (Manifest, error) {
	policy, err := s.presets.Resolve(o)
	if err != nil {
		return Manifest{}, err
	}
	m, err := s.builder.Build(ctx, projectID, policy)
	if err != nil {
		return Manifest{}, err
	}
	if err := s.repo.Save(m); err != nil {
		return Manifest{}, err
	}

	event := notifications.EventManifestPassed
	payload := notifications.Payload{"projectId": projectID}
	if !m.ReadyForRendering {
		event = notifications.EventQualityGateFailed
		payload["issues"] = m.Issues
	}
	if notifyErr := s.notifier.Publish(ctx, event, payload); notifyErr != nil {
		s.logger.Debug("manifest notification failed", logging.Error(notifyErr))
	}
	return m, GateError(m)
}

// Latest loads the most recent manifest for projectID.
func (s *Service) Latest(projectID string) (Manifest, error) {
	return s.repo.Load(projectID)
}
