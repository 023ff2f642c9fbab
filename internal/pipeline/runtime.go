package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"framecast/internal/assembly"
	"framecast/internal/config"
	"framecast/internal/contextstore"
	"framecast/internal/logging"
	"framecast/internal/manifest"
	"framecast/internal/media"
	"framecast/internal/narration"
	"framecast/internal/notifications"
	"framecast/internal/queue"
	"framecast/internal/retry"
	"framecast/internal/schema"
	"framecast/internal/script"
	"framecast/internal/stage"
	"framecast/internal/topic"
)

// Runtime owns every long-lived component built from a config.
type Runtime struct {
	Config      *config.Config
	Contexts    *contextstore.Store
	Queue       *queue.Store
	Adapters    *stage.Set
	Harness     *stage.Harness
	Gate        *manifest.Service
	Executor    *Executor
	Coordinator *Coordinator
	Notifier    notifications.Service
}

// Open builds the runtime. A nil notifier uses the configured ntfy service.
func Open(ctx context.Context, cfg *config.Config, notifier notifications.Service, logger *slog.Logger) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}

	contexts, err := contextstore.OpenFromConfig(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open context store: %w", err)
	}
	ops, err := queue.OpenFromConfig(ctx, cfg)
	if err != nil {
		_ = contexts.Close()
		return nil, fmt.Errorf("open operations queue: %w", err)
	}

	limits := schema.LimitsFromConfig(cfg)
	adapters, err := stage.NewSet(
		topic.New(nil, logger),
		script.New(nil, limits, logger),
		media.New(nil, cfg.Paths.MediaLibraryDir, 0, logger),
		narration.New(nil, cfg.ProjectsDir(), cfg.Narration.Voice, cfg.Narration.WordsPerMinute, logger),
		assembly.New(nil, cfg.ProjectsDir(), logger),
	)
	if err != nil {
		_ = ops.Close()
		_ = contexts.Close()
		return nil, err
	}

	base := manifest.PolicyFromConfig(cfg)
	presets, err := manifest.LoadPresets(cfg.Policy.PolicyFile, base)
	if err != nil {
		_ = ops.Close()
		_ = contexts.Close()
		return nil, err
	}

	harness := stage.NewHarness(contexts, retry.FromConfig(cfg), notifier, logger)
	gate := manifest.NewService(
		manifest.NewBuilder(contexts, contexts.Registry(), logger),
		manifest.NewRepository(cfg.ProjectsDir()),
		presets,
		notifier,
		logger,
	)
	executor := NewExecutor(ops, cfg.Pipeline.AsyncWorkers, logger)
	coordinator := NewCoordinator(Deps{
		Harness:   harness,
		Adapters:  adapters,
		Store:     contexts,
		Gate:      gate,
		Publisher: LocalPublisher{Dir: cfg.PublishDir()},
		Executor:  executor,
		Notifier:  notifier,
	}, OptionsFromConfig(cfg), logger)

	return &Runtime{
		Config:      cfg,
		Contexts:    contexts,
		Queue:       ops,
		Adapters:    adapters,
		Harness:     harness,
		Gate:        gate,
		Executor:    executor,
		Coordinator: coordinator,
		Notifier:    notifier,
	}, nil
}

// Start starts the executor. Operations owned by another process sharing
// the queue are left alone; see FailInterrupted.
func (r *Runtime) Start(ctx context.Context) error {
	return r.Executor.Start(ctx)
}

// FailInterrupted fails operations a previous daemon left pending or
// running. Only the holder of the daemon lock may call it: any other
// process would fail work the live daemon is still executing.
func (r *Runtime) FailInterrupted(ctx context.Context) (int64, error) {
	return r.Queue.FailInterrupted(ctx)
}

// Close stops the executor and closes the databases.
func (r *Runtime) Close() error {
	r.Executor.Stop()
	qErr := r.Queue.Close()
	cErr := r.Contexts.Close()
	if qErr != nil {
		return qErr
	}
	return cErr
}
