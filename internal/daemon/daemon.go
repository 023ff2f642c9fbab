package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"framecast/internal/api"
	"framecast/internal/config"
	"framecast/internal/logging"
	"framecast/internal/pipeline"
	"framecast/internal/queue"
)

// LockFileName is the single-instance lock under the data directory.
const LockFileName = "framecast.lock"

// Daemon hosts the runtime and the HTTP API and enforces single-instance
// execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	runtime *pipeline.Runtime
	server  *apiServer

	lockPath string
	lock     *flock.Flock

	running   atomic.Bool
	startedAt atomic.Pointer[time.Time]
	ctx       context.Context
	cancel    context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool          `json:"running"`
	PID           int           `json:"pid"`
	Address       string        `json:"address,omitempty"`
	StartedAt     string        `json:"startedAt,omitempty"`
	ContextDBPath string        `json:"contextDbPath"`
	QueueDBPath   string        `json:"queueDbPath"`
	LockFilePath  string        `json:"lockFilePath"`
	Operations    queue.Summary `json:"operations"`
	Error         string        `json:"error,omitempty"`
}

// New constructs a daemon around an opened runtime. svc handles API calls.
func New(cfg *config.Config, rt *pipeline.Runtime, svc *api.Service, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || rt == nil || svc == nil {
		return nil, errors.New("daemon requires config, runtime, and api service")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := filepath.Join(cfg.Paths.DataDir, LockFileName)
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		runtime:  rt,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.server = newAPIServer(cfg.Paths.APIBind, cfg.Paths.APIToken, d, svc, logger)
	return d, nil
}

// Start acquires the daemon lock, starts the executor and begins serving.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another framecast daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	interrupted, err := d.runtime.FailInterrupted(d.ctx)
	if err != nil {
		d.abortStart()
		return fmt.Errorf("fail interrupted operations: %w", err)
	}
	if interrupted > 0 {
		d.logger.Warn("failed operations interrupted by a previous daemon",
			logging.Int("count", int(interrupted)),
			logging.String(logging.FieldEventType, "operations_interrupted"),
		)
	}
	if err := d.runtime.Start(d.ctx); err != nil {
		d.abortStart()
		return fmt.Errorf("start runtime: %w", err)
	}
	if err := d.server.start(d.ctx); err != nil {
		d.runtime.Executor.Stop()
		d.abortStart()
		return err
	}

	now := time.Now().UTC()
	d.startedAt.Store(&now)
	d.running.Store(true)
	d.logger.Info("framecast daemon started",
		logging.String("lock", d.lockPath),
		logging.String("address", d.server.addr()),
	)
	return nil
}

func (d *Daemon) abortStart() {
	_ = d.lock.Unlock()
	d.cancel()
	d.ctx = nil
	d.cancel = nil
}

// Stop stops serving and background work and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.server.stop()
	d.runtime.Executor.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("framecast daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return d.runtime.Close()
}

// Addr returns the bound API address, or "" when the API is disabled.
func (d *Daemon) Addr() string {
	return d.server.addr()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:       d.running.Load(),
		PID:           os.Getpid(),
		Address:       d.server.addr(),
		ContextDBPath: d.cfg.ContextDBPath(),
		QueueDBPath:   d.cfg.QueueDBPath(),
		LockFilePath:  d.lockPath,
	}
	if started := d.startedAt.Load(); started != nil && status.Running {
		status.StartedAt = started.Format(time.RFC3339)
	}
	summary, err := d.runtime.Queue.Summary(ctx)
	if err != nil {
		status.Error = err.Error()
	} else {
		status.Operations = summary
	}
	return status
}
