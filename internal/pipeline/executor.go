package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"framecast/internal/logging"
	"framecast/internal/queue"
	"framecast/internal/services"
)

const defaultBacklog = 256

// Work is a unit of asynchronous execution. progress records a note on the
// operation; the returned value becomes the operation result.
type Work func(ctx context.Context, progress func(string)) (any, error)

// OperationStore is the persistence the executor needs.
type OperationStore interface {
	Create(ctx context.Context, kind, projectID string, input any) (*queue.Operation, error)
	Get(ctx context.Context, id string) (*queue.Operation, error)
	MarkRunning(ctx context.Context, id string) error
	UpdateProgress(ctx context.Context, id, progress string) error
	Complete(ctx context.Context, id string, result any) error
	Fail(ctx context.Context, id string, cause error, result any) error
}

// Handle tracks a submitted operation within this process.
type Handle struct {
	Operation *queue.Operation
	done      chan struct{}
	result    any
	err       error
}

// Done is closed when the work finishes.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Result returns the work's outcome. It is valid only after Done is closed.
func (h *Handle) Result() (any, error) { return h.result, h.err }

type job struct {
	handle *Handle
	ctx    context.Context
	cancel context.CancelFunc
	work   Work
}

// Executor runs work on a fixed number of workers.
type Executor struct {
	store   OperationStore
	workers int
	logger  *slog.Logger

	jobs chan job

	mu      sync.Mutex
	running bool
	runCtx  context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewExecutor constructs an executor with workers goroutines.
func NewExecutor(store OperationStore, workers int, logger *slog.Logger) *Executor {
	if workers <= 0 {
		workers = 1
	}
	return &Executor{
		store:   store,
		workers: workers,
		logger:  logging.NewComponentLogger(logger, "executor"),
		jobs:    make(chan job, defaultBacklog),
	}
}

// Start launches the workers.
func (e *Executor) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return errors.New("executor already running")
	}
	e.runCtx, e.cancel = context.WithCancel(ctx)
	e.running = true
	e.wg.Add(e.workers)
	for i := 0; i < e.workers; i++ {
		go e.worker(e.runCtx)
	}
	return nil
}

// Stop cancels in-flight work, waits for the workers to exit and fails
// whatever is still queued, so every handle is eventually done.
func (e *Executor) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	cancel := e.cancel
	e.running = false
	e.mu.Unlock()

	cancel()
	e.wg.Wait()
	e.drain()
}

func (e *Executor) drain() {
	for {
		select {
		case j := <-e.jobs:
			e.abandon(j)
		default:
			return
		}
	}
}

func (e *Executor) abandon(j job) {
	defer j.cancel()
	defer close(j.handle.done)
	j.handle.err = errExecutorStopped
	storeCtx := context.WithoutCancel(j.ctx)
	if err := e.store.Fail(storeCtx, j.handle.Operation.ID, errExecutorStopped, nil); err != nil {
		logging.WithContext(j.ctx, e.logger).Warn("failed to record abandoned operation", logging.Error(err))
	}
}

var errExecutorStopped = services.Wrap(services.ErrTransient, "executor", "run", queue.DaemonStopReason, nil)

// Submit records a pending operation and queues work. The work keeps the
// values of ctx (request and project ids) but not its cancellation: it stops
// only when the executor stops. Submit fails unless the executor is running.
func (e *Executor) Submit(ctx context.Context, kind, projectID string, input any, work Work) (*Handle, error) {
	e.mu.Lock()
	running := e.running
	e.mu.Unlock()
	if !running {
		return nil, services.Wrap(services.ErrTransient, "executor", "submit", "executor is not running", nil)
	}

	op, err := e.store.Create(ctx, kind, projectID, input)
	if err != nil {
		return nil, err
	}
	ctx = services.WithOperationID(ctx, op.ID)
	handle := &Handle{Operation: op, done: make(chan struct{})}

	// The running check and the enqueue share the lock so Stop drains
	// everything that made it into the backlog.
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		if failErr := e.store.Fail(context.WithoutCancel(ctx), op.ID, errExecutorStopped, nil); failErr != nil {
			e.logger.Warn("failed to record rejected operation", logging.Error(failErr))
		}
		return nil, errExecutorStopped
	}
	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(e.runCtx, cancel)
	j := job{handle: handle, ctx: jobCtx, work: work, cancel: func() {
		stop()
		cancel()
	}}
	var queued bool
	select {
	case e.jobs <- j:
		queued = true
	default:
	}
	e.mu.Unlock()

	if !queued {
		j.cancel()
		saturated := services.Wrap(services.ErrTransient, "executor", "submit",
			fmt.Sprintf("backlog full (%d operations)", cap(e.jobs)), nil)
		if failErr := e.store.Fail(context.WithoutCancel(ctx), op.ID, saturated, nil); failErr != nil {
			e.logger.Warn("failed to record rejected operation", logging.Error(failErr))
		}
		return nil, saturated
	}
	logging.WithContext(ctx, e.logger).Debug("operation submitted",
		logging.String("operation_kind", kind),
		logging.Int("backlog", len(e.jobs)),
	)
	return handle, nil
}

// Operation polls the stored state of id.
func (e *Executor) Operation(ctx context.Context, id string) (*queue.Operation, error) {
	return e.store.Get(ctx, id)
}

func (e *Executor) worker(ctx context.Context) {
	defer e.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-e.jobs:
			if ctx.Err() != nil {
				e.abandon(j)
				return
			}
			e.run(j)
		}
	}
}

func (e *Executor) run(j job) {
	defer j.cancel()
	defer close(j.handle.done)

	op := j.handle.Operation
	logger := logging.WithContext(j.ctx, e.logger)
	// Status writes use a context that survives work cancellation so a
	// stopped operation is still recorded.
	storeCtx := context.WithoutCancel(j.ctx)

	if err := e.store.MarkRunning(storeCtx, op.ID); err != nil {
		logger.Warn("failed to mark operation running", logging.Error(err))
	}
	progress := func(note string) {
		if err := e.store.UpdateProgress(storeCtx, op.ID, note); err != nil {
			logger.Debug("progress update failed", logging.Error(err))
		}
	}

	result, err := safeRun(j.ctx, j.work, progress)
	j.handle.result, j.handle.err = result, err
	if err != nil {
		if failErr := e.store.Fail(storeCtx, op.ID, err, result); failErr != nil {
			logger.Error("failed to record operation failure", logging.Error(failErr))
		}
		logger.Warn("operation failed",
			logging.String("operation_kind", op.Kind),
			logging.String(logging.FieldErrorKind, string(services.KindOf(err))),
			logging.Error(err),
		)
		return
	}
	if completeErr := e.store.Complete(storeCtx, op.ID, result); completeErr != nil {
		logger.Error("failed to record operation result", logging.Error(completeErr))
	}
	logger.Info("operation completed", logging.String("operation_kind", op.Kind))
}

func safeRun(ctx context.Context, work Work, progress func(string)) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = services.Wrap(services.ErrFatal, "executor", "run", fmt.Sprintf("panic: %v", r), nil)
		}
	}()
	return work(ctx, progress)
}
