package taskscaling

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/Swind/go-task-scaling/core"
)

// ThreadPerTaskExecutor is the one-per-task stress strategy: every task gets
// a fresh goroutine locked to its own OS thread for its whole life.
//
// The goroutine never calls runtime.UnlockOSThread, so the runtime tears the
// thread down when the task returns instead of parking it for reuse. Sleeping
// tasks therefore each hold a real OS thread, which is what this strategy
// exists to measure.
//
// The Go runtime aborts the process once it needs more than
// debug.SetMaxThreads threads, or when the kernel refuses a new thread
// (RLIMIT_NPROC, cgroup pids.max). A weighted semaphore sized below all of
// these turns the overflow into ErrResourceExhausted for the individual task.
type ThreadPerTaskExecutor struct {
	name   string
	limit  int64
	budget *semaphore.Weighted
	config *core.ExecutorConfig

	ctx     context.Context
	cancel  context.CancelFunc
	pending barrier
	act     activity
	seq     atomic.Int64
	started atomic.Bool
	closed  atomic.Bool
}

var _ Executor = (*ThreadPerTaskExecutor)(nil)

func NewThreadPerTaskExecutor(name string, maxThreads int, config *core.ExecutorConfig) *ThreadPerTaskExecutor {
	if maxThreads < 1 {
		maxThreads = DefaultThreadBudget
	}
	maxThreads = capThreadBudget(maxThreads)
	return &ThreadPerTaskExecutor{
		name:   name,
		limit:  int64(maxThreads),
		budget: semaphore.NewWeighted(int64(maxThreads)),
		config: config.WithDefaults(),
		ctx:    context.Background(),
	}
}

// Start sets the parent context for tasks. Repeated calls are no-ops.
func (e *ThreadPerTaskExecutor) Start(ctx context.Context) {
	if !e.started.CompareAndSwap(false, true) {
		return
	}
	e.ctx, e.cancel = context.WithCancel(ctx)
}

func (e *ThreadPerTaskExecutor) Name() string { return e.name }

// Submit starts the task on a new OS thread, or fails with
// ErrResourceExhausted when the thread budget is spent.
func (e *ThreadPerTaskExecutor) Submit(task core.Task) error {
	if e.closed.Load() {
		e.config.RejectedTaskHandler.HandleRejectedTask(e.name, "shutting down")
		e.config.Metrics.RecordTaskFailure(e.name, "rejected")
		return core.ErrExecutorClosed
	}
	if !e.budget.TryAcquire(1) {
		e.config.RejectedTaskHandler.HandleRejectedTask(e.name, "resource exhausted")
		e.config.Metrics.RecordTaskFailure(e.name, "resource_exhausted")
		return fmt.Errorf("%w: all %d OS threads in use", core.ErrResourceExhausted, e.limit)
	}

	unit := int(e.seq.Add(1))
	ctx := core.WithWorker(e.ctx, core.WorkerInfo{Executor: e.name, ID: unit, Kind: "os-thread"})

	e.pending.add()
	go func() {
		runtime.LockOSThread()
		defer e.pending.done()
		defer e.budget.Release(1)

		e.act.start()
		defer e.act.end()
		runGuarded(ctx, task, e.name, -1, e.config)
	}()
	return nil
}

func (e *ThreadPerTaskExecutor) Wait(ctx context.Context) error {
	return e.pending.wait(ctx)
}

// Shutdown rejects further submissions and interrupts running tasks.
func (e *ThreadPerTaskExecutor) Shutdown() {
	if !e.closed.CompareAndSwap(false, true) {
		return
	}
	if e.cancel != nil {
		e.cancel()
	}
}

// InUse is the number of OS threads currently held by tasks.
func (e *ThreadPerTaskExecutor) InUse() int {
	return int(e.act.active.Load())
}

func (e *ThreadPerTaskExecutor) Stats() core.PoolStats {
	return core.PoolStats{
		ID:      e.name,
		Kind:    string(KindOnePerTask),
		Workers: int(e.limit),
		Active:  int(e.act.active.Load()),
		Peak:    int(e.act.peak.Load()),
		Running: e.started.Load() && !e.closed.Load(),
	}
}
