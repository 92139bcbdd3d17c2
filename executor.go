package taskscaling

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/Swind/go-task-scaling/core"
)

// Executor is the capability every execution strategy provides:
// submit tasks, then later join all of them.
type Executor interface {
	// Name identifies the executor in logs and metrics.
	Name() string

	// Submit hands one task to the executor. It never blocks for the task
	// to run. A task the executor cannot accept yields ErrResourceExhausted
	// or ErrExecutorClosed and is not run.
	Submit(task core.Task) error

	// Wait blocks until every accepted task has finished, or until ctx is
	// done, in which case it returns an error wrapping ErrTimeout.
	Wait(ctx context.Context) error

	// Shutdown releases the executor's resources. Tasks still queued are dropped.
	Shutdown()

	// Stats returns a point-in-time snapshot.
	Stats() core.PoolStats
}

// StrategyKind names an execution medium.
type StrategyKind string

const (
	KindBoundedPool StrategyKind = "bounded-pool"
	KindOnePerTask  StrategyKind = "one-per-task"
	KindLightweight StrategyKind = "lightweight"
)

// DefaultThreadBudget caps the one-per-task executor below the Go runtime's
// default 10000 OS thread limit, past which the process is killed.
const DefaultThreadBudget = 8000

// ExecutionStrategy selects and sizes the execution medium for a run.
type ExecutionStrategy struct {
	Kind StrategyKind

	// PoolSize is the worker count for KindBoundedPool.
	PoolSize int

	// MaxThreads is the OS thread budget for KindOnePerTask.
	MaxThreads int
}

// BoundedPool runs tasks on size reusable workers; extra tasks queue.
func BoundedPool(size int) ExecutionStrategy {
	return ExecutionStrategy{Kind: KindBoundedPool, PoolSize: size}
}

// OnePerTask runs every task on its own OS thread, up to DefaultThreadBudget.
func OnePerTask() ExecutionStrategy {
	return OnePerTaskWithLimit(DefaultThreadBudget)
}

// OnePerTaskWithLimit is OnePerTask with an explicit thread budget.
func OnePerTaskWithLimit(maxThreads int) ExecutionStrategy {
	return ExecutionStrategy{Kind: KindOnePerTask, MaxThreads: maxThreads}
}

// Lightweight runs every task on its own goroutine.
func Lightweight() ExecutionStrategy {
	return ExecutionStrategy{Kind: KindLightweight}
}

func (s ExecutionStrategy) String() string {
	switch s.Kind {
	case KindBoundedPool:
		return fmt.Sprintf("%s(%d)", s.Kind, s.PoolSize)
	case KindOnePerTask:
		return fmt.Sprintf("%s(%d)", s.Kind, s.MaxThreads)
	default:
		return string(s.Kind)
	}
}

// Validate checks the strategy's sizing.
func (s ExecutionStrategy) Validate() error {
	switch s.Kind {
	case KindBoundedPool:
		if s.PoolSize < 1 {
			return fmt.Errorf("%w: bounded pool size must be at least 1, got %d", core.ErrInvalidArgument, s.PoolSize)
		}
	case KindOnePerTask:
		if s.MaxThreads < 1 {
			return fmt.Errorf("%w: thread budget must be at least 1, got %d", core.ErrInvalidArgument, s.MaxThreads)
		}
	case KindLightweight:
	default:
		return fmt.Errorf("%w: unknown strategy %q", core.ErrInvalidArgument, s.Kind)
	}
	return nil
}

// ParseStrategy maps a user-facing name to a strategy. Accepted names:
// pool / bounded-pool / fixed, thread / one-per-task / platform,
// lightweight / virtual / goroutine.
func ParseStrategy(name string, poolSize, maxThreads int) (ExecutionStrategy, error) {
	var s ExecutionStrategy
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "pool", "bounded-pool", "fixed":
		s = BoundedPool(poolSize)
	case "thread", "one-per-task", "platform":
		if maxThreads == 0 {
			maxThreads = DefaultThreadBudget
		}
		s = OnePerTaskWithLimit(maxThreads)
	case "lightweight", "virtual", "goroutine":
		s = Lightweight()
	default:
		return ExecutionStrategy{}, fmt.Errorf("%w: unknown strategy %q", core.ErrInvalidArgument, name)
	}
	return s, s.Validate()
}

// NewExecutor builds and starts the executor for s. Tasks run with contexts
// derived from ctx, so cancelling ctx interrupts them.
func NewExecutor(ctx context.Context, s ExecutionStrategy, config *core.ExecutorConfig) (Executor, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	switch s.Kind {
	case KindBoundedPool:
		pool := NewGoroutineThreadPoolWithConfig(s.String(), s.PoolSize, config)
		pool.Start(ctx)
		return pool, nil
	case KindOnePerTask:
		e := NewThreadPerTaskExecutor(s.String(), s.MaxThreads, config)
		e.Start(ctx)
		return e, nil
	default:
		e := NewLightweightExecutor(s.String(), config)
		e.Start(ctx)
		return e, nil
	}
}

// =============================================================================
// Shared plumbing
// =============================================================================

// barrier counts accepted-but-unfinished tasks.
type barrier struct {
	wg sync.WaitGroup
}

func (b *barrier) add()  { b.wg.Add(1) }
func (b *barrier) done() { b.wg.Done() }

func (b *barrier) wait(ctx context.Context) error {
	if ctx.Done() == nil {
		b.wg.Wait()
		return nil
	}

	finished := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", core.ErrTimeout, context.Cause(ctx))
	}
}

// activity tracks running and peak concurrency for per-task executors.
type activity struct {
	active atomic.Int32
	peak   atomic.Int32
}

func (a *activity) start() {
	n := a.active.Add(1)
	for {
		p := a.peak.Load()
		if n <= p || a.peak.CompareAndSwap(p, n) {
			return
		}
	}
}

func (a *activity) end() { a.active.Add(-1) }

// runGuarded executes task and routes a panic to the handler instead of
// letting it kill the process.
func runGuarded(ctx context.Context, task core.Task, executor string, workerID int, config *core.ExecutorConfig) {
	defer func() {
		if r := recover(); r != nil {
			config.Metrics.RecordTaskFailure(executor, "panic")
			config.PanicHandler.HandlePanic(ctx, executor, workerID, r, debug.Stack())
		}
	}()
	task(ctx)
}
