package taskscaling

import (
	"context"
	"sync/atomic"

	"github.com/Swind/go-task-scaling/core"
)

// LightweightExecutor runs each task on its own goroutine. The Go scheduler
// multiplexes them over GOMAXPROCS threads; a task blocked in core.Sleep is
// parked on a timer and holds no thread.
type LightweightExecutor struct {
	name   string
	config *core.ExecutorConfig

	ctx     context.Context
	cancel  context.CancelFunc
	pending barrier
	act     activity
	seq     atomic.Int64
	started atomic.Bool
	closed  atomic.Bool
}

var _ Executor = (*LightweightExecutor)(nil)

func NewLightweightExecutor(name string, config *core.ExecutorConfig) *LightweightExecutor {
	return &LightweightExecutor{
		name:   name,
		config: config.WithDefaults(),
		ctx:    context.Background(),
	}
}

// Start sets the parent context for tasks. Repeated calls are no-ops.
func (e *LightweightExecutor) Start(ctx context.Context) {
	if !e.started.CompareAndSwap(false, true) {
		return
	}
	e.ctx, e.cancel = context.WithCancel(ctx)
}

func (e *LightweightExecutor) Name() string { return e.name }

func (e *LightweightExecutor) Submit(task core.Task) error {
	if e.closed.Load() {
		e.config.RejectedTaskHandler.HandleRejectedTask(e.name, "shutting down")
		e.config.Metrics.RecordTaskFailure(e.name, "rejected")
		return core.ErrExecutorClosed
	}

	unit := int(e.seq.Add(1))
	ctx := core.WithWorker(e.ctx, core.WorkerInfo{Executor: e.name, ID: unit, Kind: "goroutine"})

	e.pending.add()
	go func() {
		defer e.pending.done()
		e.act.start()
		defer e.act.end()
		runGuarded(ctx, task, e.name, -1, e.config)
	}()
	return nil
}

func (e *LightweightExecutor) Wait(ctx context.Context) error {
	return e.pending.wait(ctx)
}

// Shutdown rejects further submissions and interrupts running tasks.
func (e *LightweightExecutor) Shutdown() {
	if !e.closed.CompareAndSwap(false, true) {
		return
	}
	if e.cancel != nil {
		e.cancel()
	}
}

func (e *LightweightExecutor) Stats() core.PoolStats {
	return core.PoolStats{
		ID:      e.name,
		Kind:    string(KindLightweight),
		Active:  int(e.act.active.Load()),
		Peak:    int(e.act.peak.Load()),
		Running: e.started.Load() && !e.closed.Load(),
	}
}
