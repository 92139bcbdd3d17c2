package taskscaling

import (
	"context"
	"sync"
	"time"

	"github.com/Swind/go-task-scaling/core"
)

// GoroutineThreadPool is the bounded-pool strategy: a fixed set of worker
// goroutines pulling tasks from a FIFO scheduler. Tasks queue while every
// worker is busy, so resident concurrency never exceeds the worker count.
type GoroutineThreadPool struct {
	id        string
	workers   int
	scheduler *core.TaskScheduler
	config    *core.ExecutorConfig
	pending   barrier
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	stopCh    chan struct{}
	running   bool
	runningMu sync.RWMutex
}

var _ Executor = (*GoroutineThreadPool)(nil)

// NewGoroutineThreadPool creates a new GoroutineThreadPool
func NewGoroutineThreadPool(id string, workers int) *GoroutineThreadPool {
	return NewGoroutineThreadPoolWithConfig(id, workers, nil)
}

// NewGoroutineThreadPoolWithConfig creates a pool whose panic handler,
// metrics and rejection handler come from config.
func NewGoroutineThreadPoolWithConfig(id string, workers int, config *core.ExecutorConfig) *GoroutineThreadPool {
	config = config.WithDefaults()
	return &GoroutineThreadPool{
		id:        id,
		workers:   workers,
		scheduler: core.NewTaskSchedulerWithConfig(id, workers, config),
		config:    config,
	}
}

// Start starts all worker goroutines
func (tg *GoroutineThreadPool) Start(ctx context.Context) {
	tg.runningMu.Lock()
	defer tg.runningMu.Unlock()

	if tg.running {
		return // Already running
	}

	tg.ctx, tg.cancel = context.WithCancel(ctx)
	tg.stopCh = make(chan struct{})
	tg.running = true

	for i := 0; i < tg.workers; i++ {
		tg.wg.Add(1)
		go tg.workerLoop(i, tg.ctx)
	}
}

// Stop stops the thread pool, dropping queued tasks
func (tg *GoroutineThreadPool) Stop() {
	// Always shutdown scheduler to release queued tasks even if pool was never started
	tg.drop()

	if !tg.markStopped() {
		return
	}
	tg.cancel()
	close(tg.stopCh)
	tg.Join()
}

// StopGraceful stops the thread pool gracefully, waiting for queued tasks to complete
// Returns error if timeout is exceeded before tasks complete
func (tg *GoroutineThreadPool) StopGraceful(timeout time.Duration) error {
	if !tg.IsRunning() {
		return nil
	}

	err := tg.scheduler.ShutdownGraceful(timeout)
	if err != nil {
		// Timeout: drop what is left before cancelling workers
		tg.drop()
	}

	if tg.markStopped() {
		tg.cancel()
		close(tg.stopCh)
		tg.Join()
	}
	return err
}

// markStopped flips the pool to not running. Only the first caller gets true.
func (tg *GoroutineThreadPool) markStopped() bool {
	tg.runningMu.Lock()
	defer tg.runningMu.Unlock()
	if !tg.running {
		return false
	}
	tg.running = false
	return true
}

// drop clears the queue and releases the barrier slots of the dropped tasks.
func (tg *GoroutineThreadPool) drop() {
	for range tg.scheduler.Shutdown() {
		tg.pending.done()
	}
}

// Submit queues a task for the next free worker.
func (tg *GoroutineThreadPool) Submit(task core.Task) error {
	tg.pending.add()
	wrapped := func(ctx context.Context) {
		defer tg.pending.done()
		task(ctx)
	}
	if err := tg.scheduler.Post(wrapped); err != nil {
		tg.pending.done()
		return err
	}
	return nil
}

// Wait blocks until every submitted task has run, or ctx is done.
func (tg *GoroutineThreadPool) Wait(ctx context.Context) error {
	return tg.pending.wait(ctx)
}

// Shutdown is Stop; it satisfies Executor.
func (tg *GoroutineThreadPool) Shutdown() {
	tg.Stop()
}

// ID returns the ID of the thread pool
func (tg *GoroutineThreadPool) ID() string {
	return tg.id
}

// Name returns the ID of the thread pool
func (tg *GoroutineThreadPool) Name() string {
	return tg.id
}

// IsRunning returns whether the thread pool is running
func (tg *GoroutineThreadPool) IsRunning() bool {
	tg.runningMu.RLock()
	defer tg.runningMu.RUnlock()
	return tg.running
}

// workerLoop is the main loop for each worker. Workers exit on Stop only;
// after the parent context is cancelled they keep draining the queue so
// every queued task runs, sees the cancellation and releases the barrier.
func (tg *GoroutineThreadPool) workerLoop(id int, ctx context.Context) {
	defer tg.wg.Done()
	taskCtx := core.WithWorker(ctx, core.WorkerInfo{Executor: tg.id, ID: id, Kind: "pool-worker"})

	for {
		task, ok := tg.scheduler.GetWork(tg.stopCh)
		if !ok {
			// Pool stopped
			return
		}

		tg.scheduler.OnTaskStart()
		func() {
			defer tg.scheduler.OnTaskEnd()
			runGuarded(taskCtx, task, tg.id, id, tg.config)
		}()
	}
}

// Join waits for all worker goroutines to finish
func (tg *GoroutineThreadPool) Join() {
	tg.wg.Wait()
}

// WorkerCount returns the number of workers
func (tg *GoroutineThreadPool) WorkerCount() int {
	return tg.workers
}

func (tg *GoroutineThreadPool) QueuedTaskCount() int {
	return tg.scheduler.QueuedTaskCount()
}

func (tg *GoroutineThreadPool) ActiveTaskCount() int {
	return tg.scheduler.ActiveTaskCount()
}

// PeakActiveTaskCount is the highest number of tasks ever running at once.
func (tg *GoroutineThreadPool) PeakActiveTaskCount() int {
	return tg.scheduler.PeakActiveTaskCount()
}

// Stats returns current observability data for this pool.
func (tg *GoroutineThreadPool) Stats() core.PoolStats {
	return core.PoolStats{
		ID:      tg.id,
		Kind:    string(KindBoundedPool),
		Workers: tg.workers,
		Queued:  tg.QueuedTaskCount(),
		Active:  tg.ActiveTaskCount(),
		Peak:    tg.PeakActiveTaskCount(),
		Running: tg.IsRunning(),
	}
}
