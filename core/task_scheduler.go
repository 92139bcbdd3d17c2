package core

import (
	"fmt"
	"sync/atomic"
	"time"
)

// TaskScheduler is the FIFO work source the bounded pool's workers pull from.
type TaskScheduler struct {
	name        string
	queue       *taskQueue
	signal      chan struct{}
	workerCount int

	metricActive int32 // Executing in Worker
	metricPeak   int32 // Highest metricActive observed

	metrics             Metrics
	rejectedTaskHandler RejectedTaskHandler
}

func NewTaskScheduler(name string, workerCount int) *TaskScheduler {
	return NewTaskSchedulerWithConfig(name, workerCount, DefaultExecutorConfig())
}

func NewTaskSchedulerWithConfig(name string, workerCount int, config *ExecutorConfig) *TaskScheduler {
	config = config.WithDefaults()
	return &TaskScheduler{
		name:                name,
		queue:               newTaskQueue(),
		signal:              make(chan struct{}, workerCount*2),
		workerCount:         workerCount,
		metrics:             config.Metrics,
		rejectedTaskHandler: config.RejectedTaskHandler,
	}
}

// Post queues a task. It fails with ErrExecutorClosed once Shutdown or
// ShutdownGraceful has begun.
func (s *TaskScheduler) Post(task Task) error {
	depth, ok := s.queue.push(task)
	if !ok {
		s.rejectedTaskHandler.HandleRejectedTask(s.name, "shutting down")
		s.metrics.RecordTaskFailure(s.name, "rejected")
		return ErrExecutorClosed
	}
	s.metrics.RecordQueueDepth(s.name, depth)

	select {
	case s.signal <- struct{}{}:
	default:
		// Signal channel full, but task is already queued
	}
	return nil
}

// GetWork (Called by Worker)
func (s *TaskScheduler) GetWork(stopCh <-chan struct{}) (Task, bool) {
	for {
		if task, ok := s.queue.pop(); ok {
			return task, true
		}

		select {
		case <-s.signal:
			continue
		case <-stopCh:
			return nil, false
		}
	}
}

// Shutdown stops accepting tasks and drops everything still queued.
// It returns the number of tasks dropped.
func (s *TaskScheduler) Shutdown() int {
	s.queue.close()
	return s.queue.clear()
}

// ShutdownGraceful stops accepting tasks and waits for queued and active
// tasks to complete. On timeout the queue is left intact; the caller drops
// the remainder with Shutdown.
func (s *TaskScheduler) ShutdownGraceful(timeout time.Duration) error {
	s.queue.close()

	deadline := time.After(timeout)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if s.QueuedTaskCount() == 0 && s.ActiveTaskCount() == 0 {
			return nil
		}
		select {
		case <-deadline:
			return fmt.Errorf("%w: graceful shutdown exceeded %v", ErrTimeout, timeout)
		case <-ticker.C:
		}
	}
}

// IsShuttingDown reports whether Shutdown or ShutdownGraceful has begun.
func (s *TaskScheduler) IsShuttingDown() bool {
	return s.queue.isClosed()
}

// Metrics
func (s *TaskScheduler) WorkerCount() int         { return s.workerCount }
func (s *TaskScheduler) QueuedTaskCount() int     { return s.queue.len() }
func (s *TaskScheduler) ActiveTaskCount() int     { return int(atomic.LoadInt32(&s.metricActive)) }
func (s *TaskScheduler) PeakActiveTaskCount() int { return int(atomic.LoadInt32(&s.metricPeak)) }
func (s *TaskScheduler) Name() string             { return s.name }

func (s *TaskScheduler) OnTaskStart() {
	active := atomic.AddInt32(&s.metricActive, 1)
	for {
		peak := atomic.LoadInt32(&s.metricPeak)
		if active <= peak || atomic.CompareAndSwapInt32(&s.metricPeak, peak, active) {
			return
		}
	}
}

func (s *TaskScheduler) OnTaskEnd() {
	atomic.AddInt32(&s.metricActive, -1)
}
