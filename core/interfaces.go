package core

import (
	"context"
	"fmt"
	"time"
)

// =============================================================================
// PanicHandler: Interface for handling task panics
// =============================================================================

// PanicHandler is called when a task panics during execution.
//
// Implementations should be thread-safe as they may be called concurrently.
type PanicHandler interface {
	// HandlePanic is called when a task panics.
	//
	// Parameters:
	// - ctx: The context from the panicked task (carries the WorkerInfo)
	// - executorName: The name of the executor where the panic occurred
	// - workerID: The worker index, or -1 for per-task executors
	// - panicInfo: The panic value recovered from the task
	// - stackTrace: The stack trace at the time of panic
	HandlePanic(ctx context.Context, executorName string, workerID int, panicInfo any, stackTrace []byte)
}

// DefaultPanicHandler provides a basic panic handler that logs to stdout.
type DefaultPanicHandler struct{}

// HandlePanic prints panic information to stdout.
func (h *DefaultPanicHandler) HandlePanic(ctx context.Context, executorName string, workerID int, panicInfo any, stackTrace []byte) {
	if workerID >= 0 {
		fmt.Printf("[Worker %d @ %s] Panic: %v\nStack trace:\n%s",
			workerID, executorName, panicInfo, stackTrace)
	} else {
		fmt.Printf("[Executor %s] Panic: %v\nStack trace:\n%s",
			executorName, panicInfo, stackTrace)
	}
}

// LoggingPanicHandler reports panics through a Logger instead of stdout.
type LoggingPanicHandler struct {
	Logger Logger
}

// HandlePanic logs the panic at error level.
func (h *LoggingPanicHandler) HandlePanic(ctx context.Context, executorName string, workerID int, panicInfo any, stackTrace []byte) {
	h.Logger.Error("task panicked",
		F("executor", executorName),
		F("worker", workerID),
		F("panic", panicInfo),
		F("stack", string(stackTrace)),
	)
}

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Metrics defines the interface for collecting harness metrics.
// Implementations can send metrics to monitoring systems (Prometheus, StatsD, etc.).
//
// Methods should be non-blocking and fast to avoid skewing the timings they observe.
type Metrics interface {
	// RecordTaskDuration records how long a task took from start to finish.
	RecordTaskDuration(strategy string, duration time.Duration)

	// RecordTaskFailure records a task that did not complete normally.
	// reason is one of "interrupted", "resource_exhausted", "panic", "rejected".
	RecordTaskFailure(strategy string, reason string)

	// RecordQueueDepth records the current number of tasks waiting for a worker.
	RecordQueueDepth(strategy string, depth int)

	// RecordRunElapsed records the wall-clock time of a whole harness run.
	RecordRunElapsed(strategy string, elapsed time.Duration)
}

// NilMetrics provides a no-op metrics implementation that does nothing.
// This is the default when no metrics interface is provided.
type NilMetrics struct{}

func (m *NilMetrics) RecordTaskDuration(strategy string, duration time.Duration) {}
func (m *NilMetrics) RecordTaskFailure(strategy string, reason string)           {}
func (m *NilMetrics) RecordQueueDepth(strategy string, depth int)                {}
func (m *NilMetrics) RecordRunElapsed(strategy string, elapsed time.Duration)    {}

// =============================================================================
// RejectedTaskHandler: Interface for handling rejected tasks
// =============================================================================

// RejectedTaskHandler is called when a task is rejected by an executor.
// This can happen when:
// - The executor is shutting down
// - The executor has no execution units left (resource exhaustion)
//
// Implementations should be thread-safe as they may be called concurrently.
type RejectedTaskHandler interface {
	// HandleRejectedTask is called when a task is rejected.
	//
	// Parameters:
	// - executorName: The name of the executor
	// - reason: Why the task was rejected (e.g., "shutting down", "resource exhausted")
	HandleRejectedTask(executorName string, reason string)
}

// DefaultRejectedTaskHandler provides a basic handler that logs rejected tasks.
type DefaultRejectedTaskHandler struct{}

// HandleRejectedTask logs the rejected task.
func (h *DefaultRejectedTaskHandler) HandleRejectedTask(executorName string, reason string) {
	fmt.Printf("[Executor %s] Task rejected: %s\n", executorName, reason)
}

// NoOpRejectedTaskHandler ignores rejections. The harness counts them itself.
type NoOpRejectedTaskHandler struct{}

func (h *NoOpRejectedTaskHandler) HandleRejectedTask(executorName string, reason string) {}

// =============================================================================
// ExecutorConfig: Configuration shared by all executors
// =============================================================================

// ExecutorConfig holds configuration options for executors and the scheduler.
// All handlers are optional; if not provided, default implementations will be used.
type ExecutorConfig struct {
	// PanicHandler is called when a task panics. Defaults to DefaultPanicHandler.
	PanicHandler PanicHandler

	// Metrics is called to record queue depth and rejections. Defaults to NilMetrics.
	Metrics Metrics

	// RejectedTaskHandler is called when a task is rejected. Defaults to DefaultRejectedTaskHandler.
	RejectedTaskHandler RejectedTaskHandler
}

// DefaultExecutorConfig returns a config with default handlers.
func DefaultExecutorConfig() *ExecutorConfig {
	return &ExecutorConfig{
		PanicHandler:        &DefaultPanicHandler{},
		Metrics:             &NilMetrics{},
		RejectedTaskHandler: &DefaultRejectedTaskHandler{},
	}
}

// WithDefaults returns a copy of c with nil handlers replaced by defaults.
// A nil receiver yields DefaultExecutorConfig.
func (c *ExecutorConfig) WithDefaults() *ExecutorConfig {
	out := DefaultExecutorConfig()
	if c == nil {
		return out
	}
	if c.PanicHandler != nil {
		out.PanicHandler = c.PanicHandler
	}
	if c.Metrics != nil {
		out.Metrics = c.Metrics
	}
	if c.RejectedTaskHandler != nil {
		out.RejectedTaskHandler = c.RejectedTaskHandler
	}
	return out
}
