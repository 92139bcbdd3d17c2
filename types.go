package taskscaling

import "github.com/Swind/go-task-scaling/core"

// Re-export commonly used types from core package for convenience.
// This allows users to import only the taskscaling package for most use cases.

// Task is the unit of work (Closure)
type Task = core.Task

// TaskSpec is one harness task's ordinal and simulated work
type TaskSpec = core.TaskSpec

// Logger is the sink for task and run reports
type Logger = core.Logger

// Field is a structured logging key-value pair
type Field = core.Field

// Metrics collects task and run measurements
type Metrics = core.Metrics

// PoolStats is an executor snapshot
type PoolStats = core.PoolStats

// TaskExecutionRecord describes one finished task
type TaskExecutionRecord = core.TaskExecutionRecord

// Error taxonomy
var (
	ErrInterrupted       = core.ErrInterrupted
	ErrResourceExhausted = core.ErrResourceExhausted
	ErrTimeout           = core.ErrTimeout
	ErrExecutorClosed    = core.ErrExecutorClosed
	ErrInvalidArgument   = core.ErrInvalidArgument
)

// Convenience functions
var (
	F             = core.F
	Sleep         = core.Sleep
	CurrentWorker = core.CurrentWorker
)
