package core

import "errors"

var (
	// ErrInterrupted is returned when a suspended task is asked to stop early.
	// Non-fatal: the task abandons its remaining work.
	ErrInterrupted = errors.New("task interrupted")

	// ErrResourceExhausted is returned when an executor cannot allocate a new
	// execution unit for a task.
	ErrResourceExhausted = errors.New("execution resources exhausted")

	// ErrTimeout is returned when the barrier wait exceeds its deadline.
	ErrTimeout = errors.New("wait timed out")

	// ErrExecutorClosed is returned when a task is submitted after shutdown.
	ErrExecutorClosed = errors.New("executor closed")

	// ErrInvalidArgument is returned for negative task counts, negative work
	// durations or malformed strategy configuration.
	ErrInvalidArgument = errors.New("invalid argument")
)
