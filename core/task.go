package core

import (
	"context"
	"strconv"
	"time"
)

// Task is the unit of work (Closure)
type Task func(ctx context.Context)

// TaskSpec describes one harness task: its ordinal and how long it blocks.
// A TaskSpec is immutable once created.
type TaskSpec struct {
	ID   int
	Work time.Duration
}

// =============================================================================
// Worker identity: which execution unit is running the current task
// =============================================================================

// WorkerInfo identifies the execution unit a task runs on.
type WorkerInfo struct {
	// Executor is the name of the executor that owns the worker
	Executor string

	// ID is the worker index for pooled executors, or the task-scoped
	// unit number for per-task executors.
	ID int

	// Kind is "pool-worker", "os-thread" or "goroutine"
	Kind string
}

// String renders the identity the way task log lines print it.
func (w WorkerInfo) String() string {
	if w.Executor == "" {
		return w.Kind + "#" + strconv.Itoa(w.ID)
	}
	return w.Executor + "/" + w.Kind + "#" + strconv.Itoa(w.ID)
}

type workerKeyType struct{}

var workerKey workerKeyType

// WithWorker returns a context carrying the worker identity.
func WithWorker(ctx context.Context, w WorkerInfo) context.Context {
	return context.WithValue(ctx, workerKey, w)
}

// CurrentWorker retrieves the worker identity from context.
func CurrentWorker(ctx context.Context) (WorkerInfo, bool) {
	if v := ctx.Value(workerKey); v != nil {
		return v.(WorkerInfo), true
	}
	return WorkerInfo{}, false
}
