package core

import "time"

// TaskOutcome is how a harness task ended.
type TaskOutcome string

const (
	OutcomeCompleted   TaskOutcome = "completed"
	OutcomeInterrupted TaskOutcome = "interrupted"
	OutcomePanicked    TaskOutcome = "panicked"
)

// TaskExecutionRecord captures a finished task execution event.
type TaskExecutionRecord struct {
	TaskID     int
	Worker     string
	Strategy   string
	Outcome    TaskOutcome
	StartedAt  time.Time
	FinishedAt time.Time
	Duration   time.Duration
}

// PoolStats represents runtime observability state for an executor.
type PoolStats struct {
	ID      string
	Kind    string
	Workers int // fixed worker count, or the thread budget for per-thread executors; 0 when unbounded
	Queued  int
	Active  int
	Peak    int
	Running bool
}
