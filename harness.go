package taskscaling

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Swind/go-task-scaling/core"
)

const recentTaskCount = 10

// Option configures a harness run.
type Option func(*options)

type options struct {
	logger       core.Logger
	metrics      core.Metrics
	panicHandler core.PanicHandler
	timeout      time.Duration
	taskHook     func(id int)
	observer     func(Executor)
	quietTasks   bool
}

// WithLogger sets the sink for per-task and summary lines.
// Defaults to core.DefaultLogger.
func WithLogger(l core.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m core.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithPanicHandler overrides the executor's panic handler.
func WithPanicHandler(h core.PanicHandler) Option {
	return func(o *options) { o.panicHandler = h }
}

// WithTimeout bounds the barrier wait, measured from the first submission.
// Zero means wait indefinitely. Expiry does not cancel running tasks.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithTaskHook is called at the start of every task, on the task's own goroutine.
func WithTaskHook(hook func(id int)) Option {
	return func(o *options) { o.taskHook = hook }
}

// WithObserver receives the executor right after it starts, before any task
// is submitted.
func WithObserver(fn func(Executor)) Option {
	return func(o *options) { o.observer = fn }
}

// WithTaskLogs toggles the per-task report lines. Summary lines are always
// written. Runs of a million tasks want this off.
func WithTaskLogs(enabled bool) Option {
	return func(o *options) { o.quietTasks = !enabled }
}

func newOptions(opts []Option) *options {
	o := &options{
		logger:  core.NewDefaultLogger(),
		metrics: &core.NilMetrics{},
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = core.NewNoOpLogger()
	}
	if o.metrics == nil {
		o.metrics = &core.NilMetrics{}
	}
	if o.panicHandler == nil {
		o.panicHandler = &core.LoggingPanicHandler{Logger: o.logger}
	}
	return o
}

// run holds the counters of one harness invocation.
type run struct {
	id       string
	strategy string
	opts     *options

	completed   atomic.Int64
	interrupted atomic.Int64
	panicked    atomic.Int64

	latency *latencyRecorder
	history *core.TaskHistory
}

// Run submits taskCount tasks to a fresh executor built from strategy. Each
// task reports its worker, blocks for simulatedWork and returns. Run waits
// for all of them and reports the elapsed wall-clock time.
//
// Tasks refused by the executor are logged and counted in Report.Rejected;
// the remaining tasks still run. Cancelling ctx interrupts sleeping tasks.
// When the WithTimeout deadline passes first, Run returns the partial Report
// together with an error wrapping core.ErrTimeout; the executor is released
// in the background once its tasks finish.
func Run(ctx context.Context, taskCount int, strategy ExecutionStrategy, simulatedWork time.Duration, opts ...Option) (Report, error) {
	if taskCount < 0 {
		return Report{}, fmt.Errorf("%w: task count must be >= 0, got %d", core.ErrInvalidArgument, taskCount)
	}
	if simulatedWork < 0 {
		return Report{}, fmt.Errorf("%w: simulated work must be >= 0, got %v", core.ErrInvalidArgument, simulatedWork)
	}
	if err := strategy.Validate(); err != nil {
		return Report{}, err
	}

	o := newOptions(opts)
	r := &run{
		id:       uuid.NewString(),
		strategy: strategy.String(),
		opts:     o,
		latency:  newLatencyRecorder(),
		history:  core.NewTaskHistory(recentTaskCount),
	}

	exec, err := NewExecutor(ctx, strategy, &core.ExecutorConfig{
		PanicHandler:        o.panicHandler,
		Metrics:             o.metrics,
		RejectedTaskHandler: &core.NoOpRejectedTaskHandler{},
	})
	if err != nil {
		return Report{}, err
	}
	if o.observer != nil {
		o.observer(exec)
	}
	if strategy.Kind == KindOnePerTask {
		if granted := exec.Stats().Workers; granted < strategy.MaxThreads {
			o.logger.Warn("thread budget capped by OS limits",
				core.F("run", r.id),
				core.F("requested", strategy.MaxThreads),
				core.F("granted", granted),
			)
		}
	}

	o.logger.Info("run starting",
		core.F("run", r.id),
		core.F("strategy", r.strategy),
		core.F("tasks", taskCount),
		core.F("work", simulatedWork),
	)

	start := time.Now()
	waitCtx := context.Background()
	if o.timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithDeadline(waitCtx, start.Add(o.timeout))
		defer cancel()
	}

	var submitted, rejected int
	for i := 0; i < taskCount; i++ {
		ts := core.TaskSpec{ID: i, Work: simulatedWork}
		if err := exec.Submit(r.task(ts, time.Now())); err != nil {
			rejected++
			if o.quietTasks {
				continue
			}
			o.logger.Warn("task rejected",
				core.F("run", r.id),
				core.F("task", i),
				core.F("error", err),
			)
			continue
		}
		submitted++
	}

	waitErr := exec.Wait(waitCtx)
	elapsed := time.Since(start)

	if waitErr != nil {
		go func() {
			_ = exec.Wait(context.Background())
			exec.Shutdown()
		}()
	} else {
		exec.Shutdown()
	}

	report := Report{
		RunID:           r.id,
		Strategy:        r.strategy,
		Tasks:           taskCount,
		Submitted:       submitted,
		Completed:       int(r.completed.Load()),
		Interrupted:     int(r.interrupted.Load()),
		Panicked:        int(r.panicked.Load()),
		Rejected:        rejected,
		TimedOut:        waitErr != nil,
		Elapsed:         elapsed,
		PeakConcurrency: exec.Stats().Peak,
		Latency:         r.latency.Summary(),
		Recent:          r.history.Recent(recentTaskCount),
	}
	o.metrics.RecordRunElapsed(r.strategy, elapsed)

	fields := []core.Field{
		core.F("run", r.id),
		core.F("strategy", r.strategy),
		core.F("elapsed", elapsed),
		core.F("completed", report.Completed),
		core.F("failed", report.Failed()),
		core.F("rejected", report.Rejected),
		core.F("peak", report.PeakConcurrency),
	}
	if waitErr != nil {
		o.logger.Warn("run timed out", append(fields, core.F("error", waitErr))...)
		return report, fmt.Errorf("run %s: %w", r.id, waitErr)
	}
	o.logger.Info("run finished", fields...)
	return report, nil
}

// task builds the body of one harness task.
func (r *run) task(ts core.TaskSpec, submittedAt time.Time) core.Task {
	return func(ctx context.Context) {
		startedAt := time.Now()
		worker := "unknown"
		if w, ok := core.CurrentWorker(ctx); ok {
			worker = w.String()
		}
		outcome := core.OutcomeCompleted

		defer func() {
			if rec := recover(); rec != nil {
				r.finish(ts, worker, core.OutcomePanicked, submittedAt, startedAt)
				panic(rec)
			}
			r.finish(ts, worker, outcome, submittedAt, startedAt)
		}()

		if r.opts.taskHook != nil {
			r.opts.taskHook(ts.ID)
		}
		if !r.opts.quietTasks {
			r.opts.logger.Info("task running",
				core.F("run", r.id),
				core.F("task", ts.ID),
				core.F("worker", worker),
			)
		}

		if err := core.Sleep(ctx, ts.Work); err != nil {
			outcome = core.OutcomeInterrupted
			if !r.opts.quietTasks {
				r.opts.logger.Warn("task interrupted",
					core.F("run", r.id),
					core.F("task", ts.ID),
					core.F("error", err),
				)
			}
		}
	}
}

func (r *run) finish(ts core.TaskSpec, worker string, outcome core.TaskOutcome, submittedAt, startedAt time.Time) {
	finishedAt := time.Now()
	switch outcome {
	case core.OutcomeCompleted:
		r.completed.Add(1)
		r.opts.metrics.RecordTaskDuration(r.strategy, finishedAt.Sub(startedAt))
	case core.OutcomeInterrupted:
		r.interrupted.Add(1)
		r.opts.metrics.RecordTaskFailure(r.strategy, "interrupted")
	case core.OutcomePanicked:
		r.panicked.Add(1)
	}
	r.latency.Record(finishedAt.Sub(submittedAt))
	r.history.Add(core.TaskExecutionRecord{
		TaskID:     ts.ID,
		Worker:     worker,
		Strategy:   r.strategy,
		Outcome:    outcome,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		Duration:   finishedAt.Sub(startedAt),
	})
}

// Compare runs the same workload over each strategy in turn. A timed-out run
// does not stop the comparison; its error is joined into the result.
func Compare(ctx context.Context, taskCount int, simulatedWork time.Duration, strategies []ExecutionStrategy, opts ...Option) ([]Report, error) {
	reports := make([]Report, 0, len(strategies))
	var errs []error
	for _, s := range strategies {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		report, err := Run(ctx, taskCount, s, simulatedWork, opts...)
		if err != nil && !errors.Is(err, core.ErrTimeout) {
			return reports, err
		}
		if err != nil {
			errs = append(errs, err)
		}
		reports = append(reports, report)
	}
	return reports, errors.Join(errs...)
}
