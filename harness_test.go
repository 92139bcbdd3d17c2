package taskscaling

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/Swind/go-task-scaling/core"
)

var quiet = WithLogger(core.NewNoOpLogger())

func TestRun_CompletesEveryTask(t *testing.T) {
	strategies := []ExecutionStrategy{
		BoundedPool(1),
		BoundedPool(4),
		OnePerTaskWithLimit(64),
		Lightweight(),
	}
	counts := []int{0, 1, 7, 50}

	for _, s := range strategies {
		for _, n := range counts {
			t.Run(fmt.Sprintf("%s/%d", s, n), func(t *testing.T) {
				report, err := Run(context.Background(), n, s, time.Millisecond, quiet)
				if err != nil {
					t.Fatalf("Run failed: %v", err)
				}
				if report.Completed != n {
					t.Errorf("Completed = %d, want %d", report.Completed, n)
				}
				if report.Submitted != n || report.Failed() != 0 {
					t.Errorf("Submitted = %d, Failed = %d", report.Submitted, report.Failed())
				}
				if report.Latency.Count != int64(n) {
					t.Errorf("Latency.Count = %d, want %d", report.Latency.Count, n)
				}
			})
		}
	}
}

func TestRun_CompletionCountProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 40).Draw(t, "tasks")
		size := rapid.IntRange(1, 8).Draw(t, "poolSize")
		kind := rapid.SampledFrom([]StrategyKind{KindBoundedPool, KindOnePerTask, KindLightweight}).Draw(t, "kind")

		s := ExecutionStrategy{Kind: kind, PoolSize: size, MaxThreads: 64}
		report, err := Run(context.Background(), n, s, 0, quiet)
		if err != nil {
			t.Fatalf("Run(%d, %s): %v", n, s, err)
		}
		if report.Completed != n {
			t.Fatalf("Run(%d, %s) completed %d", n, s, report.Completed)
		}
		if kind == KindBoundedPool && report.PeakConcurrency > size {
			t.Fatalf("peak %d exceeds pool size %d", report.PeakConcurrency, size)
		}
	})
}

// TestRun_BoundedPoolBatches verifies queued tasks wait for a free worker
// Given: 5 tasks of 100ms each on a pool of 2
// When: The run finishes
// Then: It took three batches, about 300ms
func TestRun_BoundedPoolBatches(t *testing.T) {
	report, err := Run(context.Background(), 5, BoundedPool(2), 100*time.Millisecond, quiet)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if report.Elapsed < 290*time.Millisecond || report.Elapsed > 800*time.Millisecond {
		t.Errorf("Elapsed = %v, want about 300ms", report.Elapsed)
	}
	if report.PeakConcurrency != 2 {
		t.Errorf("PeakConcurrency = %d, want 2", report.PeakConcurrency)
	}
}

func TestRun_LightweightOverlaps(t *testing.T) {
	report, err := Run(context.Background(), 1000, Lightweight(), 100*time.Millisecond, quiet)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Completed != 1000 {
		t.Errorf("Completed = %d, want 1000", report.Completed)
	}
	if report.Elapsed > time.Second {
		t.Errorf("Elapsed = %v, sleeping tasks did not overlap", report.Elapsed)
	}
}

func TestRun_LightweightHundredThousand(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping 100k task run in short mode")
	}

	report, err := Run(context.Background(), 100_000, Lightweight(), time.Second, quiet)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Completed != 100_000 {
		t.Errorf("Completed = %d, want 100000", report.Completed)
	}
	if report.Elapsed >= 5*time.Second {
		t.Errorf("Elapsed = %v, want < 5s", report.Elapsed)
	}
}

// TestRun_OnePerTaskBudget verifies thread exhaustion is a per-task failure
// Given: A thread budget of 4 and 20 tasks that each hold a thread for 200ms
// When: All tasks are submitted back to back
// Then: Some are rejected with ErrResourceExhausted and the run still completes
func TestRun_OnePerTaskBudget(t *testing.T) {
	report, err := Run(context.Background(), 20, OnePerTaskWithLimit(4), 200*time.Millisecond, quiet)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if report.Rejected == 0 {
		t.Error("expected rejected tasks once the thread budget was spent")
	}
	if report.Completed+report.Rejected != 20 {
		t.Errorf("Completed(%d) + Rejected(%d) != 20", report.Completed, report.Rejected)
	}
	if report.PeakConcurrency > 4 {
		t.Errorf("PeakConcurrency = %d, exceeds budget 4", report.PeakConcurrency)
	}
}

func TestRun_RejectionsAreLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := core.NewDefaultLoggerTo(log.New(&buf, "", 0))

	report, err := Run(context.Background(), 6, OnePerTaskWithLimit(2), 100*time.Millisecond, WithLogger(logger))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	out := buf.String()
	if got := strings.Count(out, "task rejected"); got != report.Rejected {
		t.Errorf("logged %d rejections, report has %d", got, report.Rejected)
	}
	if !strings.Contains(out, core.ErrResourceExhausted.Error()) {
		t.Errorf("rejection log lacks the cause:\n%s", out)
	}
	if got := strings.Count(out, "task running"); got != report.Completed {
		t.Errorf("logged %d task lines, want %d", got, report.Completed)
	}
	if !strings.Contains(out, "run finished") {
		t.Error("missing run summary line")
	}
}

func TestRun_TaskLogsDisabled(t *testing.T) {
	var buf bytes.Buffer
	logger := core.NewDefaultLoggerTo(log.New(&buf, "", 0))

	report, err := Run(context.Background(), 6, OnePerTaskWithLimit(2), 50*time.Millisecond,
		WithLogger(logger), WithTaskLogs(false))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	out := buf.String()
	if strings.Contains(out, "task running") || strings.Contains(out, "task rejected") {
		t.Errorf("per-task lines written with task logs off:\n%s", out)
	}
	if !strings.Contains(out, "run finished") {
		t.Error("missing run summary line")
	}
	if !strings.Contains(out, fmt.Sprintf("rejected: %d", report.Rejected)) {
		t.Errorf("summary lacks rejected count %d:\n%s", report.Rejected, out)
	}
}

// TestRun_CancelInterruptsTasks verifies the decided interrupted-sleep behavior
// Given: 10 tasks sleeping 5s each
// When: The parent context is cancelled after 50ms
// Then: Every task aborts as interrupted and Run returns promptly
func TestRun_CancelInterruptsTasks(t *testing.T) {
	for _, s := range []ExecutionStrategy{BoundedPool(10), OnePerTaskWithLimit(16), Lightweight()} {
		t.Run(s.String(), func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			time.AfterFunc(50*time.Millisecond, cancel)

			report, err := Run(ctx, 10, s, 5*time.Second, quiet)
			if err != nil {
				t.Fatalf("Run failed: %v", err)
			}
			if report.Interrupted != 10 || report.Completed != 0 {
				t.Errorf("Interrupted = %d, Completed = %d", report.Interrupted, report.Completed)
			}
			if report.Elapsed > 2*time.Second {
				t.Errorf("Elapsed = %v, cancellation did not interrupt sleeps", report.Elapsed)
			}
		})
	}
}

func TestRun_Timeout(t *testing.T) {
	report, err := Run(context.Background(), 3, BoundedPool(1), 200*time.Millisecond,
		quiet, WithTimeout(50*time.Millisecond))

	if !errors.Is(err, core.ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if !report.TimedOut {
		t.Error("report not marked TimedOut")
	}
	if report.Elapsed > 200*time.Millisecond {
		t.Errorf("Elapsed = %v, want close to the 50ms deadline", report.Elapsed)
	}
	if report.Completed == 3 {
		t.Error("all tasks completed despite the deadline")
	}
}

func TestRun_InvalidArguments(t *testing.T) {
	tests := []struct {
		name     string
		n        int
		strategy ExecutionStrategy
		work     time.Duration
	}{
		{"negative count", -1, Lightweight(), 0},
		{"negative work", 1, Lightweight(), -time.Second},
		{"zero pool", 1, BoundedPool(0), 0},
		{"zero budget", 1, OnePerTaskWithLimit(0), 0},
		{"unknown kind", 1, ExecutionStrategy{Kind: "fibers"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Run(context.Background(), tt.n, tt.strategy, tt.work, quiet)
			if !errors.Is(err, core.ErrInvalidArgument) {
				t.Errorf("err = %v, want ErrInvalidArgument", err)
			}
		})
	}
}

func TestRun_PanicsAreCounted(t *testing.T) {
	var handled atomic.Int32
	hook := func(id int) {
		if id%3 == 0 {
			panic(fmt.Sprintf("task %d", id))
		}
	}

	report, err := Run(context.Background(), 9, BoundedPool(2), 0,
		quiet, WithTaskHook(hook), WithPanicHandler(panicCounter{&handled}))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if report.Panicked != 3 || report.Completed != 6 {
		t.Errorf("Panicked = %d, Completed = %d, want 3 and 6", report.Panicked, report.Completed)
	}
	if handled.Load() != 3 {
		t.Errorf("panic handler called %d times, want 3", handled.Load())
	}
}

func TestRun_TaskHookSeesEveryID(t *testing.T) {
	var mu sync.Mutex
	seen := make(map[int]bool)

	_, err := Run(context.Background(), 25, Lightweight(), 0, quiet, WithTaskHook(func(id int) {
		mu.Lock()
		seen[id] = true
		mu.Unlock()
	}))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	for i := 0; i < 25; i++ {
		if !seen[i] {
			t.Errorf("task %d never ran", i)
		}
	}
}

func TestRun_ReportDetails(t *testing.T) {
	var observed Executor
	report, err := Run(context.Background(), 12, BoundedPool(3), 5*time.Millisecond,
		quiet, WithObserver(func(e Executor) { observed = e }))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if observed == nil || observed.Name() != report.Strategy {
		t.Errorf("observer got %v, report strategy %q", observed, report.Strategy)
	}
	if report.RunID == "" {
		t.Error("missing RunID")
	}
	if len(report.Recent) != recentTaskCount {
		t.Errorf("len(Recent) = %d, want %d", len(report.Recent), recentTaskCount)
	}
	for _, rec := range report.Recent {
		if !strings.Contains(rec.Worker, "pool-worker#") {
			t.Errorf("record worker = %q", rec.Worker)
		}
		if rec.Outcome != core.OutcomeCompleted {
			t.Errorf("record outcome = %v", rec.Outcome)
		}
	}
	if report.Latency.P99 < report.Latency.P50 || report.Latency.Max < report.Latency.P99 {
		t.Errorf("latency percentiles out of order: %+v", report.Latency)
	}
	if report.Throughput() <= 0 {
		t.Error("throughput should be positive")
	}
	if !strings.Contains(report.String(), "bounded-pool(3)") {
		t.Errorf("String() = %q", report.String())
	}
}

func TestCompare(t *testing.T) {
	strategies := []ExecutionStrategy{BoundedPool(2), OnePerTaskWithLimit(8), Lightweight()}

	reports, err := Compare(context.Background(), 6, 10*time.Millisecond, strategies, quiet)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	if len(reports) != len(strategies) {
		t.Fatalf("got %d reports, want %d", len(reports), len(strategies))
	}
	for i, r := range reports {
		if r.Strategy != strategies[i].String() {
			t.Errorf("report %d strategy = %q", i, r.Strategy)
		}
		if r.Completed != 6 {
			t.Errorf("%s completed %d", r.Strategy, r.Completed)
		}
	}
}

func TestCompare_InvalidStrategyStops(t *testing.T) {
	strategies := []ExecutionStrategy{Lightweight(), BoundedPool(0), Lightweight()}

	reports, err := Compare(context.Background(), 2, 0, strategies, quiet)
	if !errors.Is(err, core.ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
	if len(reports) != 1 {
		t.Errorf("got %d reports before the failure, want 1", len(reports))
	}
}
