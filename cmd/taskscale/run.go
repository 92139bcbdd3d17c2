package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	taskscaling "github.com/Swind/go-task-scaling"
	"github.com/Swind/go-task-scaling/config"
	"github.com/Swind/go-task-scaling/core"
)

// harnessFlags maps harness flags to the config paths they override.
var harnessFlags = map[string]string{
	"tasks":        "harness.tasks",
	"strategy":     "harness.strategy",
	"pool-size":    "harness.pool_size",
	"max-threads":  "harness.max_threads",
	"work":         "harness.work",
	"timeout":      "harness.timeout",
	"task-logs":    "harness.task_logs",
	"metrics-addr": "metrics.address",
}

func newRunCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one batch of tasks on one strategy",
		Example: `  # five 1s tasks on a pool of two workers (about 3s)
  taskscale run

  # 100,000 tasks as goroutines
  taskscale run --strategy lightweight --tasks 100000 --task-logs=false

  # a million tasks, one OS thread each, until the thread budget runs out
  taskscale run --strategy thread --tasks 1000000 --task-logs=false

  # serve Prometheus metrics while running
  taskscale run --strategy pool --pool-size 8 --tasks 64 --metrics-addr :2112`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHarness(cmd, g)
		},
	}

	addHarnessFlags(cmd)
	cmd.Flags().String("strategy", "pool", "execution strategy (pool, thread, lightweight)")
	return cmd
}

// addHarnessFlags registers the workload flags shared by run and compare.
func addHarnessFlags(cmd *cobra.Command) {
	defaults := config.DefaultConfig()
	f := cmd.Flags()
	f.IntP("tasks", "n", defaults.Harness.Tasks, "number of tasks to submit")
	f.Int("pool-size", defaults.Harness.PoolSize, "worker count for the pool strategy")
	f.Int("max-threads", defaults.Harness.MaxThreads, "OS thread budget for the thread strategy")
	f.DurationP("work", "w", defaults.Harness.Work, "simulated work per task")
	f.Duration("timeout", defaults.Harness.Timeout, "give up waiting after this long (0 waits forever)")
	f.Bool("task-logs", defaults.Harness.TaskLogs, "write one report line per task")
	f.String("metrics-addr", "", "serve Prometheus metrics on this address")
}

// harnessConfig loads configuration with the command's explicit flags applied.
func harnessConfig(cmd *cobra.Command, g *globalOptions) (*config.Config, error) {
	overrides := changedFlags(cmd, harnessFlags)
	if _, ok := overrides["metrics.address"]; ok {
		overrides["metrics.enabled"] = "true"
	}
	return g.loadConfig(overrides)
}

func runHarness(cmd *cobra.Command, g *globalOptions) error {
	cfg, err := harnessConfig(cmd, g)
	if err != nil {
		return err
	}
	strategy, err := cfg.Harness.ExecutionStrategy()
	if err != nil {
		return err
	}

	logger, flush, err := g.newLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer flush()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics, err := maybeStartMetrics(ctx, cfg.Metrics, logger)
	if err != nil {
		return err
	}
	defer metrics.Close()

	opts := append(harnessOptions(cfg.Harness, logger), metrics.options()...)
	report, err := taskscaling.Run(ctx, cfg.Harness.Tasks, strategy, cfg.Harness.Work, opts...)
	metrics.release(strategy.String())
	if err != nil && !errors.Is(err, core.ErrTimeout) {
		return err
	}

	printReport(cmd.OutOrStdout(), report)
	return nil
}

func maybeStartMetrics(ctx context.Context, cfg config.MetricsConfig, logger core.Logger) (*metricsServer, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	return startMetrics(ctx, cfg, logger)
}

func harnessOptions(cfg config.HarnessConfig, logger core.Logger) []taskscaling.Option {
	return []taskscaling.Option{
		taskscaling.WithLogger(logger),
		taskscaling.WithTimeout(cfg.Timeout),
		taskscaling.WithTaskLogs(cfg.TaskLogs),
	}
}

func printReport(w io.Writer, r taskscaling.Report) {
	fmt.Fprintf(w, "run:         %s\n", r.RunID)
	fmt.Fprintf(w, "strategy:    %s\n", r.Strategy)
	fmt.Fprintf(w, "tasks:       %d submitted of %d\n", r.Submitted, r.Tasks)
	fmt.Fprintf(w, "completed:   %d\n", r.Completed)
	if r.Failed() > 0 {
		fmt.Fprintf(w, "failed:      %d (interrupted %d, panicked %d, rejected %d)\n",
			r.Failed(), r.Interrupted, r.Panicked, r.Rejected)
	}
	fmt.Fprintf(w, "elapsed:     %v\n", r.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "peak:        %d concurrent\n", r.PeakConcurrency)
	fmt.Fprintf(w, "throughput:  %.1f tasks/s\n", r.Throughput())
	if r.Latency.Count > 0 {
		fmt.Fprintf(w, "latency:     p50 %v  p90 %v  p99 %v  max %v\n",
			r.Latency.P50.Round(time.Millisecond), r.Latency.P90.Round(time.Millisecond),
			r.Latency.P99.Round(time.Millisecond), r.Latency.Max.Round(time.Millisecond))
	}
	if r.TimedOut {
		fmt.Fprintln(w, "result:      timed out before every task finished")
	}
}
