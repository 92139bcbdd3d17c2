package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	taskscaling "github.com/Swind/go-task-scaling"
	"github.com/Swind/go-task-scaling/core"
)

func newCompareCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "compare",
		Short:   "Run the same batch on every strategy in turn",
		Example: `  taskscale compare --tasks 1000 --pool-size 16 --work 500ms --task-logs=false`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompare(cmd, g)
		},
	}
	addHarnessFlags(cmd)
	return cmd
}

func runCompare(cmd *cobra.Command, g *globalOptions) error {
	cfg, err := harnessConfig(cmd, g)
	if err != nil {
		return err
	}
	strategies := []taskscaling.ExecutionStrategy{
		taskscaling.BoundedPool(cfg.Harness.PoolSize),
		taskscaling.OnePerTaskWithLimit(cfg.Harness.MaxThreads),
		taskscaling.Lightweight(),
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
	reports, err := taskscaling.Compare(ctx, cfg.Harness.Tasks, cfg.Harness.Work, strategies, opts...)
	for _, s := range strategies {
		metrics.release(s.String())
	}
	if err != nil && !errors.Is(err, core.ErrTimeout) && ctx.Err() == nil {
		return err
	}

	printComparison(cmd.OutOrStdout(), reports)
	return nil
}

func printComparison(w io.Writer, reports []taskscaling.Report) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STRATEGY\tCOMPLETED\tFAILED\tPEAK\tELAPSED\tTASKS/S\tP99")
	for _, r := range reports {
		elapsed := r.Elapsed.Round(time.Millisecond).String()
		if r.TimedOut {
			elapsed += " (timeout)"
		}
		fmt.Fprintf(tw, "%s\t%d/%d\t%d\t%d\t%s\t%.1f\t%v\n",
			r.Strategy, r.Completed, r.Tasks, r.Failed(), r.PeakConcurrency,
			elapsed, r.Throughput(), r.Latency.P99.Round(time.Millisecond))
	}
	_ = tw.Flush()
}
