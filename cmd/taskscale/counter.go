package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Swind/go-task-scaling/core"
	"github.com/Swind/go-task-scaling/counter"
)

type counterOptions struct {
	mode   string
	n      int
	trials int
}

func newCounterCmd(g *globalOptions) *cobra.Command {
	o := &counterOptions{}
	cmd := &cobra.Command{
		Use:   "counter",
		Short: "Increment a shared counter from many goroutines",
		Long: `counter starts N goroutines that each increment one shared counter once,
then prints the final value. The guarded modes always reach N:

  - sync:   a mutex around read-modify-write
  - atomic: an atomic add
  - actor:  a goroutine that owns the value, reached over a channel

The racy mode does an unguarded read and write and usually loses updates.`,
		Example: `  taskscale counter --mode racy --n 10000 --trials 5`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCounter(cmd, g, o)
		},
	}

	cmd.Flags().StringVarP(&o.mode, "mode", "m", string(counter.ModeSync), "counter mode (sync, atomic, actor, racy)")
	cmd.Flags().IntVar(&o.n, "n", 1000, "number of concurrent increments")
	cmd.Flags().IntVar(&o.trials, "trials", 1, "number of rounds")
	return cmd
}

func runCounter(cmd *cobra.Command, g *globalOptions, o *counterOptions) error {
	cfg, err := g.loadConfig(map[string]string{})
	if err != nil {
		return err
	}
	probe, err := counter.NewCounter(o.mode)
	if err != nil {
		return err
	}
	counter.Close(probe)

	logger, flush, err := g.newLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer flush()

	mode := counter.Mode(o.mode)
	logger.Info("counter starting", core.F("mode", mode), core.F("n", o.n), core.F("trials", o.trials))
	trials, err := counter.RunTrials(mode, o.n, o.trials, logger)
	if err != nil {
		return err
	}

	printTrials(cmd.OutOrStdout(), trials)
	return nil
}

func printTrials(w io.Writer, trials []counter.Trial) {
	for i, t := range trials {
		fmt.Fprintf(w, "trial %d: mode=%s expected=%d final=%d lost=%d\n", i+1, t.Mode, t.N, t.Final, t.Lost())
	}
}
