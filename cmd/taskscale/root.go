package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Swind/go-task-scaling/config"
	"github.com/Swind/go-task-scaling/core"
	"github.com/Swind/go-task-scaling/logging"
)

const (
	// Version is the current CLI version.
	Version = "0.1.0"
	// Banner is printed by --version.
	Banner = `
  _            _                   _
 | |_ __ _ ___| | __  ___  ___ __ _| | ___
 | __/ _' / __| |/ / / __|/ __/ _' | |/ _ \
 | || (_| \__ \   <  \__ \ (_| (_| | |  __/
  \__\__,_|___/_|\_\ |___/\___\__,_|_|\___|  %s
`
)

// globalOptions holds the persistent flags shared by every subcommand.
type globalOptions struct {
	cfgFile string
	debug   bool
	quiet   bool
}

// newRootCmd builds the command tree. Each call returns a fresh tree so
// tests can execute commands independently.
func newRootCmd() *cobra.Command {
	g := &globalOptions{}

	root := &cobra.Command{
		Use:   "taskscale",
		Short: "Measure how task execution strategies scale",
		Long: `taskscale submits a batch of blocking tasks to one of three execution
strategies and reports how long the batch takes:

  - pool:        a fixed number of reusable workers, extra tasks queue
  - thread:      one OS thread per task, under a thread budget
  - lightweight: one goroutine per task`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&g.cfgFile, "config", "", "path to a YAML config file")
	root.PersistentFlags().BoolVar(&g.debug, "debug", false, "enable debug logging")
	root.PersistentFlags().BoolVarP(&g.quiet, "quiet", "q", false, "suppress log output")

	root.CompletionOptions.DisableDefaultCmd = true
	root.SetVersionTemplate(fmt.Sprintf(Banner, Version) + "\n")

	root.AddCommand(newRunCmd(g), newCompareCmd(g), newCounterCmd(g))
	return root
}

// loadConfig resolves configuration for a subcommand. overrides maps config
// dot paths to values of flags the user set explicitly.
func (g *globalOptions) loadConfig(overrides map[string]string) (*config.Config, error) {
	if g.debug {
		overrides["logging.level"] = "debug"
	}
	cfg, err := config.NewLoader().
		WithConfigPath(g.cfgFile).
		WithCmdArgs(overrides).
		Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLogger returns the run's logger and a flush function.
func (g *globalOptions) newLogger(cfg config.LoggingConfig) (core.Logger, func(), error) {
	if g.quiet {
		return core.NewNoOpLogger(), func() {}, nil
	}
	l, err := logging.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	return l, func() { _ = l.Sync() }, nil
}

// changedFlags collects the flags set on the command line, keyed by the
// config path they override.
func changedFlags(cmd *cobra.Command, paths map[string]string) map[string]string {
	out := make(map[string]string, len(paths))
	for name, path := range paths {
		f := cmd.Flags().Lookup(name)
		if f != nil && f.Changed {
			out[path] = f.Value.String()
		}
	}
	return out
}
