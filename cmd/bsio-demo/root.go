package main

import (
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Swind/go-bsio/config"
	"github.com/Swind/go-bsio/core"
)

// demo carries what every subcommand needs once the root has run.
type demo struct {
	configPath string
	workers    int

	cfg    *config.Config
	logger core.Logger
	closer io.Closer
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	d := &demo{}
	rc := &cobra.Command{
		Use:   "bsio-demo",
		Short: "Demonstrates the bsio thread pool, coroutines and reactor.",
		Long: `Demonstrates the bsio thread pool, coroutines and reactor.

Each subcommand runs one scenario and prints its result. Settings come from
the TOML file given with --config; flags override the file.
`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return d.setup(cmd.Flags())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if d.closer != nil {
				return d.closer.Close()
			}
			return nil
		},
	}
	flags := rc.PersistentFlags()
	flags.StringVarP(&d.configPath, "config", "c", "", "Configuration file to read from.")
	flags.IntVarP(&d.workers, "workers", "w", 0, "Number of pool workers; overrides pool.workers.")

	rc.AddCommand(newCounterCommand(d))
	rc.AddCommand(newFibonacciCommand(d))
	rc.AddCommand(newPriorityCommand(d))
	if echo := newEchoCommand(d); echo != nil {
		rc.AddCommand(echo)
	}

	rc.SetOut(stdout)
	rc.SetErr(stderr)
	return rc
}

func (d *demo) setup(flags *pflag.FlagSet) error {
	cfg, err := config.Load(d.configPath)
	if err != nil {
		return err
	}
	if flags.Changed("workers") {
		cfg.Pool.Workers = d.workers
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	logger, closer, err := cfg.Logger()
	if err != nil {
		return err
	}
	d.cfg, d.logger, d.closer = cfg, logger, closer
	return nil
}

// newPool starts a pool from the loaded configuration.
func (d *demo) newPool() *core.StaticThreadPool {
	return core.NewStaticThreadPool(d.cfg.Pool.Workers, d.cfg.PoolOptions(d.logger))
}
