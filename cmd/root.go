package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/moeopf/config"
	coremon "github.com/kilianp07/moeopf/core/monitoring"
	"github.com/kilianp07/moeopf/infra/logger"
	inframon "github.com/kilianp07/moeopf/infra/monitoring"
)

// cli holds the state shared by the subcommands of one invocation.
type cli struct {
	cfgPath  string
	logLevel string
	cfg      *config.Config
}

// NewRootCmd builds the command tree. Without a subcommand it runs a search.
func NewRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:               "moeopf",
		Short:             "Multi-objective optimal power dispatch",
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
		PersistentPostRun: func(*cobra.Command, []string) { coremon.Flush(2 * time.Second) },
		RunE:              c.run,
	}
	root.PersistentFlags().StringVarP(&c.cfgPath, "config", "c", "", "configuration file (yaml or json)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "override log_level")
	addRunFlags(root)

	run := &cobra.Command{
		Use:   "run",
		Short: "Search the Pareto set of dispatches and write the results",
		RunE:  c.run,
	}
	addRunFlags(run)
	root.AddCommand(run, c.evaluateCmd(), c.validateCmd())
	return root
}

// Execute runs the CLI.
func Execute() error { return NewRootCmd().Execute() }

func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(c.cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if c.logLevel != "" {
		cfg.LogLevel = c.logLevel
	}
	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		return err
	}
	mon, err := inframon.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		logger.New("main").Warnf("sentry disabled: %v", err)
	} else {
		coremon.Init(mon)
	}
	c.cfg = cfg
	return nil
}
