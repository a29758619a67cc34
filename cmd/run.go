package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/moeopf/app"
	"github.com/kilianp07/moeopf/infra/logger"
)

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().Int("max-evaluations", 0, "override search.max_evaluations")
	cmd.Flags().Int64("seed", 0, "override search.seed")
	cmd.Flags().Int("workers", 0, "override search.workers")
	cmd.Flags().String("results-dir", "", "override results.dir")
}

// applyRunFlags copies the flags set on the command line into the config.
func (c *cli) applyRunFlags(cmd *cobra.Command) error {
	f := cmd.Flags()
	if f.Changed("max-evaluations") {
		v, _ := f.GetInt("max-evaluations")
		c.cfg.Search.MaxEvaluations = v
	}
	if f.Changed("seed") {
		v, _ := f.GetInt64("seed")
		c.cfg.Search.Seed = v
	}
	if f.Changed("workers") {
		v, _ := f.GetInt("workers")
		c.cfg.Search.Workers = v
	}
	if f.Changed("results-dir") {
		v, _ := f.GetString("results-dir")
		c.cfg.Results.Dir = v
	}
	return c.cfg.Validate()
}

func (c *cli) run(cmd *cobra.Command, _ []string) error {
	if err := c.applyRunFlags(cmd); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := app.New(c.cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()
	res, err := svc.Run(ctx)
	if res != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d evaluations, %d solutions, %d diverged\n",
			res.RunID, res.Evaluations, len(res.Archive), res.Diverged)
	}
	if errors.Is(err, context.Canceled) {
		logger.New("main").Warnf("search stopped before its budget was spent")
		return nil
	}
	return err
}
