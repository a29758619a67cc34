package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/moeopf/app"
)

func (c *cli) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration, parameter tables and network",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := app.LoadModel(c.cfg)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			n := m.Network
			fmt.Fprintf(w, "network %s: %d buses, %d branches, %d generators (slack %s), load %.1f MW\n",
				n.Name, len(n.Buses), len(n.Branches), len(n.Generators), n.SlackID(), n.TotalLoadMW())
			bounds := m.Bounds()
			for _, id := range m.Evaluator.GeneratorIDs() {
				b := bounds[id]
				fmt.Fprintf(w, "  %s in [%g, %g] MW\n", id, b.Min, b.Max)
			}
			x := midpoint(m.Problem.Bounds)
			res, err := m.Evaluator.Evaluate(cmd.Context(), x)
			if err != nil {
				return fmt.Errorf("midpoint dispatch: %w", err)
			}
			fmt.Fprintf(w, "midpoint dispatch: cost %.4f, emission %.5f, voltage violation %.5f, generation violation %.5f\n",
				res.Cost(), res.Emission(), res.VoltageViolation(), res.GenerationViolation())
			fmt.Fprintln(w, "ok")
			return nil
		},
	}
}
