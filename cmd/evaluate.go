package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/kilianp07/moeopf/app"
	"github.com/kilianp07/moeopf/core/model"
)

type evaluation struct {
	Generators          []string              `json:"generators"`
	X                   []float64             `json:"x"`
	Cost                float64               `json:"cost"`
	Emission            float64               `json:"emission"`
	VoltageViolation    float64               `json:"voltage_violation"`
	GenerationViolation float64               `json:"generation_violation"`
	Feasible            bool                  `json:"feasible"`
	OperatingPoint      *model.OperatingPoint `json:"operating_point,omitempty"`
}

func (c *cli) evaluateCmd() *cobra.Command {
	var (
		x      []float64
		withOP bool
	)
	cmd := &cobra.Command{
		Use:     "evaluate",
		Short:   "Evaluate one dispatch and print its objectives as JSON",
		Example: "  moeopf evaluate --x 77.5,77.5,77.5,77.5,77.5",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := app.LoadModel(c.cfg)
			if err != nil {
				return err
			}
			if len(x) == 0 {
				x = midpoint(m.Problem.Bounds)
			}
			res, op, err := m.Evaluator.EvaluatePoint(cmd.Context(), x)
			if err != nil {
				return err
			}
			out := evaluation{
				Generators:          m.Evaluator.GeneratorIDs(),
				X:                   x,
				Cost:                res.Cost(),
				Emission:            res.Emission(),
				VoltageViolation:    res.VoltageViolation(),
				GenerationViolation: res.GenerationViolation(),
				Feasible:            res.Feasible(),
			}
			if withOP {
				out.OperatingPoint = &op
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().Float64SliceVar(&x, "x", nil, "setpoints in MW, one per controllable generator (default: bound midpoints)")
	cmd.Flags().BoolVar(&withOP, "operating-point", false, "include generator outputs and bus voltages")
	return cmd
}

func midpoint(bounds []model.Bound) []float64 {
	x := make([]float64, len(bounds))
	for i, b := range bounds {
		x[i] = b.Mid()
	}
	return x
}
