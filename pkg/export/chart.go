package export

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// WriteFrontChart renders the cost/emission trade-off of the feasible rows
// as an HTML scatter chart. Infeasible rows form a second series.
func WriteFrontChart(w io.Writer, f Front) error {
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Pareto front", Subtitle: f.RunID}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Fuel cost ($/h)", Type: "value"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Emission (t/h)", Type: "value"}),
	)

	var feasible, infeasible []opts.ScatterData
	for _, r := range f.Rows {
		d := opts.ScatterData{Value: []float64{r.Cost, r.Emission}}
		if r.GenerationViolation == 0 {
			feasible = append(feasible, d)
		} else {
			infeasible = append(infeasible, d)
		}
	}
	scatter.AddSeries("feasible", feasible)
	if len(infeasible) > 0 {
		scatter.AddSeries("infeasible", infeasible)
	}
	if err := scatter.Render(w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}
