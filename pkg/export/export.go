// Package export writes the Pareto set of a run as CSV, JSON or an HTML
// scatter chart.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/kilianp07/moeopf/core/model"
)

// Row is one archived dispatch.
type Row struct {
	SetpointsMW         []float64 `json:"setpoints_mw"`
	Cost                float64   `json:"cost"`
	Emission            float64   `json:"emission"`
	VoltageViolation    float64   `json:"voltage_violation"`
	GenerationViolation float64   `json:"generation_violation"`
}

// Front is the exported Pareto set of a run.
type Front struct {
	RunID      string   `json:"run_id"`
	Generators []string `json:"generators"`
	Rows       []Row    `json:"solutions"`
}

// NewFront builds a Front from archived solutions. ids name the decision
// variables; nil yields x1..xn.
func NewFront(runID string, ids []string, sols []model.Solution) Front {
	f := Front{RunID: runID, Generators: ids, Rows: make([]Row, 0, len(sols))}
	for _, s := range sols {
		f.Rows = append(f.Rows, Row{
			SetpointsMW:         append([]float64(nil), s.X...),
			Cost:                s.Result.Cost(),
			Emission:            s.Result.Emission(),
			VoltageViolation:    s.Result.VoltageViolation(),
			GenerationViolation: s.Result.GenerationViolation(),
		})
	}
	if f.Generators == nil && len(f.Rows) > 0 {
		for i := range f.Rows[0].SetpointsMW {
			f.Generators = append(f.Generators, "x"+strconv.Itoa(i+1))
		}
	}
	return f
}

// WriteJSON writes the front to w in JSON format.
func WriteJSON(w io.Writer, f Front) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(f)
}

// WriteCSV writes one row per solution: the setpoints followed by cost,
// emission, voltage_violation and generation_violation.
func WriteCSV(w io.Writer, f Front) error {
	cw := csv.NewWriter(w)
	header := append(append([]string(nil), f.Generators...), "cost", "emission", "voltage_violation", "generation_violation")
	if err := cw.Write(header); err != nil {
		return err
	}
	for i, r := range f.Rows {
		if len(r.SetpointsMW) != len(f.Generators) {
			return fmt.Errorf("row %d has %d setpoints for %d generators", i, len(r.SetpointsMW), len(f.Generators))
		}
		rec := make([]string, 0, len(header))
		for _, v := range r.SetpointsMW {
			rec = append(rec, formatFloat(v))
		}
		rec = append(rec, formatFloat(r.Cost), formatFloat(r.Emission), formatFloat(r.VoltageViolation), formatFloat(r.GenerationViolation))
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
