package powerflow

import (
	"gonum.org/v1/gonum/mat"
)

// admittance builds the bus admittance matrix split into its conductance
// and susceptance parts.
func admittance(n *Network, busIdx map[string]int) (g, b *mat.Dense) {
	size := len(n.Buses)
	y := make([]complex128, size*size)
	at := func(i, k int) *complex128 { return &y[i*size+k] }

	for _, br := range n.Branches {
		f, t := busIdx[br.From], busIdx[br.To]
		ys := 1 / complex(br.R, br.X)
		ch := complex(0, br.B/2)
		tap := br.Tap
		if tap == 0 {
			tap = 1
		}
		tc := complex(tap, 0)
		*at(f, f) += (ys + ch) / (tc * tc)
		*at(t, t) += ys + ch
		*at(f, t) -= ys / tc
		*at(t, f) -= ys / tc
	}
	for i, bus := range n.Buses {
		*at(i, i) += complex(bus.GsMW/n.BaseMVA, bus.BsMVAr/n.BaseMVA)
	}

	g = mat.NewDense(size, size, nil)
	b = mat.NewDense(size, size, nil)
	for i := 0; i < size; i++ {
		for k := 0; k < size; k++ {
			v := y[i*size+k]
			g.Set(i, k, real(v))
			b.Set(i, k, imag(v))
		}
	}
	return g, b
}
