package params

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/moeopf/core/model"
)

func samplePaths() Paths {
	dir := filepath.Join("..", "..", "data", "sample")
	return Paths{
		GeneratorLimits: filepath.Join(dir, "generator_limits.csv"),
		Costs:           filepath.Join(dir, "costs.csv"),
		Emissions:       filepath.Join(dir, "emissions.csv"),
		BusLimits:       filepath.Join(dir, "bus_limits.csv"),
	}
}

func writeFile(t *testing.T, dir, name, data string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(data), 0o644))
	return p
}

func TestLoadSample(t *testing.T) {
	s, err := Load(samplePaths())
	require.NoError(t, err)

	assert.Equal(t, []string{"G_1", "G_2", "G_3", "G_4", "G_5", "G_6"}, s.GeneratorIDs())
	assert.Len(t, s.BusIDs(), 9)

	lim, ok := s.GeneratorLimit("G_3")
	require.True(t, ok)
	assert.Equal(t, model.GeneratorLimit{Min: 0.05, Max: 1.0}, lim)

	c, ok := s.Cost("G_4")
	require.True(t, ok)
	assert.Equal(t, model.CostCoefficients{A: 10, B: 100, C: 60}, c)

	e, ok := s.Emission("G_1")
	require.True(t, ok)
	assert.Equal(t, 2.857, e.Lambda)

	_, ok = s.BusLimit("B42")
	assert.False(t, ok)
}

func TestDecodeTableColumnOrder(t *testing.T) {
	data := "id,c,A,b\nG_1,3,1,2\n"
	rows, err := decodeTable(TableCosts, strings.NewReader(data), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []float64{1, 2, 3}, rows[0].vals)
}

func TestDecodeTableErrors(t *testing.T) {
	cases := []struct {
		name string
		data string
		want error
		row  int
	}{
		{"missing column", ",min\nG_1,0.1\n", ErrMissingColumn, 0},
		{"duplicate", ",min,max\nG_1,0,1\nG_1,0,1\n", ErrDuplicateID, 2},
		{"not a number", ",min,max\nG_1,0,abc\n", ErrMalformed, 1},
		{"empty id", ",min,max\n,0,1\n", ErrMalformed, 1},
		{"no rows", ",min,max\n", ErrMalformed, 0},
		{"empty", "", ErrMalformed, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := decodeTable(TableGeneratorLimits, strings.NewReader(c.data), []string{"min", "max"})
			require.Error(t, err)
			assert.ErrorIs(t, err, c.want)
			var dle *DataLoadError
			require.True(t, errors.As(err, &dle))
			assert.Equal(t, TableGeneratorLimits, dle.Table)
			assert.Equal(t, c.row, dle.Row)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	p := samplePaths()
	p.Emissions = filepath.Join(t.TempDir(), "nope.csv")
	_, err := Load(p)
	var dle *DataLoadError
	require.True(t, errors.As(err, &dle))
	assert.Equal(t, TableEmissions, dle.Table)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadInconsistentCoefficients(t *testing.T) {
	dir := t.TempDir()
	p := samplePaths()
	p.Costs = writeFile(t, dir, "costs.csv", ",a,b,c\nG_1,1,2,3\n")
	_, err := Load(p)
	assert.ErrorIs(t, err, ErrMissingID)
	assert.Contains(t, err.Error(), dir)
}

func TestValidateAgainstNetwork(t *testing.T) {
	s, err := Load(samplePaths())
	require.NoError(t, err)
	gens := s.GeneratorIDs()
	buses := s.BusIDs()
	require.NoError(t, s.Validate(gens, buses))

	err = s.Validate(append(gens, "G_7"), buses)
	assert.ErrorIs(t, err, ErrMissingID)

	err = s.Validate(gens[:5], buses)
	assert.ErrorIs(t, err, ErrUnknownID)

	err = s.Validate(gens, buses[1:])
	var dle *DataLoadError
	require.True(t, errors.As(err, &dle))
	assert.Equal(t, TableBusLimits, dle.Table)
}

func TestNewRejectsMismatch(t *testing.T) {
	_, err := New(
		map[string]model.GeneratorLimit{"G1": {Max: 1}, "G2": {Max: 1}},
		map[string]model.CostCoefficients{"G1": {}},
		map[string]model.EmissionCoefficients{"G1": {}, "G2": {}},
		map[string]model.VoltageLimit{"B1": {Min: 0.9, Max: 1.1}},
	)
	assert.ErrorIs(t, err, ErrMissingID)
}

func TestPathsValidate(t *testing.T) {
	assert.NoError(t, samplePaths().Validate())
	p := samplePaths()
	p.BusLimits = ""
	assert.Error(t, p.Validate())
}

func TestHolderReplace(t *testing.T) {
	a, err := Load(samplePaths())
	require.NoError(t, err)
	b, err := Load(samplePaths())
	require.NoError(t, err)
	h := NewHolder(a)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := h.Current()
			if s != a && s != b {
				t.Errorf("unexpected store")
			}
		}()
	}
	prev := h.Replace(b)
	wg.Wait()
	assert.Same(t, a, prev)
	assert.Same(t, b, h.Current())
}
