package params

import (
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/kilianp07/moeopf/core/model"
)

// Table names used in DataLoadError.
const (
	TableGeneratorLimits = "generator_limits"
	TableCosts           = "costs"
	TableEmissions       = "emissions"
	TableBusLimits       = "bus_limits"
)

// Paths locates the four parameter tables.
type Paths struct {
	GeneratorLimits string `json:"generator_limits"`
	Costs           string `json:"costs"`
	Emissions       string `json:"emissions"`
	BusLimits       string `json:"bus_limits"`
}

// Validate checks that every path is set.
func (p Paths) Validate() error {
	for name, v := range map[string]string{
		TableGeneratorLimits: p.GeneratorLimits,
		TableCosts:           p.Costs,
		TableEmissions:       p.Emissions,
		TableBusLimits:       p.BusLimits,
	} {
		if v == "" {
			return fmt.Errorf("data.%s is required", name)
		}
	}
	return nil
}

// Store holds the parameter tables keyed by generator or bus identifier.
// It is never mutated after construction and is safe for concurrent reads.
type Store struct {
	genLimits map[string]model.GeneratorLimit
	costs     map[string]model.CostCoefficients
	emissions map[string]model.EmissionCoefficients
	busLimits map[string]model.VoltageLimit
	genIDs    []string
	busIDs    []string
}

// Load reads the four tables once.
func Load(p Paths) (*Store, error) {
	gl, err := readTable(TableGeneratorLimits, p.GeneratorLimits, []string{"min", "max"})
	if err != nil {
		return nil, err
	}
	cs, err := readTable(TableCosts, p.Costs, []string{"a", "b", "c"})
	if err != nil {
		return nil, err
	}
	em, err := readTable(TableEmissions, p.Emissions, []string{"alpha", "beta", "gamma", "xi", "lambda"})
	if err != nil {
		return nil, err
	}
	bl, err := readTable(TableBusLimits, p.BusLimits, []string{"min", "max"})
	if err != nil {
		return nil, err
	}

	gen := make(map[string]model.GeneratorLimit, len(gl))
	genIDs := make([]string, 0, len(gl))
	for _, r := range gl {
		gen[r.id] = model.GeneratorLimit{Min: r.vals[0], Max: r.vals[1]}
		genIDs = append(genIDs, r.id)
	}
	cost := make(map[string]model.CostCoefficients, len(cs))
	for _, r := range cs {
		cost[r.id] = model.CostCoefficients{A: r.vals[0], B: r.vals[1], C: r.vals[2]}
	}
	emit := make(map[string]model.EmissionCoefficients, len(em))
	for _, r := range em {
		emit[r.id] = model.EmissionCoefficients{Alpha: r.vals[0], Beta: r.vals[1], Gamma: r.vals[2], Xi: r.vals[3], Lambda: r.vals[4]}
	}
	bus := make(map[string]model.VoltageLimit, len(bl))
	busIDs := make([]string, 0, len(bl))
	for _, r := range bl {
		bus[r.id] = model.VoltageLimit{Min: r.vals[0], Max: r.vals[1]}
		busIDs = append(busIDs, r.id)
	}

	s := &Store{genLimits: gen, costs: cost, emissions: emit, busLimits: bus, genIDs: genIDs, busIDs: busIDs}
	if err := s.checkCoefficients(p); err != nil {
		return nil, err
	}
	return s, nil
}

// New builds a Store from in-memory tables. Generator and bus identifiers are
// ordered lexically.
func New(gen map[string]model.GeneratorLimit, cost map[string]model.CostCoefficients,
	emit map[string]model.EmissionCoefficients, bus map[string]model.VoltageLimit) (*Store, error) {
	s := &Store{
		genLimits: copyMap(gen),
		costs:     copyMap(cost),
		emissions: copyMap(emit),
		busLimits: copyMap(bus),
		genIDs:    sortedKeys(gen),
		busIDs:    sortedKeys(bus),
	}
	if err := s.checkCoefficients(Paths{}); err != nil {
		return nil, err
	}
	return s, nil
}

// checkCoefficients requires the cost and emission tables to cover exactly
// the generators of the limits table.
func (s *Store) checkCoefficients(p Paths) error {
	if err := sameIDs(TableCosts, p.Costs, s.genIDs, s.costs); err != nil {
		return err
	}
	return sameIDs(TableEmissions, p.Emissions, s.genIDs, s.emissions)
}

// Validate checks the tables against the identifiers of the network model.
func (s *Store) Validate(genIDs, busIDs []string) error {
	if err := sameIDs(TableGeneratorLimits, "", genIDs, s.genLimits); err != nil {
		return err
	}
	return sameIDs(TableBusLimits, "", busIDs, s.busLimits)
}

func sameIDs[T any](table, path string, want []string, got map[string]T) error {
	expected := make(map[string]struct{}, len(want))
	for _, id := range want {
		expected[id] = struct{}{}
		if _, ok := got[id]; !ok {
			return loadErr(table, path, 0, fmt.Errorf("%w %q", ErrMissingID, id))
		}
	}
	for _, id := range sortedKeys(got) {
		if _, ok := expected[id]; !ok {
			return loadErr(table, path, 0, fmt.Errorf("%w %q", ErrUnknownID, id))
		}
	}
	return nil
}

// GeneratorIDs returns the generator identifiers in table order.
func (s *Store) GeneratorIDs() []string { return append([]string(nil), s.genIDs...) }

// BusIDs returns the bus identifiers in table order.
func (s *Store) BusIDs() []string { return append([]string(nil), s.busIDs...) }

func (s *Store) GeneratorLimit(id string) (model.GeneratorLimit, bool) {
	v, ok := s.genLimits[id]
	return v, ok
}

func (s *Store) Cost(id string) (model.CostCoefficients, bool) {
	v, ok := s.costs[id]
	return v, ok
}

func (s *Store) Emission(id string) (model.EmissionCoefficients, bool) {
	v, ok := s.emissions[id]
	return v, ok
}

func (s *Store) BusLimit(id string) (model.VoltageLimit, bool) {
	v, ok := s.busLimits[id]
	return v, ok
}

// Holder publishes a Store for concurrent readers. Replace swaps the whole
// store at once; a reader keeps the snapshot it obtained from Current.
type Holder struct {
	cur atomic.Pointer[Store]
}

// NewHolder returns a Holder publishing s.
func NewHolder(s *Store) *Holder {
	h := &Holder{}
	h.cur.Store(s)
	return h
}

// Current returns the published store.
func (h *Holder) Current() *Store { return h.cur.Load() }

// Replace publishes s and returns the previous store.
func (h *Holder) Replace(s *Store) *Store { return h.cur.Swap(s) }

func copyMap[T any](in map[string]T) map[string]T {
	out := make(map[string]T, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
